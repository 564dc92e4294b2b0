// Package synth turns arbitrarily long text into one waveform: it splits the
// text into chunks, synthesizes each through the model and joins the results
// with fixed silences.
package synth

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"longtts/internal/pkg/longtts/audio"
	"longtts/internal/pkg/longtts/chunk"
	"longtts/internal/pkg/longtts/host"
	"longtts/internal/pkg/longtts/preprocess"
)

const DefaultSilence = 400 * time.Millisecond

// Model is the slice of host.Host the pipeline depends on.
type Model interface {
	Ready() bool
	Generate(ctx context.Context, text, voiceRef string) (*audio.Audio, error)
}

var _ Model = (*host.Host)(nil)

type Options struct {
	VoiceRef string
	Silence  time.Duration
}

type Pipeline struct {
	model        Model
	preprocessor *preprocess.Preprocessor
	chunker      *chunk.Chunker
	opts         Options
}

type Result struct {
	Audio *audio.Audio
	// Chunks holds the spoken chunks as cut from the request text, before
	// normalization.
	Chunks []string
	WAV    []byte
}

func New(model Model, preprocessor *preprocess.Preprocessor, chunker *chunk.Chunker, opts Options) *Pipeline {
	return &Pipeline{
		model:        model,
		preprocessor: preprocessor,
		chunker:      chunker,
		opts:         opts,
	}
}

// Synthesize returns ErrNotReady or ErrEmptyText before any chunking or
// model call, and *Error for everything after. The first failing chunk
// aborts the whole request.
//
// Chunk boundaries are computed on the caller's text. Normalization only
// rewrites what each chunk sends to the model, so it never moves a boundary.
func (p *Pipeline) Synthesize(ctx context.Context, text string) (*Result, error) {
	if !p.model.Ready() {
		return nil, ErrNotReady
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	logger := zerolog.Ctx(ctx)

	chunks := p.chunker.Chunk(text)
	inputs := make([]string, len(chunks))
	spoken := 0
	for i, c := range chunks {
		inputs[i] = p.preprocessor.Process(c)
		if inputs[i] != "" {
			spoken++
		}
	}
	if spoken == 0 {
		return nil, ErrEmptyText
	}
	logger.Info().Int("chunks", len(chunks)).Int("chars", len(text)).Msg("Text split into chunks")

	parts := make([]*audio.Audio, 0, spoken)
	kept := make([]string, 0, spoken)
	for i, c := range chunks {
		if inputs[i] == "" {
			logger.Debug().Int("chunk", i).Msg("Chunk empty after normalization, skipped")
			continue
		}

		start := time.Now()
		wav, err := p.model.Generate(ctx, inputs[i], p.opts.VoiceRef)
		if err != nil {
			return nil, &Error{Stage: StageGenerate, Chunk: i, Err: err}
		}
		if wav == nil || wav.Len() == 0 {
			return nil, &Error{Stage: StageGenerate, Chunk: i, Err: ErrNoAudio}
		}
		logger.Debug().
			Int("chunk", i).
			Int("chars", len(inputs[i])).
			Int("samples", wav.Len()).
			Dur("took", time.Since(start)).
			Msg("Chunk synthesized")
		parts = append(parts, wav)
		kept = append(kept, c)
	}

	joined, err := audio.Join(parts, p.opts.Silence)
	if err != nil {
		return nil, &Error{Stage: StageConcatenate, Chunk: -1, Err: err}
	}

	data, err := joined.EncodeWAV()
	if err != nil {
		return nil, &Error{Stage: StageEncode, Chunk: -1, Err: err}
	}

	return &Result{Audio: joined, Chunks: kept, WAV: data}, nil
}
