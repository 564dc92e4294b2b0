// Package onnx runs a voice-cloning TTS graph in process through
// onnxruntime. The model directory holds speaker_encoder.onnx,
// generator.onnx, vocab.json and an optional config.json.
package onnx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"longtts/internal/pkg/longtts/audio"
	"longtts/internal/pkg/longtts/engine"
)

const (
	speakerEncoderFile = "speaker_encoder.onnx"
	generatorFile      = "generator.onnx"
	vocabFile          = "vocab.json"
	configFile         = "config.json"
)

var ErrEmptyOutput = errors.New("onnx: model produced no audio")

func init() {
	engine.Register("onnx", NewEngine)
}

type ModelConfig struct {
	SampleRate int `json:"sample_rate"`
}

// LoadModelConfig reads config.json from modelDir. A missing file yields the
// defaults.
func LoadModelConfig(modelDir string) (ModelConfig, error) {
	cfg := ModelConfig{SampleRate: audio.DefaultSampleRate}

	data, err := os.ReadFile(filepath.Join(modelDir, configFile))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read model config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse model config: %w", err)
	}
	if cfg.SampleRate <= 0 {
		return cfg, fmt.Errorf("invalid sample_rate %d in model config", cfg.SampleRate)
	}
	return cfg, nil
}

var ErrEmptyEmbedding = errors.New("onnx: speaker encoder produced no embedding")

type Engine struct {
	speakerEncoder speakerEncoder
	generator      generator
	tokenizer      *Tokenizer
	device         string
	sampleRate     int

	mu        sync.Mutex
	refEmbeds map[string][]float32
}

func newEngine(enc speakerEncoder, gen generator, tok *Tokenizer, device string, sampleRate int) *Engine {
	return &Engine{
		speakerEncoder: enc,
		generator:      gen,
		tokenizer:      tok,
		device:         device,
		sampleRate:     sampleRate,
		refEmbeds:      make(map[string][]float32),
	}
}

func NewEngine(ctx context.Context, cfg engine.EngineConfig) (engine.Engine, error) {
	modelDir := cfg.ModelPath
	if strings.HasSuffix(modelDir, ".onnx") {
		modelDir = filepath.Dir(modelDir)
	}

	modelCfg, err := LoadModelConfig(modelDir)
	if err != nil {
		return nil, err
	}

	tokenizer, err := NewTokenizer(filepath.Join(modelDir, vocabFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}

	if err := initRuntime(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, device, err := sessionOptions(cfg.Device)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	enc, err := newSpeakerEncoder(filepath.Join(modelDir, speakerEncoderFile), opts)
	if err != nil {
		return nil, err
	}

	gen, err := newGenerator(filepath.Join(modelDir, generatorFile), opts)
	if err != nil {
		enc.Close()
		return nil, err
	}

	log.Info().
		Str("model_dir", modelDir).
		Str("device", device).
		Int("vocab", tokenizer.VocabSize()).
		Int("sample_rate", modelCfg.SampleRate).
		Msg("ONNX model loaded")

	return newEngine(enc, gen, tokenizer, device, modelCfg.SampleRate), nil
}

func (e *Engine) Generate(ctx context.Context, text, voiceRef string) (*audio.Audio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	speaker, err := e.speakerEmbedding(voiceRef)
	if err != nil {
		return nil, err
	}

	samples, err := e.generator.Generate(e.tokenizer.Encode(text), speaker)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrEmptyOutput
	}

	return audio.NewAudioWithSampleRate(samples, e.sampleRate), nil
}

// speakerEmbedding encodes the reference recording once per path. Failures
// are not cached, so a voice file fixed on disk is picked up on retry.
func (e *Engine) speakerEmbedding(voiceRef string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if embed, ok := e.refEmbeds[voiceRef]; ok {
		return embed, nil
	}

	ref, err := audio.LoadWAV(voiceRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load voice reference %s: %w", voiceRef, err)
	}
	if ref.SampleRate != e.sampleRate {
		log.Warn().
			Str("voice", voiceRef).
			Int("voice_rate", ref.SampleRate).
			Int("model_rate", e.sampleRate).
			Msg("Voice reference sample rate differs from model rate")
	}

	embed, err := e.speakerEncoder.Encode(ref.Samples)
	if err != nil {
		return nil, err
	}
	if len(embed) == 0 {
		return nil, ErrEmptyEmbedding
	}
	e.refEmbeds[voiceRef] = embed

	log.Debug().Str("voice", voiceRef).Int("dim", len(embed)).Msg("Speaker embedding cached")
	return embed, nil
}

func (e *Engine) Info() engine.EngineInfo {
	return engine.EngineInfo{
		Name:       "onnx",
		Device:     e.device,
		SampleRate: e.sampleRate,
	}
}

func (e *Engine) Close() error {
	var errs []error
	if e.generator != nil {
		errs = append(errs, e.generator.Close())
		e.generator = nil
	}
	if e.speakerEncoder != nil {
		errs = append(errs, e.speakerEncoder.Close())
		e.speakerEncoder = nil
	}
	return errors.Join(errs...)
}
