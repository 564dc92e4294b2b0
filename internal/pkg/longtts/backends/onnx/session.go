package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// speakerEncoder turns a mono reference recording into a fixed-size
// speaker embedding.
type speakerEncoder interface {
	Encode(samples []float32) ([]float32, error)
	Close() error
}

// generator turns token ids and a speaker embedding into a waveform.
// An empty result means the graph produced no audio.
type generator interface {
	Generate(ids []int64, speaker []float32) ([]float32, error)
	Close() error
}

type ortSpeakerEncoder struct {
	session *ort.DynamicAdvancedSession
}

func newSpeakerEncoder(path string, opts *ort.SessionOptions) (*ortSpeakerEncoder, error) {
	session, err := ort.NewDynamicAdvancedSession(path, []string{"audio"}, []string{"speaker_embedding"}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load speaker encoder: %w", err)
	}
	return &ortSpeakerEncoder{session: session}, nil
}

func (s *ortSpeakerEncoder) Encode(samples []float32) ([]float32, error) {
	audioTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(samples))), samples)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio tensor: %w", err)
	}
	defer audioTensor.Destroy()

	return runSingle(s.session, []ort.Value{audioTensor}, "speaker encoder")
}

func (s *ortSpeakerEncoder) Close() error {
	return s.session.Destroy()
}

type ortGenerator struct {
	session *ort.DynamicAdvancedSession
}

func newGenerator(path string, opts *ort.SessionOptions) (*ortGenerator, error) {
	session, err := ort.NewDynamicAdvancedSession(path, []string{"input_ids", "speaker_embedding"}, []string{"waveform"}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load generator: %w", err)
	}
	return &ortGenerator{session: session}, nil
}

func (g *ortGenerator) Generate(ids []int64, speaker []float32) ([]float32, error) {
	idsTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(ids))), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	speakerTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(speaker))), speaker)
	if err != nil {
		return nil, fmt.Errorf("failed to create speaker tensor: %w", err)
	}
	defer speakerTensor.Destroy()

	return runSingle(g.session, []ort.Value{idsTensor, speakerTensor}, "generator")
}

func (g *ortGenerator) Close() error {
	return g.session.Destroy()
}

// runSingle runs a graph with one float32 output and copies the data out
// before the output tensor is released. [1, N] and [N] flatten the same way.
func runSingle(session *ort.DynamicAdvancedSession, inputs []ort.Value, name string) ([]float32, error) {
	outputs := make([]ort.Value, 1)
	if err := session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
	if outputs[0] == nil {
		return nil, nil
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", name, outputs[0])
	}

	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())
	return data, nil
}
