package engine

import (
	"context"
	"time"

	"longtts/internal/pkg/longtts/audio"
)

// Engine turns one chunk of text into a waveform spoken in the voice of the
// reference recording at voiceRef.
type Engine interface {
	Generate(ctx context.Context, text, voiceRef string) (*audio.Audio, error)
	Info() EngineInfo
	Close() error
}

type EngineInfo struct {
	Name       string
	Device     string
	SampleRate int
}

type EngineConfig struct {
	Backend       string
	ModelPath     string
	RemoteURL     string
	RemoteTimeout time.Duration
	Device        string
	SampleRate    int
}
