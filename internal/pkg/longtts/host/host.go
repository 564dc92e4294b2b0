// Package host owns the single model instance shared by all requests. It
// gates access until loading completes and bounds concurrent inference.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"longtts/internal/pkg/longtts/audio"
	"longtts/internal/pkg/longtts/engine"
)

var ErrNotReady = errors.New("host: model is not loaded")

type State int32

const (
	StateInitializing State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Loader constructs the engine. It runs at most once per Host.
type Loader func(ctx context.Context) (engine.Engine, error)

type Host struct {
	loader Loader
	sem    *semaphore.Weighted

	once    sync.Once
	loadErr error

	// engine is written before state becomes StateReady and never again.
	engine engine.Engine
	state  atomic.Int32
}

// New returns a host in StateInitializing. maxConcurrent below 1 is
// treated as 1.
func New(loader Loader, maxConcurrent int) *Host {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Host{
		loader: loader,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Load builds the engine. Later calls return the first call's result.
func (h *Host) Load(ctx context.Context) error {
	h.once.Do(func() {
		h.state.Store(int32(StateLoading))
		start := time.Now()

		e, err := h.loader(ctx)
		if err == nil && e == nil {
			err = errors.New("host: loader returned no engine")
		}
		if err != nil {
			h.loadErr = fmt.Errorf("failed to load model: %w", err)
			h.state.Store(int32(StateFailed))
			return
		}

		h.engine = e
		h.state.Store(int32(StateReady))

		info := e.Info()
		log.Info().
			Str("backend", info.Name).
			Str("device", info.Device).
			Int("sample_rate", info.SampleRate).
			Dur("took", time.Since(start)).
			Msg("Model loaded")
	})
	return h.loadErr
}

func (h *Host) State() State {
	return State(h.state.Load())
}

func (h *Host) Ready() bool {
	return h.State() == StateReady
}

// Info reports the loaded engine's description; ok is false before ready.
func (h *Host) Info() (info engine.EngineInfo, ok bool) {
	if !h.Ready() {
		return engine.EngineInfo{}, false
	}
	return h.engine.Info(), true
}

// Generate runs one inference once a slot is free. Waiting stops when ctx
// is done.
func (h *Host) Generate(ctx context.Context, text, voiceRef string) (*audio.Audio, error) {
	if !h.Ready() {
		return nil, ErrNotReady
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire model slot: %w", err)
	}
	defer h.sem.Release(1)

	return h.engine.Generate(ctx, text, voiceRef)
}

func (h *Host) Close() error {
	if !h.Ready() {
		return nil
	}
	return h.engine.Close()
}
