package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"longtts/internal/pkg/longtts/audio"
	"longtts/internal/pkg/longtts/engine"
)

type stubEngine struct {
	cfg    engine.EngineConfig
	closed bool
}

func (s *stubEngine) Generate(context.Context, string, string) (*audio.Audio, error) {
	return audio.NewAudio([]float32{0}), nil
}

func (s *stubEngine) Info() engine.EngineInfo {
	return engine.EngineInfo{Name: s.cfg.Backend, Device: s.cfg.Device, SampleRate: s.cfg.SampleRate}
}

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func stubFactory(built **stubEngine) engine.Factory {
	return func(_ context.Context, cfg engine.EngineConfig) (engine.Engine, error) {
		e := &stubEngine{cfg: cfg}
		if built != nil {
			*built = e
		}
		return e, nil
	}
}

func TestRegistry_New(t *testing.T) {
	t.Parallel()

	r := engine.NewRegistry()
	require.NoError(t, r.Register("stub", stubFactory(nil)))
	assert.True(t, r.Has("stub"))

	e, err := r.New(context.Background(), "stub", engine.EngineConfig{Device: "cpu", SampleRate: 24000})
	require.NoError(t, err)
	assert.Equal(t, engine.EngineInfo{Name: "stub", Device: "cpu", SampleRate: 24000}, e.Info())
}

func TestRegistry_RegisterErrors(t *testing.T) {
	t.Parallel()

	r := engine.NewRegistry()
	require.NoError(t, r.Register("stub", stubFactory(nil)))

	require.Error(t, r.Register("stub", stubFactory(nil)), "duplicate name")
	require.Error(t, r.Register("nil-factory", nil))
	require.Error(t, r.Register("", stubFactory(nil)))
	assert.Equal(t, []string{"stub"}, r.Names())
}

func TestRegistry_NamesSorted(t *testing.T) {
	t.Parallel()

	r := engine.NewRegistry()
	for _, name := range []string{"remote", "onnx", "alpha"} {
		require.NoError(t, r.Register(name, stubFactory(nil)))
	}
	assert.Equal(t, []string{"alpha", "onnx", "remote"}, r.Names())
}

func TestRegistry_UnknownBackend(t *testing.T) {
	t.Parallel()

	r := engine.NewRegistry()
	_, err := r.New(context.Background(), "no-such-backend", engine.EngineConfig{})
	require.ErrorIs(t, err, engine.ErrUnknownBackend)
	assert.Contains(t, err.Error(), "no-such-backend")
	assert.False(t, r.Has("no-such-backend"))
}

func TestRegistry_RejectsUnusableEngine(t *testing.T) {
	t.Parallel()

	r := engine.NewRegistry()

	var built *stubEngine
	require.NoError(t, r.Register("no-rate", stubFactory(&built)))
	_, err := r.New(context.Background(), "no-rate", engine.EngineConfig{})
	require.ErrorIs(t, err, engine.ErrInvalidEngine)
	require.NotNil(t, built)
	assert.True(t, built.closed, "rejected engine is released")

	require.NoError(t, r.Register("nil", func(context.Context, engine.EngineConfig) (engine.Engine, error) {
		return nil, nil
	}))
	_, err = r.New(context.Background(), "nil", engine.EngineConfig{})
	require.ErrorIs(t, err, engine.ErrInvalidEngine)
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("server unreachable")
	r := engine.NewRegistry()
	require.NoError(t, r.Register("broken", func(context.Context, engine.EngineConfig) (engine.Engine, error) {
		return nil, boom
	}))

	_, err := r.New(context.Background(), "broken", engine.EngineConfig{SampleRate: 24000})
	require.ErrorIs(t, err, boom)
}

func TestRegistry_PassesContext(t *testing.T) {
	t.Parallel()

	r := engine.NewRegistry()
	require.NoError(t, r.Register("ctx", func(ctx context.Context, _ engine.EngineConfig) (engine.Engine, error) {
		return nil, ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.New(ctx, "ctx", engine.EngineConfig{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDefaultRegistry(t *testing.T) {
	engine.Register("registry-test", stubFactory(nil))

	assert.True(t, engine.IsRegistered("registry-test"))
	assert.Contains(t, engine.ListBackends(), "registry-test")

	e, err := engine.New(context.Background(), "registry-test", engine.EngineConfig{SampleRate: 16000})
	require.NoError(t, err)
	assert.Equal(t, 16000, e.Info().SampleRate)

	assert.Panics(t, func() { engine.Register("registry-test", stubFactory(nil)) })
	assert.Panics(t, func() { engine.Register("registry-nil", nil) })
}
