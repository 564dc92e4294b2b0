package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"longtts/internal/pkg/longtts/audio"
	"longtts/internal/pkg/longtts/backends/remote"
	"longtts/internal/pkg/longtts/engine"
)

type fakeServer struct {
	mu           sync.Mutex
	healthStatus int
	sampleRate   int
	samples      []float32
	status       int
	errorBody    string
	lastRequest  map[string]string
	lastAccept   string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/health":
		w.WriteHeader(f.healthStatus)
	case "/v1/generate/speech":
		f.lastAccept = r.Header.Get("Accept")
		f.lastRequest = map[string]string{}
		_ = json.NewDecoder(r.Body).Decode(&f.lastRequest)

		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.errorBody))
			return
		}

		data, err := audio.NewAudioWithSampleRate(f.samples, f.sampleRate).EncodeWAV()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func newFake() *fakeServer {
	return &fakeServer{
		healthStatus: http.StatusOK,
		sampleRate:   24000,
		samples:      []float32{0.5, -0.5, 0.25, 0},
		status:       http.StatusOK,
	}
}

func newEngine(t *testing.T, fake *fakeServer) engine.Engine {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	e, err := engine.New(context.Background(), "remote", engine.EngineConfig{
		RemoteURL:     srv.URL + "/",
		RemoteTimeout: 5 * time.Second,
		Device:        "cpu",
		SampleRate:    24000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()

	fake := newFake()
	e := newEngine(t, fake)

	got, err := e.Generate(context.Background(), "Hello there.", "voices/default.wav")
	require.NoError(t, err)

	assert.Equal(t, 24000, got.SampleRate)
	require.Len(t, got.Samples, 4)
	assert.InDelta(t, 0.5, got.Samples[0], 0.001)
	assert.InDelta(t, -0.5, got.Samples[1], 0.001)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "audio/wav", fake.lastAccept)
	assert.Equal(t, map[string]string{
		"text":             "Hello there.",
		"speaker_ref_path": "voices/default.wav",
		"device":           "cpu",
	}, fake.lastRequest)

	assert.Equal(t, engine.EngineInfo{Name: "remote", Device: "cpu", SampleRate: 24000}, e.Info())
}

func TestGenerate_StructuredError(t *testing.T) {
	t.Parallel()

	fake := newFake()
	fake.status = http.StatusUnprocessableEntity
	fake.errorBody = `{"detail": "speaker file not found", "error_code": "SPEAKER_MISSING"}`
	e := newEngine(t, fake)

	_, err := e.Generate(context.Background(), "Hello.", "missing.wav")
	require.Error(t, err)

	var svcErr *remote.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusUnprocessableEntity, svcErr.Status)
	assert.Equal(t, "speaker file not found", svcErr.Detail)
	assert.Equal(t, "SPEAKER_MISSING", svcErr.ErrorCode)
}

func TestGenerate_RawError(t *testing.T) {
	t.Parallel()

	fake := newFake()
	fake.status = http.StatusInternalServerError
	fake.errorBody = "CUDA out of memory"
	e := newEngine(t, fake)

	_, err := e.Generate(context.Background(), "Hello.", "voice.wav")

	var svcErr *remote.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "CUDA out of memory", svcErr.Detail)
	assert.Contains(t, err.Error(), "500")
}

func TestGenerate_SampleRateMismatch(t *testing.T) {
	t.Parallel()

	fake := newFake()
	fake.sampleRate = 16000
	e := newEngine(t, fake)

	_, err := e.Generate(context.Background(), "Hello.", "voice.wav")
	require.ErrorIs(t, err, audio.ErrSampleRateMismatch)
}

func TestGenerate_EmptyText(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newFake())

	_, err := e.Generate(context.Background(), "", "voice.wav")
	require.ErrorIs(t, err, remote.ErrEmptyText)
}

func TestGenerate_CancelledContext(t *testing.T) {
	t.Parallel()

	e := newEngine(t, newFake())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Generate(ctx, "Hello.", "voice.wav")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine_HealthCheckFails(t *testing.T) {
	t.Parallel()

	fake := newFake()
	fake.healthStatus = http.StatusServiceUnavailable
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := engine.New(context.Background(), "remote", engine.EngineConfig{RemoteURL: srv.URL, RemoteTimeout: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewEngine_CancelledStartup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newFake())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.New(ctx, "remote", engine.EngineConfig{RemoteURL: srv.URL, SampleRate: 24000})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine_RequiresURL(t *testing.T) {
	t.Parallel()

	_, err := engine.New(context.Background(), "remote", engine.EngineConfig{})
	require.Error(t, err)
}
