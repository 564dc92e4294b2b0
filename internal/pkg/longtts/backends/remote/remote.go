// Package remote synthesizes speech through a model inference server that
// speaks the /v1/generate/speech protocol and answers with WAV audio.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"longtts/internal/pkg/longtts/audio"
	"longtts/internal/pkg/longtts/engine"
)

const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"

	contentTypeJSON = "application/json"
	contentTypeWAV  = "audio/wav"

	defaultTimeout = 120 * time.Second
)

var (
	ErrEmptyText  = errors.New("remote: text cannot be empty")
	ErrEmptyAudio = errors.New("remote: received empty audio data")
)

func init() {
	engine.Register("remote", NewEngine)
}

type generateRequest struct {
	Text           string `json:"text"`
	SpeakerRefPath string `json:"speaker_ref_path,omitempty"`
	Device         string `json:"device,omitempty"`
}

// ServiceError is a non-200 answer from the inference server.
type ServiceError struct {
	Status    int    `json:"-"`
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

func (e *ServiceError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("inference server error (%d): %s (code: %s)", e.Status, e.Detail, e.ErrorCode)
	}
	return fmt.Sprintf("inference server error (%d): %s", e.Status, e.Detail)
}

type Engine struct {
	client     *http.Client
	baseURL    string
	device     string
	sampleRate int
}

// NewEngine builds the client and probes the server's health endpoint so an
// unreachable server fails at startup rather than on the first request.
func NewEngine(ctx context.Context, cfg engine.EngineConfig) (engine.Engine, error) {
	if cfg.RemoteURL == "" {
		return nil, errors.New("remote: remote_url is required")
	}

	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	e := &Engine{
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.RemoteURL, "/"),
		device:     cfg.Device,
		sampleRate: sampleRate,
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := e.HealthCheck(ctx); err != nil {
		return nil, err
	}

	log.Info().Str("url", e.baseURL).Int("sample_rate", sampleRate).Msg("Connected to inference server")
	return e, nil
}

func (e *Engine) Generate(ctx context.Context, text, voiceRef string) (*audio.Audio, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(generateRequest{
		Text:           text,
		SpeakerRefPath: voiceRef,
		Device:         e.device,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+apiGenerateSpeech, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeWAV)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to inference server at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, contentTypeWAV) && !strings.HasPrefix(ct, "audio/x-wav") {
		return nil, fmt.Errorf("unexpected content type: expected %s, got %q", contentTypeWAV, ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	wav, err := audio.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	if wav.SampleRate != e.sampleRate {
		return nil, fmt.Errorf("%w: server returned %d Hz, configured %d Hz", audio.ErrSampleRateMismatch, wav.SampleRate, e.sampleRate)
	}

	return wav, nil
}

func (e *Engine) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for inference server at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}
	return nil
}

func (e *Engine) Info() engine.EngineInfo {
	return engine.EngineInfo{
		Name:       "remote",
		Device:     e.device,
		SampleRate: e.sampleRate,
	}
}

func (e *Engine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// parseErrorResponse prefers the server's {detail, error_code} body and
// falls back to the raw text.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	svcErr := &ServiceError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, svcErr); err == nil && svcErr.Detail != "" {
		return svcErr
	}

	svcErr.Detail = strings.TrimSpace(string(body))
	if svcErr.Detail == "" {
		svcErr.Detail = http.StatusText(resp.StatusCode)
	}
	return svcErr
}
