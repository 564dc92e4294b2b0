package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"longtts/internal/pkg/longtts/host"
	"longtts/internal/pkg/longtts/synth"
)

const (
	detailLoading  = "TTS model is still loading. Please try again in a few seconds."
	detailNoText   = "Text is required."
	detailFailed   = "TTS generation failed"
	detailTooLarge = "Request body too large."

	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type healthResponse struct {
	Status        string  `json:"status"`
	ModelLoaded   bool    `json:"model_loaded"`
	Backend       string  `json:"backend"`
	Device        string  `json:"device"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Timestamp     string  `json:"timestamp"`
	DefaultVoice  string  `json:"default_voice"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := r.ParseMultipartForm(s.opts.MaxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, detailTooLarge)
			return
		}
		logger.Debug().Err(err).Msg("Invalid form body")
		writeError(w, http.StatusBadRequest, detailNoText)
		return
	}
	text := r.PostFormValue("text")

	result, err := s.pipeline.Synthesize(r.Context(), text)
	switch {
	case err == nil:
	case errors.Is(err, synth.ErrNotReady):
		logger.Warn().Msg("Request rejected while model is loading")
		writeError(w, http.StatusServiceUnavailable, detailLoading)
		return
	case errors.Is(err, synth.ErrEmptyText):
		writeError(w, http.StatusBadRequest, detailNoText)
		return
	default:
		event := logger.Error().Err(err)
		var synthErr *synth.Error
		if errors.As(err, &synthErr) {
			event = event.Str("stage", string(synthErr.Stage)).Int("chunk", synthErr.Chunk)
		}
		event.Msg("Long TTS generation failed")
		writeError(w, http.StatusInternalServerError, detailFailed)
		return
	}

	requestID := RequestID(r.Context())
	logger.Info().
		Int("chunks", len(result.Chunks)).
		Float64("duration_sec", result.Audio.Duration()).
		Int("bytes", len(result.WAV)).
		Msg("Long TTS request processed")

	h := w.Header()
	h.Set("Content-Type", "audio/wav")
	h.Set("Content-Disposition", `attachment; filename="speech.wav"`)
	h.Set("Content-Length", strconv.Itoa(len(result.WAV)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.WAV); err != nil {
		logger.Warn().Err(err).Msg("Failed to write response")
	}

	if s.opts.Archive != nil {
		go s.archive(r.Context(), requestID, result.WAV)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.status.State()
	status := state.String()
	if state == host.StateReady {
		status = "healthy"
	}

	now := s.opts.Now()
	uptime := now.Sub(s.started).Seconds()

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        status,
		ModelLoaded:   state == host.StateReady,
		Backend:       s.opts.Backend,
		Device:        s.opts.Device,
		UptimeSeconds: math.Round(uptime*100) / 100,
		Timestamp:     now.UTC().Format(timestampLayout),
		DefaultVoice:  s.opts.DefaultVoice,
	})
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}
