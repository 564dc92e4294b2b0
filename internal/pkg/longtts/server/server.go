// Package server exposes the synthesis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"longtts/internal/pkg/longtts/host"
	"longtts/internal/pkg/longtts/synth"
)

const (
	DefaultMaxBodyBytes    = 10 << 20
	DefaultShutdownTimeout = 10 * time.Second

	archiveTimeout = 30 * time.Second
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*synth.Result, error)
}

type StatusReporter interface {
	State() host.State
}

// Archiver receives a copy of every WAV served. Failures never affect the
// response.
type Archiver interface {
	Bucket() string
	Put(ctx context.Context, key string, data []byte) error
}

type Options struct {
	Backend      string
	Device       string
	DefaultVoice string
	MaxBodyBytes int64
	Archive      Archiver
	Now          func() time.Time
}

type Server struct {
	pipeline Synthesizer
	status   StatusReporter
	opts     Options
	started  time.Time
	router   *mux.Router
}

func New(pipeline Synthesizer, status StatusReporter, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		pipeline: pipeline,
		status:   status,
		opts:     opts,
		started:  opts.Now(),
		router:   mux.NewRouter(),
	}

	s.router.HandleFunc("/tts/", s.handleTTS).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return s
}

// Handler returns the router wrapped with request ids and access logging.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	})(h)
	h = requestIDHandler(h)
	h = hlog.RemoteAddrHandler("remote")(h)
	h = hlog.NewHandler(log.Logger)(h)
	return h
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// for up to DefaultShutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) archive(ctx context.Context, requestID string, data []byte) {
	logger := zerolog.Ctx(ctx)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	key := requestID + ".wav"
	bucket := s.opts.Archive.Bucket()
	if err := s.opts.Archive.Put(ctx, key, data); err != nil {
		logger.Warn().Err(err).Str("bucket", bucket).Str("key", key).Msg("Failed to archive audio")
		return
	}
	logger.Debug().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("Audio archived")
}
