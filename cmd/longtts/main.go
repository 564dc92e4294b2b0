package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"longtts/internal/pkg/longtts/archive"
	"longtts/internal/pkg/longtts/chunk"
	"longtts/internal/pkg/longtts/config"
	"longtts/internal/pkg/longtts/engine"
	"longtts/internal/pkg/longtts/host"
	"longtts/internal/pkg/longtts/preprocess"
	"longtts/internal/pkg/longtts/server"
	"longtts/internal/pkg/longtts/synth"

	_ "longtts/internal/pkg/longtts/backends/onnx"
	_ "longtts/internal/pkg/longtts/backends/remote"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	fmt.Fprintf(os.Stderr, "longtts %s\n", Version)

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal().Err(err).Msg("Failed to load .env")
	}

	cfg, err := config.LoadAndParse()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse configuration")
	}

	if err := setupLogging(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup logging")
	}

	cfg.ResolvedDevice, err = config.ResolveDevice(cfg.Device, config.DetectCUDA)
	if err != nil {
		log.Fatal().Err(err).Str("device", cfg.Device).Msg("Failed to resolve device")
	}
	log.Info().Str("requested", cfg.Device).Str("device", cfg.ResolvedDevice).Msg("Selected computation device")

	if err := config.CheckVoice(cfg.Voice, cfg.VoiceCheck); err != nil {
		log.Fatal().Err(err).Msg("Voice check failed")
	}

	if !engine.IsRegistered(cfg.Backend) {
		log.Fatal().
			Str("backend", cfg.Backend).
			Strs("available", engine.ListBackends()).
			Msg("Unknown backend")
	}

	log.Debug().
		Str("listen", cfg.Listen).
		Str("backend", cfg.Backend).
		Str("model", cfg.ModelPath).
		Str("voice", cfg.Voice).
		Int("max_chars", cfg.MaxChars).
		Dur("silence", cfg.Silence).
		Int("max_concurrent", cfg.MaxConcurrent).
		Msg("Configuration loaded")

	splitter, err := chunk.NewPunktSplitter()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load sentence tokenizer")
	}

	engineCfg := buildEngineConfig(cfg)
	h := host.New(func(ctx context.Context) (engine.Engine, error) {
		log.Info().Str("backend", cfg.Backend).Str("device", cfg.ResolvedDevice).Msg("Loading TTS model...")
		return engine.New(ctx, cfg.Backend, engineCfg)
	}, cfg.MaxConcurrent)

	pipeline := synth.New(
		h,
		preprocess.NewPreprocessor(preprocess.Options{ExpandNumbers: cfg.ExpandNumbers}),
		chunk.New(splitter, chunk.Options{MaxChars: cfg.MaxChars, SplitLong: cfg.SplitLong}),
		synth.Options{VoiceRef: cfg.Voice, Silence: cfg.Silence},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvOpts := server.Options{
		Backend:      cfg.Backend,
		Device:       cfg.ResolvedDevice,
		DefaultVoice: cfg.Voice,
	}
	if cfg.ArchiveURL != "" {
		store, err := archive.Connect(ctx, cfg.ArchiveURL, cfg.ArchiveBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect archive")
		}
		defer store.Close()
		srvOpts.Archive = store
	}

	srv := server.New(pipeline, h, srvOpts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Listen)
	})
	g.Go(func() error {
		return h.Load(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Server stopped")
	}

	if err := h.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to release model")
	}
	log.Info().Msg("Server stopped")
}

func buildEngineConfig(cfg *config.Config) engine.EngineConfig {
	return engine.EngineConfig{
		Backend:       cfg.Backend,
		ModelPath:     cfg.ModelPath,
		RemoteURL:     cfg.RemoteURL,
		RemoteTimeout: cfg.RemoteTimeout,
		Device:        cfg.ResolvedDevice,
		SampleRate:    cfg.SampleRate,
	}
}

func setupLogging(cfg *config.Config) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
	}

	return nil
}
