package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultVoice  = "voices/default.wav"
	DefaultListen = "0.0.0.0:8000"

	VoiceCheckStrict = "strict"
	VoiceCheckWarn   = "warn"
)

type Config struct {
	Listen        string        `mapstructure:"listen"`
	Backend       string        `mapstructure:"backend"`
	ModelPath     string        `mapstructure:"model_path"`
	RemoteURL     string        `mapstructure:"remote_url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
	Device        string        `mapstructure:"device"`
	Voice         string        `mapstructure:"voice"`
	VoiceCheck    string        `mapstructure:"voice_check"`
	MaxChars      int           `mapstructure:"max_chars"`
	Silence       time.Duration `mapstructure:"silence"`
	SplitLong     bool          `mapstructure:"split_long"`
	ExpandNumbers bool          `mapstructure:"expand_numbers"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	SampleRate    int           `mapstructure:"sample_rate"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFile       string        `mapstructure:"log_file"`
	ArchiveURL    string        `mapstructure:"archive_url"`
	ArchiveBucket string        `mapstructure:"archive_bucket"`

	// ResolvedDevice is Device after auto-detection; set by ResolveDevice.
	ResolvedDevice string `mapstructure:"-"`
}

// LoadDotEnv copies variables from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("backend", "remote")
	v.SetDefault("model_path", "models/longtts")
	v.SetDefault("remote_url", "http://127.0.0.1:8001")
	v.SetDefault("remote_timeout", 120*time.Second)
	v.SetDefault("device", "auto")
	v.SetDefault("voice", DefaultVoice)
	v.SetDefault("voice_check", VoiceCheckStrict)
	v.SetDefault("max_chars", 300)
	v.SetDefault("silence", 400*time.Millisecond)
	v.SetDefault("split_long", false)
	v.SetDefault("expand_numbers", false)
	v.SetDefault("max_concurrent", 1)
	v.SetDefault("sample_rate", 24000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("archive_url", "")
	v.SetDefault("archive_bucket", "longtts-audio")
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("longtts", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Path to config file")
	fs.String("listen", "", "HTTP listen address")
	fs.String("backend", "", "Model backend (remote, onnx)")
	fs.StringP("model", "m", "", "Model directory for the onnx backend")
	fs.String("remote-url", "", "Inference server URL for the remote backend")
	fs.Duration("remote-timeout", 0, "HTTP timeout for inference server calls")
	fs.String("device", "", "Compute device (auto, cuda, cpu)")
	fs.String("voice", "", "Path to the default voice reference WAV")
	fs.String("voice-check", "", "Startup voice file check (strict, warn)")
	fs.Int("max-chars", 0, "Upper bound on chunk length in characters")
	fs.Duration("silence", 0, "Silence inserted between chunks")
	fs.Bool("split-long", false, "Split sentences that exceed max-chars at word boundaries")
	fs.Bool("expand-numbers", false, "Spell out numbers, currency and times")
	fs.Int("max-concurrent", 0, "Maximum simultaneous model inferences")
	fs.Int("sample-rate", 0, "Native sample rate of the remote model")
	fs.StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	fs.String("log-file", "", "Log file path")
	fs.String("archive-url", "", "NATS URL for archiving generated audio")
	fs.String("archive-bucket", "", "Object store bucket for archived audio")
	fs.BoolP("help", "h", false, "Show help message")
	return fs
}

var flagKeys = map[string]string{
	"listen":         "listen",
	"backend":        "backend",
	"model":          "model_path",
	"remote-url":     "remote_url",
	"remote-timeout": "remote_timeout",
	"device":         "device",
	"voice":          "voice",
	"voice-check":    "voice_check",
	"max-chars":      "max_chars",
	"silence":        "silence",
	"split-long":     "split_long",
	"expand-numbers": "expand_numbers",
	"max-concurrent": "max_concurrent",
	"sample-rate":    "sample_rate",
	"log-level":      "log_level",
	"log-file":       "log_file",
	"archive-url":    "archive_url",
	"archive-bucket": "archive_bucket",
}

// LoadAndParse reads the configuration from os.Args, the environment and
// the config file. -h prints usage and exits.
func LoadAndParse() (*Config, error) {
	cfg, err := Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Usage: longtts [options]\n\nOptions:\n")
		newFlagSet().PrintDefaults()
		os.Exit(0)
	}
	return cfg, err
}

// Load resolves configuration with precedence flags > environment >
// config file > defaults. It returns pflag.ErrHelp when -h is given.
func Load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	if help, _ := fs.GetBool("help"); help {
		return nil, pflag.ErrHelp
	}

	for flagName, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, err
		}
	}

	if configFile, _ := fs.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("longtts")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "longtts"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("LONGTTS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("voice", "LONGTTS_VOICE", "DEFAULT_VOICE"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Voice = CleanVoicePath(cfg.Voice)
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	cfg.Device = strings.ToLower(strings.TrimSpace(cfg.Device))
	cfg.VoiceCheck = strings.ToLower(strings.TrimSpace(cfg.VoiceCheck))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CleanVoicePath strips surrounding whitespace, then double quotes, then
// single quotes, as left behind by hand-edited .env files.
func CleanVoicePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, `"`)
	p = strings.Trim(p, `'`)
	return p
}

func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("max_chars must be positive, got %d", c.MaxChars))
	}
	if c.Silence < 0 {
		errs = append(errs, fmt.Errorf("silence must not be negative, got %s", c.Silence))
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	switch c.VoiceCheck {
	case VoiceCheckStrict, VoiceCheckWarn:
	default:
		errs = append(errs, fmt.Errorf("voice_check must be %q or %q, got %q", VoiceCheckStrict, VoiceCheckWarn, c.VoiceCheck))
	}
	switch c.Device {
	case DeviceAuto, DeviceCUDA, DeviceCPU:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownDevice, c.Device))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
