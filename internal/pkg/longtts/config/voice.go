package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

var ErrVoiceMissing = errors.New("config: default voice file not found")

// CheckVoice verifies that path is a regular file. In warn mode a missing
// file is logged and nil is returned.
func CheckVoice(path, mode string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	info, err := os.Stat(path)
	if err == nil && info.Mode().IsRegular() {
		log.Info().Str("voice", abs).Msg("Default voice file loaded")
		return nil
	}

	if mode == VoiceCheckWarn {
		log.Warn().Str("voice", abs).Msg("Default voice file not found, synthesis will fail until it exists")
		return nil
	}

	log.Error().Str("voice", abs).Msg("Default voice file not found")
	return fmt.Errorf("%w: %s", ErrVoiceMissing, abs)
}
