package config

import (
	"os"

	"github.com/SimplyPrint/card-uid/internal/logging"
	"github.com/SimplyPrint/card-uid/internal/settings"
)

// Config holds the runtime configuration. Only logging is configurable;
// the reader is always chosen interactively.
type Config struct {
	LogLevel logging.Level
	LogDir   string // empty means the platform default
	Debug    bool   // mirror log output to stderr
}

// Load builds the configuration from the saved settings, with environment
// variables taking precedence:
//
//	CARD_UID_LOG_LEVEL  debug, info, warn or error
//	CARD_UID_LOG_DIR    directory for the log file and crash logs
//	CARD_UID_DEBUG      1 to mirror log output to stderr
func Load(s *settings.Settings) *Config {
	cfg := &Config{
		LogLevel: logging.LevelInfo,
		LogDir:   os.Getenv("CARD_UID_LOG_DIR"),
		Debug:    os.Getenv("CARD_UID_DEBUG") == "1",
	}

	levelName := os.Getenv("CARD_UID_LOG_LEVEL")
	if levelName == "" && s != nil {
		levelName = s.LogLevel
	}
	if level, err := logging.ParseLevel(levelName); err == nil {
		cfg.LogLevel = level
	}

	if cfg.Debug {
		cfg.LogLevel = logging.LevelDebug
	}

	return cfg
}
