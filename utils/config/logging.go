package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig configures the global logger
type LogConfig struct {
	Level    string `yaml:"level"`  // trace, debug, info, warn, error
	Format   string `yaml:"format"` // console or json
	Output   string `yaml:"output"` // stdout, stderr or file
	FilePath string `yaml:"filePath,omitempty"`
}

// Verbose indicates whether verbose logging is enabled
var Verbose bool

// InitLogger initializes the global zerolog logger from cfg. Verbose forces debug level.
func InitLogger(cfg LogConfig) error {
	levelName := strings.ToLower(cfg.Level)
	if levelName == "" {
		levelName = "info"
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}
	if Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "file":
		if cfg.FilePath == "" {
			return fmt.Errorf("logging output 'file' requires filePath")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file '%s': %w", cfg.FilePath, err)
		}
		output = file
	default:
		output = os.Stderr
	}

	if !strings.EqualFold(cfg.Format, "json") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return nil
}

// VerboseLog logs high-level operation information when verbose mode is on
func VerboseLog(format string, args ...interface{}) {
	if Verbose {
		log.Info().Msgf(format, args...)
	}
}

// DebugLog logs detailed internal information at debug level
func DebugLog(format string, args ...interface{}) {
	if Verbose {
		log.Debug().Msgf(format, args...)
	}
}

// Logger returns a child logger tagged with component
func Logger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
