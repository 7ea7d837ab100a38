package etlconfig

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog.Logger from LoggerConfig, matching the
// teacher's pkg/logger console-writer-plus-timestamp setup.
func NewLogger(cfg LoggerConfig) (zerolog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, err
	}
	zerolog.SetGlobalLevel(level)

	switch cfg.Format {
	case "json":
		return zerolog.New(os.Stdout).With().Timestamp().Logger(), nil
	case "text", "":
		writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}
		return zerolog.New(writer).With().Timestamp().Logger(), nil
	default:
		return zerolog.Logger{}, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
}

func parseLevel(level string) (zerolog.Level, error) {
	switch level {
	case "debug", "DEBUG":
		return zerolog.DebugLevel, nil
	case "info", "INFO", "":
		return zerolog.InfoLevel, nil
	case "warn", "WARN":
		return zerolog.WarnLevel, nil
	case "error", "ERROR":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}
