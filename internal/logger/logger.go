// Package logger builds the process-wide slog logger. Both binaries log
// JSON to stdout; the level comes from configuration.
package logger

import (
	"log/slog"
	"os"

	"github.com/agrocredit-engine/internal/config"
)

// NewLogger creates a JSON slog.Logger at the configured level. An
// unparseable level falls back to info rather than failing startup. Source
// locations are attached only at debug level; they are noise in production
// volume.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})

	log := slog.New(handler)
	log.Info("logger initialized", "level", level)
	return log
}
