// Package applog wires a structured log/slog logger with
// lmittmann/tint for every cmd/ binary, following
// USA-RedDragon/DMRHub/cmd/root.go's setupLogger: pick a
// tint.NewHandler by the configured level (warn and error write to
// stderr, debug and info write every record to stdout), and install
// it as the process default.
package applog

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

func tintHandler(w io.Writer, lvl slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{Level: lvl})
}

// New builds and installs the default logger for level (one of debug,
// info, warn, error — case-insensitive, defaulting to info for
// anything else).
func New(level string) *slog.Logger {
	var logger *slog.Logger
	switch strings.ToLower(level) {
	case "debug":
		logger = slog.New(tintHandler(os.Stdout, slog.LevelDebug))
	case "warn":
		logger = slog.New(tintHandler(os.Stderr, slog.LevelWarn))
	case "error":
		logger = slog.New(tintHandler(os.Stderr, slog.LevelError))
	case "info", "":
		logger = slog.New(tintHandler(os.Stdout, slog.LevelInfo))
	default:
		logger = slog.New(tintHandler(os.Stdout, slog.LevelInfo))
	}
	slog.SetDefault(logger)
	return logger
}
