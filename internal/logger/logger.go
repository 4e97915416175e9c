// Package logger provides slog helpers for the app.
package logger

import (
	"log/slog"
	"os"

	"github.com/handsomefox/upcoming-watchlist/internal/env"
)

// New returns the process-wide logger. Production gets JSON output for log
// collectors, local keeps the friendlier text handler.
func New(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if env.Current == env.Production {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "nil")
	}
	return slog.String("err", err.Error())
}
