// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"strings"
)

// New returns a JSON logger writing to w at the named level.  Unknown level
// names fall back to INFO and are reported through the returned logger.
func New(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	err := lvl.UnmarshalText([]byte(strings.ToUpper(level)))

	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: true,
	}))
	if err != nil {
		l.Warn("unknown log level, using INFO", "level", level)
	}
	return l
}
