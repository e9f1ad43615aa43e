// Package console renders results for the terminal and sets up logging.
package console

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogger configures the global slog logger. With a non-empty file,
// output goes to a size-rotated log file instead of stderr; the returned
// closer releases it.
func SetupLogger(level, file string) io.Closer {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if file != "" {
		lj := &lumberjack.Logger{
			Filename:  file,
			MaxSize:   20, // MB
			MaxAge:    28,
			Compress:  true,
			LocalTime: true,
		}
		w, closer = lj, lj
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	slog.SetDefault(slog.New(handler))
	return closer
}

// ParseLevel maps a config level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
