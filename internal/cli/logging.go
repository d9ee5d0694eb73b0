package cli

import (
	"io"
	"log/slog"
)

// setupLogging installs the process-wide slog handler at warn level, or
// debug level when debug is set.
func setupLogging(w io.Writer, debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
