package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the process-wide logger. verbose enables debug
// output, which includes full upstream http transcripts when resty
// instrumentation is attached.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
