package bhtsne

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with the engine's step-level diagnostics.
type Logger struct {
	*slog.Logger
}

// NewTextLogger creates a Logger that writes human-readable text to
// stderr at the given minimum level.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger discards all log output. This is the default: Step stays
// allocation-light unless a caller opts into logging.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)}))}
}

// logStep records one step's diagnostics at Debug level: iteration
// count, tree size, and the gradient normalizer.
func (l *Logger) logStep(t int, numCells int, z float64) {
	l.Debug("step", "t", t, "tree_cells", numCells, "z", z)
}
