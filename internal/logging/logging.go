// Package logging configures the process-wide structured logger. Output
// always goes to stderr: stdout is reserved for the LSP wire protocol.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	root    *slog.Logger
	initted bool
)

// Init configures the root logger from a GO_ANALYZER_LOG_LEVEL-style string
// (debug|info|warn|error, default info) and an output writer (os.Stderr in
// production, a buffer in tests).
func Init(level string, w io.Writer) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	root = slog.New(handler)
	initted = true
	return root
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Root returns the configured root logger, initializing a sane default
// (info level, stderr) if Init was never called.
func Root() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !initted {
		mu.Unlock()
		Init("info", os.Stderr)
		mu.Lock()
	}
	return root
}

// For returns a child logger tagged with a component name, mirroring the
// teacher's Log(component, format, args...) convention but structured.
func For(component string) *slog.Logger {
	return Root().With("component", component)
}
