//go:build leaktests
// +build leaktests

package lspserver

import (
	"context"
	"io"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/standardbeagle/goanalyzer/internal/config"
)

// TestServeNoGoroutineLeak checks that the per-request executor pool
// spawned by Serve (bounded by execSem) fully drains once the transport
// closes, leaving no stray goroutines behind.
func TestServeNoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	pr, pw := io.Pipe()
	transport := NewTransport(pr, io.Discard)
	server := New(config.Default(), transport)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	pw.Close()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("Serve did not return after transport close")
	}

	time.Sleep(50 * time.Millisecond)
}
