// Package semanticbridge talks to an optional external helper process that
// resolves a Symbol authoritatively using go/types, exchanging one JSON
// object per request over the child's stdin/stdout. Adapted from the
// teacher's subprocess-spawning convention in cmd/lci (os/exec.Command with
// StdinPipe/StdoutPipe) and grounded on original_source/src/semantic.rs's
// resolve_semantic_variable request/response shape.
package semanticbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/standardbeagle/goanalyzer/internal/errorsx"
	"github.com/standardbeagle/goanalyzer/internal/logging"
	"github.com/standardbeagle/goanalyzer/internal/model"
)

// Request is the JSON payload sent to the helper for one resolution.
type Request struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Content string `json:"content"`
}

// PosWire is a zero-based line/column pair as the helper reports it.
type PosWire struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// RangeWire is a [Start, End) span in the helper's own coordinate space.
type RangeWire struct {
	Start PosWire `json:"start"`
	End   PosWire `json:"end"`
}

// UseWire is one use entry in the helper's response.
type UseWire struct {
	Range    RangeWire `json:"range"`
	Reassign bool      `json:"reassign"`
	Captured bool      `json:"captured"`
}

// Response is the helper's JSON reply.
type Response struct {
	Name      string    `json:"name"`
	Decl      RangeWire `json:"decl"`
	Uses      []UseWire `json:"uses"`
	IsPointer bool      `json:"is_pointer"`
}

// ToModelRange converts a RangeWire to the analyzer's own Range type.
func (r RangeWire) ToModelRange() model.Range {
	return model.Range{
		Start: model.Position{Line: r.Start.Line, Character: r.Start.Col},
		End:   model.Position{Line: r.End.Line, Character: r.End.Col},
	}
}

// Bridge spawns the helper binary per request and enforces the configured
// timeout; its contribution is always advisory (spec.md §4.7).
type Bridge struct {
	path    string
	timeout time.Duration
}

func New(path string, timeout time.Duration) *Bridge {
	return &Bridge{path: path, timeout: timeout}
}

// Enabled reports whether a helper path was configured.
func (b *Bridge) Enabled() bool { return b.path != "" }

// Resolve invokes the helper for one (uri, position) query. On timeout,
// spawn failure, or a malformed/out-of-buffer response, it returns a
// HelperError and the caller falls back to the syntactic resolver.
func (b *Bridge) Resolve(ctx context.Context, uri string, pos model.Position, content string) (*Response, error) {
	if !b.Enabled() {
		return nil, errorsx.NewHelperError("resolve", false, fmt.Errorf("semantic helper not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errorsx.NewHelperError("resolve", false, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errorsx.NewHelperError("resolve", false, err)
	}

	log := logging.For("semanticbridge")
	if err := cmd.Start(); err != nil {
		return nil, errorsx.NewHelperError("resolve", false, err)
	}

	req := Request{File: uri, Line: pos.Line, Col: pos.Character, Content: content}
	enc := json.NewEncoder(stdin)
	go func() {
		defer stdin.Close()
		if err := enc.Encode(req); err != nil {
			log.Debug("helper request encode failed", "err", err)
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	done := make(chan error, 1)
	var resp Response
	go func() {
		if scanner.Scan() {
			done <- json.Unmarshal(scanner.Bytes(), &resp)
			return
		}
		done <- scanner.Err()
	}()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return nil, errorsx.NewHelperError("resolve", true, ctx.Err())
	case err := <-done:
		waitErr := cmd.Wait()
		if err != nil {
			return nil, errorsx.NewHelperError("resolve", false, err)
		}
		if waitErr != nil {
			log.Debug("helper process exited with error", "err", waitErr)
		}
		if resp.Name == "" {
			return nil, errorsx.NewHelperError("resolve", false, fmt.Errorf("empty helper response"))
		}
		lineCount := strings.Count(content, "\n") + 1
		spans := []RangeWire{resp.Decl}
		for _, u := range resp.Uses {
			spans = append(spans, u.Range)
		}
		for _, r := range spans {
			if r.Start.Line < 0 || r.Start.Col < 0 || r.End.Col < 0 || r.End.Line >= lineCount {
				return nil, errorsx.NewHelperError("resolve", false, fmt.Errorf("helper response span outside the buffer"))
			}
		}
		return &resp, nil
	}
}
