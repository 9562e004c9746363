// Server wires the Parser Gateway, Buffer Cache, Cursor Locator, Scope
// Resolver, Use Classifier, Concurrency Analyzer, Semantic Helper Bridge
// and Decoration Composer together behind the LSP request surface
// spec.md §4.9 describes. The per-request executor pool and the
// concurrent Use-Classifier/Concurrency-Analyzer fan-out follow
// spec.md §5, using golang.org/x/sync/errgroup the way
// other_examples/golang-tools__analysis.go and
// other_examples/DeusData-codebase-memory-mcp__pipeline.go use it to
// bound parallel work with shared cancellation.
package lspserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/goanalyzer/internal/buffercache"
	"github.com/standardbeagle/goanalyzer/internal/classify"
	"github.com/standardbeagle/goanalyzer/internal/config"
	"github.com/standardbeagle/goanalyzer/internal/cursor"
	"github.com/standardbeagle/goanalyzer/internal/decoration"
	"github.com/standardbeagle/goanalyzer/internal/errorsx"
	"github.com/standardbeagle/goanalyzer/internal/logging"
	"github.com/standardbeagle/goanalyzer/internal/model"
	"github.com/standardbeagle/goanalyzer/internal/parsegw"
	"github.com/standardbeagle/goanalyzer/internal/race"
	"github.com/standardbeagle/goanalyzer/internal/scope"
	"github.com/standardbeagle/goanalyzer/internal/semanticbridge"
	"github.com/standardbeagle/goanalyzer/internal/watch"
)

type bufferState struct {
	uri     string
	version int
	text    []byte
}

// Server owns the analyzer pipeline and the buffer table.
type Server struct {
	cfg       *config.Config
	transport *Transport
	gateway   *parsegw.Gateway
	cache     *buffercache.Cache
	bridge    *semanticbridge.Bridge
	watcher   *watch.Watcher

	mu      sync.RWMutex
	buffers map[string]*bufferState

	execSem chan struct{} // bounds the request-executor pool
}

func New(cfg *config.Config, transport *Transport) *Server {
	execWidth := 8
	var helperTimeout time.Duration
	if cfg.SemanticTimeoutMs > 0 {
		helperTimeout = time.Duration(cfg.SemanticTimeoutMs) * time.Millisecond
	}
	var bridge *semanticbridge.Bridge
	if cfg.SemanticEnabled {
		bridge = semanticbridge.New(cfg.SemanticHelperPath, helperTimeout)
	}
	s := &Server{
		cfg:       cfg,
		transport: transport,
		gateway:   parsegw.New(),
		cache:     buffercache.New(cfg.CacheSize, time.Duration(cfg.CacheTTLSeconds)*time.Second),
		bridge:    bridge,
		buffers:   make(map[string]*bufferState),
		execSem:   make(chan struct{}, execWidth),
	}
	if w, err := watch.New(s.onFileChanged); err == nil {
		s.watcher = w
	} else {
		logging.For("lspserver").Warn("file watcher unavailable, disk-side edits will not invalidate the cache", "err", err)
	}
	return s
}

// onFileChanged evicts a buffer's cached tree when its backing file changes
// on disk outside the editor session, forcing the next request to reparse.
func (s *Server) onFileChanged(bufferID string) {
	s.cache.Evict(bufferID)
}

// uriToPath converts a textDocument URI to a filesystem path for the file
// watcher, falling back to a bare prefix trim for URIs that don't parse.
func uriToPath(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return strings.TrimPrefix(uri, "file://")
}

// Serve runs the read loop until the transport closes or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	log := logging.For("lspserver")
	if s.watcher != nil {
		s.watcher.Start(ctx)
		defer s.watcher.Close()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := s.transport.ReadMessage()
		if err != nil {
			log.Debug("transport closed", "err", err)
			return err
		}

		s.execSem <- struct{}{}
		go func(req rpcRequest) {
			defer func() { <-s.execSem }()
			s.dispatch(ctx, req)
		}(req)
	}
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) {
	log := logging.For("lspserver")
	defer func() {
		if r := recover(); r != nil {
			se := errorsx.NewStageError("dispatch:"+req.Method, r)
			log.Error("stage panic", "err", se)
			if req.ID != nil {
				_ = s.transport.WriteError(req.ID, -32603, se.Error())
			}
		}
	}()

	switch req.Method {
	case "initialize":
		_ = s.transport.WriteResult(req.ID, map[string]interface{}{
			"capabilities": map[string]interface{}{
				"textDocumentSync": 1,
				"hoverProvider":    true,
				"executeCommandProvider": map[string]interface{}{
					"commands": []string{"goanalyzer/cursor", "goanalyzer/ast"},
				},
			},
		})
	case "initialized", "$/setTrace":
		// no-op notifications
	case "textDocument/didOpen":
		s.handleDidOpen(req)
	case "textDocument/didChange":
		s.handleDidChange(req)
	case "textDocument/didClose":
		s.handleDidClose(req)
	case "textDocument/hover":
		s.handleHover(ctx, req)
	case "workspace/executeCommand":
		s.handleExecuteCommand(ctx, req)
	default:
		if req.ID != nil {
			_ = s.transport.WriteError(req.ID, -32601, fmt.Sprintf("method not found: %s", req.Method))
		}
	}
}

type textDocumentItem struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
	Text    string `json:"text"`
}

type didOpenParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}

func (s *Server) handleDidOpen(req rpcRequest) {
	var p didOpenParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return
	}
	s.mu.Lock()
	s.buffers[p.TextDocument.URI] = &bufferState{uri: p.TextDocument.URI, version: p.TextDocument.Version, text: []byte(p.TextDocument.Text)}
	s.mu.Unlock()
	if s.watcher != nil {
		if err := s.watcher.Track(p.TextDocument.URI, uriToPath(p.TextDocument.URI)); err != nil {
			logging.For("lspserver").Warn("failed to watch buffer", "uri", p.TextDocument.URI, "err", err)
		}
	}
	s.parseAndNotify(p.TextDocument.URI, "manual")
}

type versionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type contentChangeEvent struct {
	Text string `json:"text"`
}

type didChangeParams struct {
	TextDocument   versionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChangeEvent            `json:"contentChanges"`
}

func (s *Server) handleDidChange(req rpcRequest) {
	var p didChangeParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return
	}
	if len(p.ContentChanges) == 0 {
		return
	}
	text := p.ContentChanges[len(p.ContentChanges)-1].Text
	s.mu.Lock()
	s.buffers[p.TextDocument.URI] = &bufferState{uri: p.TextDocument.URI, version: p.TextDocument.Version, text: []byte(text)}
	s.mu.Unlock()
	s.cache.Evict(p.TextDocument.URI)
	s.parseAndNotify(p.TextDocument.URI, "manual")
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type didCloseParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

func (s *Server) handleDidClose(req rpcRequest) {
	var p didCloseParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return
	}
	s.mu.Lock()
	delete(s.buffers, p.TextDocument.URI)
	s.mu.Unlock()
	if s.watcher != nil {
		s.watcher.Untrack(uriToPath(p.TextDocument.URI))
	}
	s.cache.Evict(p.TextDocument.URI)
}

// parseAndNotify parses the buffer (recording cache hit/miss), and
// publishes parseInfo + indexingStatus per spec.md §4.9.
func (s *Server) parseAndNotify(uri, source string) {
	s.mu.RLock()
	buf, ok := s.buffers[uri]
	s.mu.RUnlock()
	if !ok {
		return
	}

	start := time.Now()
	hash := parsegw.ContentHash(buf.text)
	cacheHit := false
	entry, ok := s.cache.Get(uri)
	if ok && entry.ContentHash == hash {
		cacheHit = true
	} else {
		if ok {
			entry.Release()
		}
		result, err := s.gateway.Parse(uri, buf.text)
		if err != nil {
			return
		}
		entry = &buffercache.Entry{BufferID: uri, Version: buf.version, ContentHash: hash, Result: result}
		s.cache.Put(uri, entry)
	}
	defer entry.Release()

	elapsedMs := float64(time.Since(start)) / float64(time.Millisecond)
	_ = s.transport.Notify("goanalyzer/parseInfo", map[string]interface{}{
		"uri":       uri,
		"source":    source,
		"cache_hit": cacheHit,
		"parse_ms":  elapsedMs,
		"code_len":  len(buf.text),
	})
	if entry.Result != nil {
		_ = s.transport.Notify("goanalyzer/indexingStatus", map[string]interface{}{
			"uri":       uri,
			"variables": entry.Result.EntityCounts.Variables,
			"functions": entry.Result.EntityCounts.Functions,
			"channels":  entry.Result.EntityCounts.Channels,
			"goroutines": entry.Result.EntityCounts.Goroutines,
		})
	}
}

// analyze runs the Cursor Locator, Scope & Declaration Resolver, then the
// Use Classifier and Concurrency Analyzer concurrently over the same CST
// (spec.md §5), and merges the result with the Decoration Composer.
func (s *Server) analyze(ctx context.Context, uri string, pos model.Position) ([]model.Decoration, error) {
	s.mu.RLock()
	buf, ok := s.buffers[uri]
	s.mu.RUnlock()
	if !ok {
		return nil, errorsx.NewRequestError("analyze", "unknown document: "+uri)
	}

	hash := parsegw.ContentHash(buf.text)
	entry, ok := s.cache.Get(uri)
	if ok && entry.ContentHash != hash {
		entry.Release()
		ok = false
	}
	if !ok {
		result, err := s.gateway.Parse(uri, buf.text)
		if err != nil {
			return nil, err
		}
		entry = &buffercache.Entry{BufferID: uri, Version: buf.version, ContentHash: hash, Result: result}
		s.cache.Put(uri, entry)
	}
	defer entry.Release()

	root := entry.Result.Tree.RootNode()
	loc, ok := cursor.Locate(root, entry.Result.Source, pos)
	if !ok {
		return nil, errorsx.NewCursorError(uri, pos.Line, pos.Character)
	}

	scopeRoot := scope.Build(root, entry.Result.Source)
	sym := scope.Resolve(scopeRoot, pos, loc.Name)
	if sym == nil {
		return nil, errorsx.NewResolutionError(uri, loc.Name)
	}

	if s.bridge != nil && s.bridge.Enabled() {
		if resp, err := s.bridge.Resolve(ctx, uri, pos, string(entry.Result.Source)); err == nil && resp != nil {
			sym.IsPointer = resp.IsPointer
		}
	}

	var sites []model.UseSite
	var launches []race.Launch

	var stageMu sync.Mutex
	var stageErrs []error
	recordStage := func(stage string, r any) {
		stageMu.Lock()
		stageErrs = append(stageErrs, errorsx.NewStageError(stage, r))
		stageMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				recordStage("classify", r)
			}
		}()
		sites = classify.Classify(root, entry.Result.Source, scopeRoot, sym)
		return gctx.Err()
	})
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				recordStage("race", r)
			}
		}()
		launches = race.FindLaunches(root, entry.Result.Source)
		return gctx.Err()
	})
	waitErr := g.Wait()
	switch len(stageErrs) {
	case 0:
		if waitErr != nil {
			return nil, waitErr
		}
	case 1:
		return nil, stageErrs[0]
	default:
		return nil, errorsx.NewMultiError(stageErrs)
	}

	accesses := make([]race.Access, 0, len(sites))
	for _, site := range sites {
		kind := race.AccessRead
		if site.Classification == model.ClassReassignment || site.Classification == model.ClassPointer {
			kind = race.AccessWrite
		}
		siteNode := race.NodeAt(root, site.Range.Start)
		var offset uint
		if siteNode != nil {
			offset = siteNode.StartByte()
		}
		insideLaunch := siteNode != nil && race.IsInsideLaunch(siteNode)
		accesses = append(accesses, race.Access{
			Node:         siteNode,
			Range:        site.Range,
			Offset:       offset,
			Kind:         kind,
			InsideLaunch: insideLaunch,
			FuncRoot:     race.EnclosingFuncAt(root, site.Range.Start),
		})
	}
	// Stamp severities only onto the specific access sites race.Classify
	// flagged, keyed by span — never broadcast to every UseSite of the
	// Symbol, or a Declaration/plain Use elsewhere would be repainted as a
	// race just because some other occurrence of the same Symbol races.
	severities := race.Classify(entry.Result.Source, sym, accesses, launches)
	bySpan := make(map[model.Range]race.AccessSeverity, len(severities))
	for _, sv := range severities {
		bySpan[sv.Range] = sv
	}
	for i := range sites {
		if sv, ok := bySpan[sites[i].Range]; ok {
			sites[i].Severity = sv.Severity
			sites[i].SyncNote = sv.Note
		}
	}

	return decoration.Compose(sites), nil
}

// AnalyzeCursor exposes analyze to the secondary MCP Request Surface.
func (s *Server) AnalyzeCursor(ctx context.Context, uri string, pos model.Position) ([]model.Decoration, error) {
	return s.analyze(ctx, uri, pos)
}

// DumpAST exposes the CST S-expression dump to the secondary MCP Request
// Surface.
func (s *Server) DumpAST(ctx context.Context, uri string) (string, error) {
	s.mu.RLock()
	buf, ok := s.buffers[uri]
	s.mu.RUnlock()
	if !ok {
		return "", errorsx.NewRequestError("ast", "unknown document: "+uri)
	}
	result, err := s.gateway.Parse(uri, buf.text)
	if err != nil {
		return "", err
	}
	defer result.Tree.Close()
	return dumpSexp(result.Tree.RootNode()), nil
}

type positionParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     model.Position         `json:"position"`
}

func (s *Server) handleHover(ctx context.Context, req rpcRequest) {
	var p positionParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		_ = s.transport.WriteError(req.ID, -32602, "invalid params")
		return
	}
	decs, err := s.analyze(ctx, p.TextDocument.URI, p.Position)
	if err != nil {
		if _, ok := err.(*errorsx.RequestError); ok {
			_ = s.transport.WriteError(req.ID, errorsx.LSPCode(err), err.Error())
			return
		}
		// Cursor/resolution/stage failures degrade to "no hover" rather than
		// an error response: missing an identifier at the cursor is routine.
		_ = s.transport.WriteResult(req.ID, nil)
		return
	}
	if len(decs) == 0 {
		_ = s.transport.WriteResult(req.ID, nil)
		return
	}
	_ = s.transport.WriteResult(req.ID, map[string]interface{}{
		"contents": map[string]interface{}{"kind": "markdown", "value": decs[0].HoverText},
	})
}

type executeCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments"`
}

type cursorCommandArgs struct {
	URI      string         `json:"uri"`
	Position model.Position `json:"position"`
	Source   string         `json:"source"`
}

func (s *Server) handleExecuteCommand(ctx context.Context, req rpcRequest) {
	var p executeCommandParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		_ = s.transport.WriteError(req.ID, -32602, "invalid params")
		return
	}

	switch p.Command {
	case "goanalyzer/cursor":
		if len(p.Arguments) == 0 {
			_ = s.transport.WriteError(req.ID, -32602, "missing arguments")
			return
		}
		var args cursorCommandArgs
		if err := json.Unmarshal(p.Arguments[0], &args); err != nil {
			_ = s.transport.WriteError(req.ID, -32602, "invalid arguments")
			return
		}
		decs, err := s.analyze(ctx, args.URI, args.Position)
		if err != nil {
			if _, ok := err.(*errorsx.RequestError); ok {
				_ = s.transport.WriteError(req.ID, errorsx.LSPCode(err), err.Error())
				return
			}
			_ = s.transport.WriteResult(req.ID, []model.Decoration{})
			return
		}
		_ = s.transport.WriteResult(req.ID, decs)

	case "goanalyzer/ast":
		if len(p.Arguments) == 0 {
			_ = s.transport.WriteError(req.ID, -32602, "missing arguments")
			return
		}
		var args textDocumentIdentifier
		if err := json.Unmarshal(p.Arguments[0], &args); err != nil {
			_ = s.transport.WriteError(req.ID, -32602, "invalid arguments")
			return
		}
		s.mu.RLock()
		buf, ok := s.buffers[args.URI]
		s.mu.RUnlock()
		if !ok {
			_ = s.transport.WriteResult(req.ID, "")
			return
		}
		result, err := s.gateway.Parse(args.URI, buf.text)
		if err != nil {
			_ = s.transport.WriteResult(req.ID, "")
			return
		}
		defer result.Tree.Close()
		_ = s.transport.WriteResult(req.ID, dumpSexp(result.Tree.RootNode()))

	default:
		_ = s.transport.WriteError(req.ID, -32601, "unknown command: "+p.Command)
	}
}

// dumpSexp renders a CST node as an S-expression for the goanalyzer/ast
// debugging command.
func dumpSexp(n *tree_sitter.Node) string {
	if n == nil {
		return "()"
	}
	count := int(n.ChildCount())
	if count == 0 {
		return n.Kind()
	}
	out := "(" + n.Kind()
	for i := 0; i < count; i++ {
		if c := n.Child(uint(i)); c != nil {
			out += " " + dumpSexp(c)
		}
	}
	return out + ")"
}
