// Package parsegw is the Parser Gateway: it turns buffer text into a
// tree-sitter CST, keyed for reuse by (buffer id, content hash), and
// reports the entity counts the indexingStatus notification needs.
package parsegw

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cespare/xxhash/v2"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/standardbeagle/goanalyzer/internal/errorsx"
	"github.com/standardbeagle/goanalyzer/internal/logging"
)

// ContentHash returns the cache-key hash half for a buffer's text.
func ContentHash(text []byte) uint64 {
	return xxhash.Sum64(text)
}

// ParseResult is a parsed tree plus the telemetry the Request Surface
// reports back to the client (spec.md §4.9's parseInfo notification).
type ParseResult struct {
	Tree        *tree_sitter.Tree
	Source      []byte
	ContentHash uint64
	EntityCounts EntityCounts
}

// EntityCounts backs the goanalyzer/indexingStatus notification; see
// SPEC_FULL.md §3.2.
type EntityCounts struct {
	Variables int
	Functions int
	Channels  int
	Goroutines int
}

// Gateway owns one tree-sitter parser per goroutine slot (parsers are not
// safe for concurrent Parse calls) via a sync.Pool, mirroring the teacher's
// per-language parser pool in internal/parser/parser.go.
type Gateway struct {
	pool sync.Pool
}

func New() *Gateway {
	g := &Gateway{}
	g.pool.New = func() any {
		parser := tree_sitter.NewParser()
		lang := tree_sitter.NewLanguage(tree_sitter_go.Language())
		if err := parser.SetLanguage(lang); err != nil {
			logging.For("parsegw").Error("set language failed", "err", err)
			return nil
		}
		return parser
	}
	return g
}

// Parse builds a tree for the given source. The tree-sitter C library
// mutates its input buffer, so the caller's slice is defensively copied
// before parsing, matching the teacher's ParseFile discipline.
func (g *Gateway) Parse(uri string, text []byte) (result *ParseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			debug.PrintStack()
			err = errorsx.NewParseError(uri, 0, fmt.Errorf("panic: %v", r))
		}
	}()

	buf := make([]byte, len(text))
	copy(buf, text)

	v := g.pool.Get()
	parser, _ := v.(*tree_sitter.Parser)
	if parser == nil {
		return nil, errorsx.NewParseError(uri, 0, fmt.Errorf("tree-sitter parser unavailable"))
	}
	defer g.pool.Put(parser)

	tree := parser.Parse(buf, nil)
	if tree == nil {
		return nil, errorsx.NewParseError(uri, 0, fmt.Errorf("tree-sitter returned no tree"))
	}

	counts := countEntities(tree.RootNode())

	return &ParseResult{
		Tree:         tree,
		Source:       buf,
		ContentHash:  ContentHash(buf),
		EntityCounts: counts,
	}, nil
}

// countEntities walks the tree once counting the node kinds
// indexingStatus reports, grounded on original_source/src/analysis.rs's
// count_entities/build_graph_data.
func countEntities(root *tree_sitter.Node) EntityCounts {
	var counts EntityCounts
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "var_declaration", "short_var_declaration":
			counts.Variables++
		case "function_declaration", "method_declaration", "func_literal":
			counts.Functions++
		case "channel_type":
			counts.Channels++
		case "go_statement":
			counts.Goroutines++
		}
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			if c := n.Child(uint(i)); c != nil {
				walk(c)
			}
		}
	}
	walk(root)
	return counts
}
