package race

import (
	"testing"

	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/goanalyzer/internal/model"
	"github.com/standardbeagle/goanalyzer/internal/parsegw"
)

func TestFindLaunchesAndFreeNames(t *testing.T) {
	src := `package main

func f() {
	x := 1
	go func() {
		x = 2
	}()
}
`
	g := parsegw.New()
	res, err := g.Parse("file:///t.go", []byte(src))
	require.NoError(t, err)
	defer res.Tree.Close()

	launches := FindLaunches(res.Tree.RootNode(), res.Source)
	require.Len(t, launches, 1)
	require.True(t, launches[0].FreeNames["x"])
}

func TestClassifyUnguardedWriteIsRaceHigh(t *testing.T) {
	sym := &model.Symbol{Name: "x"}
	writeRange := model.Range{Start: model.Position{Line: 5, Character: 1}}
	accesses := []Access{
		{Kind: AccessWrite, InsideLaunch: true, Range: writeRange},
		{Kind: AccessRead, InsideLaunch: false, Range: model.Range{Start: model.Position{Line: 6, Character: 1}}},
	}
	launches := []Launch{{FreeNames: map[string]bool{"x": true}}}
	sevs := Classify(nil, sym, accesses, launches)
	require.Len(t, sevs, 1)
	require.Equal(t, writeRange, sevs[0].Range)
	require.Equal(t, model.RaceHigh, sevs[0].Severity)
}

func TestClassifyNoOutsideAccessIsNoRace(t *testing.T) {
	sym := &model.Symbol{Name: "x"}
	accesses := []Access{
		{Kind: AccessWrite, InsideLaunch: true},
	}
	launches := []Launch{{FreeNames: map[string]bool{"x": true}}}
	sevs := Classify(nil, sym, accesses, launches)
	require.Empty(t, sevs)
}

// TestClassifyDoesNotMarkUnrelatedMutexAsCovering guards against the
// unsoundness where locking one receiver was treated as covering an
// access on an unrelated field of a different instance.
func TestClassifyDoesNotMarkUnrelatedMutexAsCovering(t *testing.T) {
	src := `package main

type box struct {
	mu      sync.Mutex
	counter int
}

func f(x, other *box) {
	other.mu.Lock()
	x.counter = 2
	other.mu.Unlock()
}
`
	g := parsegw.New()
	res, err := g.Parse("file:///t.go", []byte(src))
	require.NoError(t, err)
	defer res.Tree.Close()

	root := res.Tree.RootNode()
	fn := EnclosingFuncAt(root, model.Position{Line: 9, Character: 2})
	require.NotNil(t, fn)

	counterNode := findFieldAccess(root, res.Source, "x", "counter")
	require.NotNil(t, counterNode)

	sym := &model.Symbol{Name: "counter"}
	accesses := []Access{{
		Node:     counterNode,
		Range:    model.Range{Start: model.Position{Line: 9, Character: 2}},
		Offset:   counterNode.StartByte(),
		Kind:     AccessWrite,
		FuncRoot: fn,
	}}
	launches := []Launch{{FreeNames: map[string]bool{"counter": true}}}
	sevs := Classify(res.Source, sym, accesses, launches)
	require.Len(t, sevs, 1)
	require.Equal(t, model.RaceHigh, sevs[0].Severity)
}

// findFieldAccess walks the tree for a selector_expression whose operand
// text and field text match, returning the field node.
func findFieldAccess(n *tree_sitter.Node, source []byte, operand, field string) *tree_sitter.Node {
	if n.Kind() == "selector_expression" {
		if op := n.ChildByFieldName("operand"); op != nil && string(source[op.StartByte():op.EndByte()]) == operand {
			if f := n.ChildByFieldName("field"); f != nil && string(source[f.StartByte():f.EndByte()]) == field {
				return f
			}
		}
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		if c := n.Child(uint(i)); c != nil {
			if found := findFieldAccess(c, source, operand, field); found != nil {
				return found
			}
		}
	}
	return nil
}
