package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/goanalyzer/internal/model"
	"github.com/standardbeagle/goanalyzer/internal/parsegw"
	"github.com/standardbeagle/goanalyzer/internal/scope"
)

func run(t *testing.T, src, name string) ([]model.UseSite, func()) {
	t.Helper()
	g := parsegw.New()
	res, err := g.Parse("file:///t.go", []byte(src))
	require.NoError(t, err)
	root := scope.Build(res.Tree.RootNode(), res.Source)
	sym := root.Innermost(model.Position{Line: 100, Character: 0}).Lookup(name)
	if sym == nil {
		// fall back: search the whole tree for the first scope declaring it
		sym = firstDeclaring(root, name)
	}
	require.NotNil(t, sym)
	sites := Classify(res.Tree.RootNode(), res.Source, root, sym)
	return sites, func() { res.Tree.Close() }
}

func firstDeclaring(s *model.Scope, name string) *model.Symbol {
	if sym, ok := s.Symbols[name]; ok {
		return sym
	}
	for _, c := range s.Children {
		if sym := firstDeclaring(c, name); sym != nil {
			return sym
		}
	}
	return nil
}

func classificationsOf(sites []model.UseSite) []model.UseClassification {
	out := make([]model.UseClassification, len(sites))
	for i, s := range sites {
		out[i] = s.Classification
	}
	return out
}

func TestDeclarationAndUse(t *testing.T) {
	src := `package main

func f() {
	x := 1
	_ = x
}
`
	sites, done := run(t, src, "x")
	defer done()
	require.Len(t, sites, 2)
	require.Equal(t, model.ClassDeclaration, sites[0].Classification)
	require.Equal(t, model.ClassUse, sites[1].Classification)
}

func TestReassignment(t *testing.T) {
	src := `package main

func f() {
	x := 1
	x = 2
	_ = x
}
`
	sites, done := run(t, src, "x")
	defer done()
	classes := classificationsOf(sites)
	require.Contains(t, classes, model.ClassReassignment)
}

func TestPointerSite(t *testing.T) {
	src := `package main

func f() {
	x := 1
	p := &x
	_ = p
}
`
	sites, done := run(t, src, "x")
	defer done()
	classes := classificationsOf(sites)
	require.Contains(t, classes, model.ClassPointer)
}

func TestCapturedInClosure(t *testing.T) {
	src := `package main

func f() {
	x := 1
	go func() {
		_ = x
	}()
}
`
	sites, done := run(t, src, "x")
	defer done()
	classes := classificationsOf(sites)
	require.Contains(t, classes, model.ClassCaptured)
}
