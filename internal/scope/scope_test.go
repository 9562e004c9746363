package scope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/goanalyzer/internal/model"
	"github.com/standardbeagle/goanalyzer/internal/parsegw"
)

func parse(t *testing.T, src string) ([]byte, *model.Scope, func()) {
	t.Helper()
	g := parsegw.New()
	res, err := g.Parse("file:///t.go", []byte(src))
	require.NoError(t, err)
	root := Build(res.Tree.RootNode(), res.Source)
	return res.Source, root, func() { res.Tree.Close() }
}

func TestParamsVisibleInBody(t *testing.T) {
	src := `package main

func add(a, b int) int {
	return a + b
}
`
	_, root, done := parse(t, src)
	defer done()

	sym := Resolve(root, model.Position{Line: 3, Character: 9}, "a")
	require.NotNil(t, sym)
	require.Equal(t, "a", sym.Name)
}

func TestShortVarShadowsOuter(t *testing.T) {
	src := `package main

func f() {
	x := 1
	if true {
		x := 2
		_ = x
	}
	_ = x
}
`
	_, root, done := parse(t, src)
	defer done()

	inner := Resolve(root, model.Position{Line: 6, Character: 2}, "x")
	outer := Resolve(root, model.Position{Line: 8, Character: 1}, "x")
	require.NotNil(t, inner)
	require.NotNil(t, outer)
	require.NotSame(t, inner, outer)
}

func TestRangeClauseDeclaresLoopVars(t *testing.T) {
	src := `package main

func f(m map[string]int) {
	for k, v := range m {
		_ = k
		_ = v
	}
}
`
	_, root, done := parse(t, src)
	defer done()

	k := Resolve(root, model.Position{Line: 4, Character: 6}, "k")
	v := Resolve(root, model.Position{Line: 5, Character: 6}, "v")
	require.NotNil(t, k)
	require.NotNil(t, v)
}

func TestPartialRedeclarationKeepsSameSymbol(t *testing.T) {
	src := `package main

import "errors"

func f() error {
	a, err := 1, error(nil)
	b, err := 2, errors.New("x")
	_ = a
	_ = b
	return err
}
`
	_, root, done := parse(t, src)
	defer done()

	sym := Resolve(root, model.Position{Line: 9, Character: 8}, "err")
	require.NotNil(t, sym)
	require.GreaterOrEqual(t, len(sym.BindingSites), 2)
}
