package cursor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/goanalyzer/internal/model"
	"github.com/standardbeagle/goanalyzer/internal/parsegw"
)

const src = `package main

func main() {
	x := 1
	_ = x
}
`

func TestLocateFindsIdentifier(t *testing.T) {
	g := parsegw.New()
	res, err := g.Parse("file:///t.go", []byte(src))
	require.NoError(t, err)
	defer res.Tree.Close()

	loc, ok := Locate(res.Tree.RootNode(), res.Source, model.Position{Line: 3, Character: 1})
	require.True(t, ok)
	require.Equal(t, "x", loc.Name)
}

func TestLocateMissOnWhitespace(t *testing.T) {
	g := parsegw.New()
	res, err := g.Parse("file:///t.go", []byte(src))
	require.NoError(t, err)
	defer res.Tree.Close()

	_, ok := Locate(res.Tree.RootNode(), res.Source, model.Position{Line: 0, Character: 7})
	require.False(t, ok)
}
