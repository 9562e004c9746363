package parsegw

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `package main

func main() {
	var x int
	ch := make(chan int)
	go func() {
		x = 1
		_ = ch
	}()
}
`

func TestParseCountsEntities(t *testing.T) {
	g := New()
	res, err := g.Parse("file:///sample.go", []byte(sample))
	require.NoError(t, err)
	require.NotNil(t, res.Tree)
	require.GreaterOrEqual(t, res.EntityCounts.Functions, 2)
	require.Equal(t, 1, res.EntityCounts.Goroutines)
}

func TestContentHashStable(t *testing.T) {
	require.Equal(t, ContentHash([]byte("a")), ContentHash([]byte("a")))
	require.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
}
