package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultThenEnvOverride(t *testing.T) {
	t.Setenv("GO_ANALYZER_CACHE_SIZE", "50")
	t.Setenv("GO_ANALYZER_SEMANTIC", "0")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 50, cfg.CacheSize)
	require.False(t, cfg.SemanticEnabled)
	require.Equal(t, 300, cfg.CacheTTLSeconds)
}

func TestProjectKDLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(dir+"/.goanalyzer.kdl", []byte(`
cache {
    size 7
    ttl_seconds 60
}
semantic {
    enabled false
}
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.CacheSize)
	require.Equal(t, 60, cfg.CacheTTLSeconds)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.CacheSize = 0
	require.Error(t, cfg.Validate())
}
