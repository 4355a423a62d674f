package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureGeneratesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	cfg, err := Ensure(path)
	require.NoError(t, err)
	assert.Equal(t, 100.0, cfg.MinBalance)
	assert.True(t, cfg.RestrictMode)
	assert.Equal(t, "uidcheck.db", cfg.DatabasePath)

	// Second call loads the generated file instead of regenerating.
	cfg.MinBalance = 250.0
	require.NoError(t, cfg.Save(path))

	loaded, err := Ensure(path)
	require.NoError(t, err)
	assert.Equal(t, 250.0, loaded.MinBalance)
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{AdminIDs: []int64{100, 200}}
	assert.True(t, cfg.IsAdmin(100))
	assert.True(t, cfg.IsAdmin(200))
	assert.False(t, cfg.IsAdmin(300))
	assert.False(t, (&Config{}).IsAdmin(100))
}
