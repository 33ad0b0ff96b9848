package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
host = "127.0.0.1"
port = 9001
validator_address = "abc123"
mining_enabled = true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Host)
	require.Equal(t, 9001, cfg.Port)
	require.True(t, cfg.MiningEnabled)
	require.True(t, cfg.APIEnabled) // untouched default
	require.Equal(t, 8080, cfg.APIPort)
}

func TestLoadValidatorSeeds(t *testing.T) {
	raw := []byte(`
validators:
  - address: v1
    stake: 10000
  - address: v2
    stake: 20000
`)
	seeds, err := LoadValidatorSeeds(raw)
	require.NoError(t, err)
	require.Len(t, seeds.Validators, 2)
	require.Equal(t, "v1", seeds.Validators[0].Address)
	require.Equal(t, 20000.0, seeds.Validators[1].Stake)
}
