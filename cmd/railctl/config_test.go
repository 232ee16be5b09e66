package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "railctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
interface: vcan0
bitrate: 125000
loco_slots: 4
read_timeout: 2s
script:
  - loco 3 5
  - run 10
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "vcan0", cfg.Interface)
	require.EqualValues(t, 125000, cfg.Bitrate)
	require.Equal(t, 4, cfg.LocoSlots)
	require.Equal(t, 2*time.Second, cfg.ReadTimeout)
	require.Equal(t, []string{"loco 3 5", "run 10"}, cfg.Script)
}

func TestParseConfigKeepsDefaultsForMissingFields(t *testing.T) {
	cfg, err := parseConfig([]byte("interface: vcan1\n"))
	require.NoError(t, err)
	require.Equal(t, "vcan1", cfg.Interface)
	require.Equal(t, DefaultConfig().Bitrate, cfg.Bitrate)

	cfg, err = parseConfig(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfigRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown field": "interfce: can0\n",
		"bitrate":       "bitrate: 500000\n",
		"slots":         "loco_slots: 8\n",
		"timeout":       "read_timeout: -1s\n",
	} {
		_, err := parseConfig([]byte(doc))
		require.Error(t, err, name)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
