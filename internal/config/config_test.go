package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nebula-lang/nebula/internal/config"
)

func TestLoadMissingFileReturnsEmptyConfig(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, "", cfg.LogLevel)
	require.Nil(t, cfg.Optimize)
}

func TestLoadParsesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nebula.yaml")
	contents := "" +
		"log_level: debug\n" +
		"optimize: 0\n" +
		"ship_properties: [FUEL, SHIELD]\n" +
		"planet_properties: [MORALE]\n" +
		"keymap_file: keymaps.db\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.NotNil(t, cfg.Optimize)
	require.Equal(t, 0, *cfg.Optimize)
	require.Equal(t, []string{"FUEL", "SHIELD"}, cfg.ShipProperties)
	require.Equal(t, []string{"MORALE"}, cfg.PlanetProperties)
	require.Equal(t, "keymaps.db", cfg.KeymapFile)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nebula.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: [unterminated"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}
