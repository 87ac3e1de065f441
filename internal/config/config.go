// Package config loads the optional nebula.yaml file the CLI reads
// World-level and logging defaults from, following banksean-sand's
// config-file-before-flags pattern — here with a plain
// gopkg.in/yaml.v3 file instead of kong's built-in JSON
// resolver, since this runtime's config needs (ship/planet property
// seeds, a keymap file path) are its own concerns, not CLI-flag mirrors.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional nebula.yaml shape. Every field is optional;
// a missing file or an absent key just leaves the runtime's own
// defaults in place.
type Config struct {
	// LogLevel seeds the CLI's --log-level default when set.
	LogLevel string `yaml:"log_level"`
	// Optimize seeds the CLI's --optimize default when set.
	Optimize *int `yaml:"optimize"`

	// ShipProperties and PlanetProperties are registered on every
	// World this process builds via World.AddShipProperty/
	// AddPlanetProperty, so a host's custom CreateShipProperty/
	// CreatePlanetProperty names survive a restart without every script
	// re-declaring them.
	ShipProperties   []string `yaml:"ship_properties"`
	PlanetProperties []string `yaml:"planet_properties"`

	// KeymapFile, when set, names the sqlite file a Context's World
	// loads its keymap registry from at startup and saves it back to
	// on a clean exit (pkg/world.KeymapStore).
	KeymapFile string `yaml:"keymap_file"`

	// OutputFile, when set, redirects Print's default file handle (0)
	// to this path instead of stdout, opened through
	// pkg/world.FileTable.OpenPath's backoff-retried OpenFile.
	OutputFile string `yaml:"output_file"`
}

// Load reads path and parses it as YAML. A missing file is not an
// error — it returns an empty Config so the caller's own defaults
// apply — but a present, malformed file is.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}
