package main

import (
	"github.com/nebula-lang/nebula/internal/config"
	"github.com/nebula-lang/nebula/pkg/world"
)

// newWorld builds a World seeded from cctx's Config (ship/planet property
// names) and, if a keymap file is configured, backed by a KeymapStore
// loaded before the script runs. The returned closer flushes that store
// back to disk; callers must defer it even when the store is nil (it is
// then a no-op) so every code path that builds a World releases it the
// same way.
func newWorld(cctx *Context) (*world.World, func() error, error) {
	w := world.NewWorld(cctx.Logger)

	cfg := cctx.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	for _, name := range cfg.ShipProperties {
		w.AddShipProperty(name)
	}
	for _, name := range cfg.PlanetProperties {
		w.AddPlanetProperty(name)
	}

	if cfg.OutputFile != "" {
		handle, err := w.Files().OpenPath(cfg.OutputFile)
		if err != nil {
			return nil, nil, err
		}
		w.Files().SetDefault(w.Files().Writer(handle))
	}

	if cfg.KeymapFile == "" {
		return w, func() error { return nil }, nil
	}

	store, err := world.OpenKeymapStore(cfg.KeymapFile)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Load(w); err != nil {
		store.Close()
		return nil, nil, err
	}
	closer := func() error {
		if err := store.Save(w); err != nil {
			store.Close()
			return err
		}
		return store.Close()
	}
	return w, closer, nil
}
