package world

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// schemaSQL is the keymap-registry schema, following banksean-sand's
// boxer.go embedded-schema pattern (db.Open + one Exec of the whole
// file, no migration framework for a schema this small).
//
//go:embed schema.sql
var schemaSQL string

// KeymapStore persists a World's keymap registry across CLI
// sessions. This is host-owned naming/binding data living outside the
// VM's value stacks, not VM-image save/load.
type KeymapStore struct {
	db *sql.DB
}

// OpenKeymapStore opens (creating if necessary) a sqlite-backed keymap
// store at path, in WAL mode for the same reason banksean-sand's Boxer
// enables it: a CLI process and a concurrent REPL session reading the
// same file should not block each other on a write.
func OpenKeymapStore(path string) (*KeymapStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening keymap store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing keymap schema: %w", err)
	}
	return &KeymapStore{db: db}, nil
}

// Close releases the store's database handle.
func (s *KeymapStore) Close() error {
	return s.db.Close()
}

// Save writes every keymap currently registered on w to the store,
// replacing whatever it held for names w still defines.
func (s *KeymapStore) Save(w *World) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	names := make([]string, 0, len(w.keymaps))
	for name := range w.keymaps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		k := w.keymaps[name]
		if _, err := tx.Exec(`INSERT OR REPLACE INTO keymaps(name) VALUES (?)`, k.Name); err != nil {
			return fmt.Errorf("saving keymap %s: %w", k.Name, err)
		}
		if _, err := tx.Exec(`DELETE FROM keymap_parents WHERE keymap = ?`, k.Name); err != nil {
			return err
		}
		for i, p := range k.Parents {
			if _, err := tx.Exec(`INSERT INTO keymap_parents(keymap, parent, position) VALUES (?, ?, ?)`,
				k.Name, p.Name, i); err != nil {
				return fmt.Errorf("saving parent of %s: %w", k.Name, err)
			}
		}
		if _, err := tx.Exec(`DELETE FROM keymap_bindings WHERE keymap = ?`, k.Name); err != nil {
			return err
		}
		for code, cmd := range k.Bindings {
			if _, err := tx.Exec(`INSERT INTO keymap_bindings(keymap, code, command) VALUES (?, ?, ?)`,
				k.Name, code, cmd); err != nil {
				return fmt.Errorf("saving binding of %s: %w", k.Name, err)
			}
		}
	}
	return tx.Commit()
}

// Load populates w's keymap registry from the store, creating each
// keymap (and its parent links) before replaying its bindings, so
// KeyFind's parent fallback works immediately after Load returns.
func (s *KeymapStore) Load(w *World) error {
	rows, err := s.db.Query(`SELECT name FROM keymaps ORDER BY name`)
	if err != nil {
		return fmt.Errorf("listing keymaps: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		names = append(names, name)
	}
	rows.Close()

	for _, name := range names {
		w.DefineKeymap(name)
	}

	for _, name := range names {
		k := w.keymaps[strings.ToUpper(name)]

		prows, err := s.db.Query(`SELECT parent FROM keymap_parents WHERE keymap = ? ORDER BY position`, name)
		if err != nil {
			return fmt.Errorf("loading parents of %s: %w", name, err)
		}
		var parents []string
		for prows.Next() {
			var parent string
			if err := prows.Scan(&parent); err != nil {
				prows.Close()
				return err
			}
			parents = append(parents, parent)
		}
		prows.Close()
		for _, parent := range parents {
			k.AddParent(w.DefineKeymap(parent))
		}

		brows, err := s.db.Query(`SELECT code, command FROM keymap_bindings WHERE keymap = ?`, name)
		if err != nil {
			return fmt.Errorf("loading bindings of %s: %w", name, err)
		}
		for brows.Next() {
			var code int
			var command string
			if err := brows.Scan(&code, &command); err != nil {
				brows.Close()
				return err
			}
			k.Bind(code, command)
		}
		brows.Close()
	}
	return nil
}
