// Package store manages the embedded SQLite databases under
// <workspace>/.space/. Each subsystem registers its logical database
// (schema plus ordered named migrations) at package init; Open connects
// with WAL enabled and brings the schema up to date.
package store

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/spacehq/space/internal/core"

	_ "modernc.org/sqlite"
)

// Migration is a named one-shot schema change. Either SQL or Fn is set.
type Migration struct {
	Name string
	SQL  string
	Fn   func(tx *sql.Tx) error
}

// Definition describes one logical database.
type Definition struct {
	Name       string
	File       string
	Schema     string
	Migrations []Migration
}

var (
	registryMu sync.Mutex
	registry   = map[string]Definition{}
)

// Register adds a database definition. Called from subsystem package inits;
// duplicate names panic because they are programmer error.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[def.Name]; exists {
		panic(fmt.Sprintf("store: duplicate database definition %q", def.Name))
	}
	registry[def.Name] = def
}

// ResetRegistry clears registered definitions. Test-only hook.
func ResetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]Definition{}
}

// Definitions returns registered definitions sorted by name.
func Definitions() []Definition {
	registryMu.Lock()
	defer registryMu.Unlock()
	defs := make([]Definition, 0, len(registry))
	for _, def := range registry {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func lookup(name string) (Definition, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	def, ok := registry[name]
	return def, ok
}

// Open connects to a registered database, creating the workspace dot-dir
// and applying schema and pending migrations.
func Open(ws core.Workspace, name string) (*sql.DB, error) {
	def, ok := lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown database %q", core.ErrStorage, name)
	}
	return OpenDefinition(ws, def)
}

// OpenDefinition connects to an explicit definition. Used by Open and by
// tests that stage broken migrations.
func OpenDefinition(ws core.Workspace, def Definition) (*sql.DB, error) {
	if _, err := core.InitWorkspace(ws.Root); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", ws.DBPath(def.File))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", core.ErrStorage, def.File, err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %s on %s: %v", core.ErrStorage, pragma, def.File, err)
		}
	}

	if _, err := conn.Exec(def.Schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: init schema for %s: %v", core.ErrStorage, def.Name, err)
	}

	if err := applyMigrations(conn, def); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// OpenAll connects every registered database, keyed by logical name.
func OpenAll(ws core.Workspace) (map[string]*sql.DB, error) {
	dbs := make(map[string]*sql.DB)
	for _, def := range Definitions() {
		conn, err := OpenDefinition(ws, def)
		if err != nil {
			for _, open := range dbs {
				_ = open.Close()
			}
			return nil, err
		}
		dbs[def.Name] = conn
	}
	return dbs, nil
}

// CloseAll closes a map of connections, keeping the first error.
func CloseAll(dbs map[string]*sql.DB) error {
	var first error
	for _, conn := range dbs {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
