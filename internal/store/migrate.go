package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spacehq/space/internal/core"
)

const migrationsSchema = `
CREATE TABLE IF NOT EXISTS _migrations (
  name TEXT PRIMARY KEY,
  applied_at INTEGER NOT NULL
);
`

// applyMigrations runs pending named migrations in order. Each migration
// runs in its own transaction with a row-count safeguard: if any tracked
// table loses rows, the transaction rolls back and the error is fatal.
func applyMigrations(db *sql.DB, def Definition) error {
	if _, err := db.Exec(migrationsSchema); err != nil {
		return fmt.Errorf("%w: create _migrations for %s: %v", core.ErrStorage, def.Name, err)
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return err
	}

	for _, migration := range def.Migrations {
		if _, done := applied[migration.Name]; done {
			continue
		}
		if err := runMigration(db, def, migration); err != nil {
			return err
		}
	}
	return nil
}

func appliedMigrations(db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.Query("SELECT name FROM _migrations")
	if err != nil {
		return nil, fmt.Errorf("%w: read _migrations: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	applied := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = struct{}{}
	}
	return applied, rows.Err()
}

func runMigration(db *sql.DB, def Definition, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin migration %s: %v", core.ErrStorage, migration.Name, err)
	}

	before, err := tableRowCounts(tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	switch {
	case migration.Fn != nil:
		err = migration.Fn(tx)
	case migration.SQL != "":
		_, err = tx.Exec(migration.SQL)
	default:
		err = fmt.Errorf("empty migration")
	}
	if err != nil {
		_ = tx.Rollback()
		return &core.MigrationError{DB: def.Name, Migration: migration.Name, Reason: err.Error()}
	}

	after, err := tableRowCounts(tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for table, count := range before {
		got, exists := after[table]
		if !exists {
			_ = tx.Rollback()
			return &core.MigrationError{
				DB: def.Name, Migration: migration.Name,
				Reason: fmt.Sprintf("table %s dropped (%d rows lost)", table, count),
			}
		}
		if got < count {
			_ = tx.Rollback()
			return &core.MigrationError{
				DB: def.Name, Migration: migration.Name,
				Reason: fmt.Sprintf("table %s lost rows: %d -> %d", table, count, got),
			}
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO _migrations (name, applied_at) VALUES (?, ?)",
		migration.Name, time.Now().Unix(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: record migration %s: %v", core.ErrStorage, migration.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit migration %s: %v", core.ErrStorage, migration.Name, err)
	}
	return nil
}

// tableRowCounts counts rows in every user table except _migrations.
func tableRowCounts(tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.Query(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != '_migrations'
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		var count int64
		if err := tx.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("%w: count %s: %v", core.ErrStorage, table, err)
		}
		counts[table] = count
	}
	return counts, nil
}
