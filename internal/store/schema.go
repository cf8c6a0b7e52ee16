package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "embed"
)

// schemaSQL always describes the current version. Its statements are all
// IF NOT EXISTS, so applying it to an older database only adds new tables.
//
//go:embed schema.sql
var schemaSQL string

const schemaVersion = 2

// upgrades[v] moves a version v database to v+1. Columns added to existing
// tables need an entry here as well as in schema.sql.
var upgrades = map[int]string{
	1: "ALTER TABLE sync_state ADD COLUMN last_partial INTEGER NOT NULL DEFAULT 0",
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	version, err := storedVersion(ctx, tx)
	if err != nil {
		return err
	}
	switch {
	case version == 0:
		// Fresh database, created at the current version.
	case version > schemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported %d", version, schemaVersion)
	default:
		for v := version; v < schemaVersion; v++ {
			if _, err := tx.ExecContext(ctx, upgrades[v]); err != nil {
				return fmt.Errorf("upgrade schema %d to %d: %w", v, v+1, err)
			}
		}
	}

	if version != schemaVersion {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO metadata(key, value) VALUES('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, strconv.Itoa(schemaVersion)); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}
	return tx.Commit()
}

// storedVersion returns 0 when the database has no version yet.
func storedVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	var value string
	err := tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", value, err)
	}
	return v, nil
}
