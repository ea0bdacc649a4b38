package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion names the layout in schema.sql. Databases stamped with any
// other version are refused rather than rewritten.
const schemaVersion = "1"

// ErrSchemaVersion reports a history database written by an incompatible build.
var ErrSchemaVersion = errors.New("unsupported history schema")

// ensureSchema creates missing tables, stamps a fresh database with
// schemaVersion and checks the stamp of an existing one.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO metadata(key, value) VALUES('schema_version', ?) ON CONFLICT(key) DO NOTHING",
		schemaVersion); err != nil {
		return fmt.Errorf("stamp schema version: %w", err)
	}

	var stamped string
	if err := tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&stamped); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if stamped != schemaVersion {
		return fmt.Errorf("%w: database has version %q, this build reads %q", ErrSchemaVersion, stamped, schemaVersion)
	}

	return tx.Commit()
}
