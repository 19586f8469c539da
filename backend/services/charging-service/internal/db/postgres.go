package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	libdb "chargeshare/backend/libs/db"
)

//go:embed schema.sql
var schema string

// NewPostgres returns shared DB connection.
func NewPostgres(dsn string) (*sql.DB, error) {
	return libdb.NewPostgresDB(dsn)
}

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
