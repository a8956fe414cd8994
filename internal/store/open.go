package store

import (
	"context"
	"strings"
)

// Open selects a DataStore implementation from the database URL: postgres
// URLs get the pgx pool, anything else is treated as a SQLite file path
// (optionally prefixed sqlite://).
func Open(ctx context.Context, databaseURL string) (DataStore, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgresStore(ctx, databaseURL)
	default:
		return NewSQLiteStore(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
	}
}
