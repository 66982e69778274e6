// Package sqlite provides the embedded durable store backed by the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"afyafamilia/internal/infra/persistence/memory"
	"afyafamilia/internal/infra/persistence/sqlstore"
	"afyafamilia/pkg/domain"
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "afyafamilia.db"

// Store is a sqlstore.Store opened on a SQLite file.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating if needed) the SQLite database at path.
func NewStore(path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// PRAGMAs apply per connection.
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	store, err := sqlstore.Open(ctx, db, sqlstore.SQLite, engine, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: store, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
