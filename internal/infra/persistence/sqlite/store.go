// Package sqlite opens a local SQLite database for development and dry runs.
// The schema is created on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"cardioingest/internal/infra/persistence/sqlrepo"
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "cardioingest.db"

// Store is a SQLite-backed repository.
type Store struct {
	*sqlrepo.Store
	path string
}

// Open creates parent directories as needed, opens path and migrates it.
func Open(ctx context.Context, path string, opts ...sqlrepo.Option) (*Store, error) {
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
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under batch runs.
	db.SetMaxOpenConns(1)
	s := &Store{Store: sqlrepo.New(db, sqlrepo.SQLite, opts...), path: path}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
