package app

import (
	"context"
	"fmt"

	"cardioingest/internal/config"
	"cardioingest/internal/infra/persistence/memory"
	"cardioingest/internal/infra/persistence/postgres"
	"cardioingest/internal/infra/persistence/sqlite"
	"cardioingest/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / dry runs)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL / RDS
)

// Store is what every storage backend provides to the commands.
type Store interface {
	domain.Store
	domain.RuleWriter
	Migrate(ctx context.Context) error
}

// OpenStore selects a backend from settings. Postgres coordinates come from
// the ingestion config.
func OpenStore(ctx context.Context, s config.Settings, ing config.IngestionConfig) (Store, error) {
	driver := StorageDriver(s.StorageDriver)
	if driver == "" {
		driver = StoragePostgres
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		st, err := sqlite.Open(ctx, s.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case StoragePostgres:
		if err := ing.ValidateDatabase(); err != nil {
			return nil, err
		}
		st, err := postgres.Open(ctx, ing.PostgresDSN())
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
