package core

import (
	"fmt"
	"os"

	"afyafamilia/internal/infra/persistence/memory"
	"afyafamilia/internal/infra/persistence/postgres"
	"afyafamilia/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and locates a backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// StorageConfigFromEnv reads the backend selection from the environment.
//
//	AFYA_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	AFYA_SQLITE_PATH: path to sqlite file (default ./afyafamilia.db)
//	AFYA_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageConfigFromEnv() StorageConfig {
	cfg := StorageConfig{
		Driver:      StorageDriver(os.Getenv("AFYA_STORAGE_DRIVER")),
		SQLitePath:  os.Getenv("AFYA_SQLITE_PATH"),
		PostgresDSN: os.Getenv("AFYA_POSTGRES_DSN"),
	}
	if cfg.Driver == "" {
		cfg.Driver = StorageSQLite
	}
	return cfg
}

// OpenStore opens the configured backend. Durable backends must be closed
// by the caller through io.Closer.
func OpenStore(cfg StorageConfig, engine *RulesEngine, opts ...memory.Option) (PersistentStore, error) {
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(engine, opts...), nil
	case StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// OpenPersistentStore selects a backend using environment variables.
func OpenPersistentStore(engine *RulesEngine, opts ...memory.Option) (PersistentStore, error) {
	return OpenStore(StorageConfigFromEnv(), engine, opts...)
}
