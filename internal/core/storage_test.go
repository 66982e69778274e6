package core

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"afyafamilia/internal/infra/persistence/memory"
	"afyafamilia/internal/infra/persistence/postgres"
	"afyafamilia/internal/infra/persistence/postgres/testutil"
	"afyafamilia/pkg/domain"
)

func TestStorageConfigFromEnv(t *testing.T) {
	t.Setenv("AFYA_STORAGE_DRIVER", "")
	t.Setenv("AFYA_SQLITE_PATH", "")
	t.Setenv("AFYA_POSTGRES_DSN", "")
	if cfg := StorageConfigFromEnv(); cfg.Driver != StorageSQLite {
		t.Fatalf("expected sqlite default, got %s", cfg.Driver)
	}

	t.Setenv("AFYA_STORAGE_DRIVER", "postgres")
	t.Setenv("AFYA_POSTGRES_DSN", "postgres://db/afya")
	cfg := StorageConfigFromEnv()
	if cfg.Driver != StoragePostgres || cfg.PostgresDSN != "postgres://db/afya" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestOpenStoreMemory(t *testing.T) {
	store, err := OpenStore(StorageConfig{Driver: StorageMemory}, NewDefaultRulesEngine(nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
	if _, ok := store.(io.Closer); ok {
		t.Fatalf("memory store needs no closing")
	}
}

func TestOpenStoreSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "afya.db")
	cfg := StorageConfig{Driver: StorageSQLite, SQLitePath: path}

	store, err := OpenStore(cfg, NewDefaultRulesEngine(nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc := NewService(store)
	rec, _, err := svc.CreateWithNote(ctx, domain.CategoryMedication, "child-1", domain.Medication{Name: "Folic acid"}, "daily")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.(io.Closer).Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenStore(cfg, NewDefaultRulesEngine(nil))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.(io.Closer).Close() })
	svc = NewService(reopened)
	got, err := svc.Get(ctx, domain.CategoryMedication, rec.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Payload.(domain.Medication).Name != "Folic acid" || !got.Active() {
		t.Fatalf("unexpected reloaded record %+v", got)
	}
	history, err := svc.History(ctx, domain.CategoryMedication, rec.ID)
	if err != nil || len(history) != 1 || history[0].Note != "daily" {
		t.Fatalf("expected reloaded audit trail, got %+v (%v)", history, err)
	}
}

func TestOpenStorePostgres(t *testing.T) {
	db, _ := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := OpenStore(StorageConfig{Driver: StoragePostgres, PostgresDSN: "stub"}, NewDefaultRulesEngine(nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*postgres.Store); !ok {
		t.Fatalf("expected postgres store, got %T", store)
	}
}

func TestOpenStorePostgresPingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := OpenStore(StorageConfig{Driver: StoragePostgres}, nil)
	if err == nil {
		t.Fatalf("expected ping failure")
	}
	if store != nil {
		t.Fatalf("expected nil store on failure, got %T", store)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	if _, err := OpenStore(StorageConfig{Driver: "mongo"}, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
