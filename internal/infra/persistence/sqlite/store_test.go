package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"afyafamilia/internal/infra/persistence/memory"
	"afyafamilia/pkg/domain"
)

var baseTime = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func steppingClock() func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return baseTime.Add(time.Duration(n) * time.Minute)
	}
}

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path, domain.NewRulesEngine(), memory.WithClock(steppingClock()))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "afya.db")
	store := openStore(t, path)
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}

	var therapyID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		rec, err := tx.CreateRecord(domain.Record{
			Category:  domain.CategoryTherapy,
			SubjectID: "child-1",
			Payload:   domain.Therapy{MedicationName: "Valproate", Dosage: "150mg"},
		}, "initial")
		if err != nil {
			return err
		}
		therapyID = rec.ID
		if _, err := tx.UpsertBaseline(domain.BaselineProfile{SubjectID: "child-1", SteadyStateHb: 8}); err != nil {
			return err
		}
		_, err = tx.CreateRecord(domain.Record{
			Category:  domain.CategorySeizureEvent,
			SubjectID: "child-1",
			Payload:   domain.SeizureEvent{DateTime: baseTime.AddDate(0, 0, -1), Triggers: []string{"fever"}},
		}, "")
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.DeactivateRecord(domain.CategoryTherapy, therapyID, "switched")
		return err
	})
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	var active int
	if err := store.DB().QueryRowContext(ctx, `SELECT active FROM records WHERE category = ? AND id = ?`, "therapy", therapyID).Scan(&active); err != nil {
		t.Fatalf("select active: %v", err)
	}
	if active != 0 {
		t.Fatalf("expected active index column to be cleared")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, path)
	defer func() { _ = reopened.Close() }()
	version, err := reopened.SchemaVersion(ctx)
	if err != nil || version != domain.SchemaVersion {
		t.Fatalf("expected schema version %d, got %d (%v)", domain.SchemaVersion, version, err)
	}
	err = reopened.View(ctx, func(v domain.TransactionView) error {
		rec, ok := v.FindRecord(domain.CategoryTherapy, therapyID)
		if !ok {
			t.Fatalf("therapy not reloaded")
		}
		if rec.Active() {
			t.Fatalf("expected reloaded therapy to be inactive")
		}
		history := v.History(domain.CategoryTherapy, therapyID)
		if len(history) != 2 || history[0].Kind != domain.MutationDeactivated {
			t.Fatalf("unexpected history %+v", history)
		}
		if b, ok := v.Baseline("child-1"); !ok || b.SteadyStateHb != 8 {
			t.Fatalf("baseline not reloaded: %+v", b)
		}
		seizures := v.QueryRecords(domain.CategorySeizureEvent, domain.Query{SubjectID: "child-1"})
		if len(seizures) != 1 || seizures[0].Payload.(domain.SeizureEvent).Triggers[0] != "fever" {
			t.Fatalf("unexpected seizures %+v", seizures)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if err := reopened.VerifyIndexes(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestStoreRejectedCommitLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "afya.db"))
	defer func() { _ = store.Close() }()
	if _, err := store.DB().ExecContext(ctx, `DROP TABLE audit_entries`); err != nil {
		t.Fatalf("drop audit table: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateRecord(domain.Record{
			Category:  domain.CategoryMedication,
			SubjectID: "mama",
			Payload:   domain.Medication{Name: "Folic acid"},
		}, "")
		return err
	})
	var storageErr domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected storage error, got %v", err)
	}
	var count int
	if err := store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected record insert to roll back, found %d rows", count)
	}
	if len(store.Records(domain.CategoryMedication)) != 0 {
		t.Fatalf("expected in-memory state to stay unchanged")
	}
}

func TestStoreMigratesLegacyRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")
	store := openStore(t, path)
	created := baseTime.AddDate(0, -2, 0)
	legacy := domain.Record{
		ID:        "med-legacy",
		Category:  domain.CategoryMedication,
		SubjectID: "mama",
		CreatedAt: created,
		UpdatedAt: created,
		Payload:   domain.Medication{Name: "Penicillin V"},
	}
	payload, err := json.Marshal(legacy)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	baseline, _ := json.Marshal(domain.BaselineProfile{SubjectID: "mama", SteadyStateHb: 7.2})
	db := store.DB()
	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO records(category, id, subject_id, event_date, type_key, active, payload) VALUES(?, ?, ?, '', '', 1, ?)`, []any{"medications", legacy.ID, "mama", string(payload)}},
		{`INSERT INTO baselines(subject_id, payload) VALUES(?, ?)`, []any{"mama", string(baseline)}},
		{`UPDATE schema_meta SET value = '1' WHERE key = 'schema_version'`, nil},
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s.q, s.args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	migrated := openStore(t, path)
	defer func() { _ = migrated.Close() }()
	version, err := migrated.SchemaVersion(ctx)
	if err != nil || version != domain.SchemaVersion {
		t.Fatalf("expected migrated version, got %d (%v)", version, err)
	}
	snap := migrated.ExportState()
	if len(snap.Records) != 1 || snap.Records[0].Lifecycle == nil || !snap.Records[0].Lifecycle.Active {
		t.Fatalf("expected lifecycle backfill, got %+v", snap.Records)
	}
	if snap.Baselines[0].HbStdDev != domain.DefaultStdDev {
		t.Fatalf("expected std dev default, got %v", snap.Baselines[0].HbStdDev)
	}
	var eventDate string
	if err := migrated.DB().QueryRowContext(ctx, `SELECT event_date FROM records WHERE id = ?`, legacy.ID).Scan(&eventDate); err != nil {
		t.Fatalf("select event_date: %v", err)
	}
	if eventDate == "" {
		t.Fatalf("expected migrated rows to be rewritten")
	}
}
