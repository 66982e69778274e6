package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"afyafamilia/pkg/domain"
)

var baseTime = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func steppingClock() func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return baseTime.Add(time.Duration(n) * time.Minute)
	}
}

func floatPtr(v float64) *float64 { return &v }

func createRecord(t *testing.T, store *Store, rec domain.Record) domain.Record {
	t.Helper()
	var created domain.Record
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateRecord(rec, "")
		return err
	})
	if err != nil {
		t.Fatalf("create %s: %v", rec.Category, err)
	}
	return created
}

func TestStoreCreateAssignsIdentityAndIndexes(t *testing.T) {
	store := NewStore(nil, WithClock(steppingClock()))
	lab := createRecord(t, store, domain.Record{
		Category:  domain.CategoryLabResult,
		SubjectID: "child-1",
		Payload:   domain.LabResult{Date: baseTime.AddDate(0, 0, -3), TestType: "hb", Value: floatPtr(7.9)},
	})
	if lab.ID == "" {
		t.Fatalf("expected generated ID")
	}
	if !lab.Date.Equal(baseTime.AddDate(0, 0, -3)) {
		t.Fatalf("expected event date from payload, got %s", lab.Date)
	}
	if lab.Lifecycle != nil {
		t.Fatalf("non-mutable record must not carry a lifecycle")
	}
	dev := createRecord(t, store, domain.Record{
		Category:  domain.CategoryDevelopment,
		SubjectID: "child-1",
		Payload:   domain.DevelopmentCheckpoint{Speech: true},
	})
	if !dev.Date.Equal(dev.CreatedAt) {
		t.Fatalf("expected date to fall back to creation time")
	}
	if err := store.VerifyIndexes(); err != nil {
		t.Fatalf("verify indexes: %v", err)
	}
	err := store.View(context.Background(), func(v domain.TransactionView) error {
		got, ok := v.FindRecord(domain.CategoryLabResult, lab.ID)
		if !ok {
			return fmt.Errorf("lab result not found")
		}
		if got.SubjectID != "child-1" || got.TypeKey() != "hb" {
			return fmt.Errorf("unexpected record %+v", got)
		}
		if _, ok := v.FindRecord(domain.CategorySeizureEvent, lab.ID); ok {
			return fmt.Errorf("identity must include category")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreCreateValidation(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateRecord(domain.Record{
			Category:  domain.CategoryLabResult,
			SubjectID: "child-1",
			Payload:   domain.LabResult{Date: baseTime, TestType: "hb"},
		}, "")
		return err
	})
	var vErr domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0] != "value" {
		t.Fatalf("expected missing value field, got %+v", vErr)
	}

	for _, c := range []domain.Category{domain.CategoryTherapyHistory, domain.CategoryBaseline} {
		_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, err := tx.CreateRecord(domain.Record{Category: c, SubjectID: "child-1", Payload: domain.Therapy{MedicationName: "x"}}, "")
			return err
		})
		if !errors.As(err, &vErr) {
			t.Fatalf("expected %s create to be rejected, got %v", c, err)
		}
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateRecord(domain.Record{Category: domain.CategoryTherapy, Payload: domain.Therapy{MedicationName: "x"}}, "")
		return err
	})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected missing subject to fail, got %v", err)
	}
	if len(store.Records(domain.CategoryLabResult)) != 0 {
		t.Fatalf("failed transactions must not persist")
	}
}

func TestStoreMutableLifecycleWritesAudit(t *testing.T) {
	store := NewStore(nil, WithClock(steppingClock()))
	ctx := context.Background()
	med := createRecord(t, store, domain.Record{
		Category:  domain.CategoryTherapy,
		SubjectID: "child-1",
		Payload:   domain.Therapy{MedicationName: "Valproate", Dosage: "150mg"},
	})
	if med.Lifecycle == nil || !med.Lifecycle.Active {
		t.Fatalf("expected active lifecycle, got %+v", med.Lifecycle)
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord(domain.CategoryTherapy, med.ID, "dose change", func(r *domain.Record) error {
			p := r.Payload.(domain.Therapy)
			p.Dosage = "200mg"
			r.Payload = p
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.DeactivateRecord(domain.CategoryTherapy, med.ID, "seizure free")
		return err
	})
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	var history []domain.AuditEntry
	var current domain.Record
	_ = store.View(ctx, func(v domain.TransactionView) error {
		history = v.History(domain.CategoryTherapy, med.ID)
		current, _ = v.FindRecord(domain.CategoryTherapy, med.ID)
		return nil
	})
	if len(history) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(history))
	}
	wantKinds := []domain.MutationKind{domain.MutationDeactivated, domain.MutationUpdated, domain.MutationCreated}
	for i, kind := range wantKinds {
		if history[i].Kind != kind {
			t.Fatalf("entry %d: expected %s, got %s", i, kind, history[i].Kind)
		}
	}
	if history[2].OldValue.Present() {
		t.Fatalf("created entry must not carry an old value")
	}
	old, ok, err := history[1].OldRecord()
	if err != nil || !ok {
		t.Fatalf("decode old value: ok=%v err=%v", ok, err)
	}
	if old.Payload.(domain.Therapy).Dosage != "150mg" {
		t.Fatalf("expected old dosage 150mg, got %+v", old.Payload)
	}
	if history[0].Note != "seizure free" {
		t.Fatalf("expected deactivation reason as note, got %q", history[0].Note)
	}
	if current.Active() || current.Lifecycle.DeactivatedAt == nil || current.Lifecycle.DeactivationReason != "seizure free" {
		t.Fatalf("expected deactivated record, got %+v", current.Lifecycle)
	}
	if current.Payload.(domain.Therapy).Dosage != "200mg" {
		t.Fatalf("expected merged payload to persist")
	}
	if len(store.AuditEntries()) != 3 {
		t.Fatalf("expected 3 audit entries overall")
	}
}

func TestStoreLifecycleErrors(t *testing.T) {
	store := NewStore(nil, WithClock(steppingClock()))
	ctx := context.Background()
	med := createRecord(t, store, domain.Record{
		Category:  domain.CategoryMedication,
		SubjectID: "mama",
		Payload:   domain.Medication{Name: "Hydroxyurea"},
	})
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.DeactivateRecord(domain.CategoryMedication, med.ID, "stopped")
		return err
	})
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	var lcErr domain.LifecycleError
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.DeactivateRecord(domain.CategoryMedication, med.ID, "again")
		return err
	})
	if !errors.As(err, &lcErr) {
		t.Fatalf("expected lifecycle error on second deactivate, got %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord(domain.CategoryMedication, med.ID, "", func(*domain.Record) error { return nil })
		return err
	})
	if !errors.As(err, &lcErr) {
		t.Fatalf("expected lifecycle error on update, got %v", err)
	}

	var nf domain.NotFoundError
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.DeactivateRecord(domain.CategoryMedication, "missing", "x")
		return err
	})
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord(domain.CategoryTransfusion, "missing", "", func(*domain.Record) error { return nil })
		return err
	})
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found on update, got %v", err)
	}

	var vErr domain.ValidationError
	tr := createRecord(t, store, domain.Record{
		Category:  domain.CategoryTransfusion,
		SubjectID: "mama",
		Payload:   domain.Transfusion{Date: baseTime},
	})
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.DeactivateRecord(domain.CategoryTransfusion, tr.ID, "x")
		return err
	})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for non-mutable deactivate, got %v", err)
	}
}

func TestStoreQueryOrdersAndFilters(t *testing.T) {
	store := NewStore(nil, WithClock(steppingClock()))
	dates := []int{-40, -2, -10, -400}
	for i, d := range dates {
		testType := "hb"
		if i == 2 {
			testType = "ferritin"
		}
		createRecord(t, store, domain.Record{
			Category:  domain.CategoryLabResult,
			SubjectID: "child-1",
			Payload:   domain.LabResult{Date: baseTime.AddDate(0, 0, d), TestType: testType, Value: floatPtr(float64(i))},
		})
	}
	createRecord(t, store, domain.Record{
		Category:  domain.CategoryLabResult,
		SubjectID: "child-2",
		Payload:   domain.LabResult{Date: baseTime, TestType: "hb", Value: floatPtr(9)},
	})

	from := baseTime.AddDate(0, 0, -40)
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		all := v.QueryRecords(domain.CategoryLabResult, domain.Query{SubjectID: "child-1"})
		if len(all) != 4 {
			t.Fatalf("expected 4 records for child-1, got %d", len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i].Date.After(all[i-1].Date) {
				t.Fatalf("expected descending dates")
			}
		}
		windowed := v.QueryRecords(domain.CategoryLabResult, domain.Query{SubjectID: "child-1", From: &from})
		if len(windowed) != 3 {
			t.Fatalf("expected inclusive cutoff to keep 3 records, got %d", len(windowed))
		}
		hb := v.QueryRecords(domain.CategoryLabResult, domain.Query{SubjectID: "child-1", From: &from, TypeKey: "hb"})
		if len(hb) != 2 {
			t.Fatalf("expected 2 hb records, got %d", len(hb))
		}
		limited := v.QueryRecords(domain.CategoryLabResult, domain.Query{SubjectID: "child-1", Limit: 1})
		if len(limited) != 1 || !limited[0].Date.Equal(baseTime.AddDate(0, 0, -2)) {
			t.Fatalf("expected latest record only, got %+v", limited)
		}
		return nil
	})
}

func TestStoreRuleViolationLeavesStateUnchanged(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateRecord(domain.Record{
			Category:  domain.CategoryMedication,
			SubjectID: "mama",
			Payload:   domain.Medication{Name: "Folic acid"},
		}, "")
		return e
	})
	var ruleErr domain.RuleViolationError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.Records(domain.CategoryMedication)) != 0 || len(store.AuditEntries()) != 0 {
		t.Fatalf("blocked transaction must not persist")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	res.Merge(domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}})
	return res, nil
}

func TestStoreCommitHookFailureIsAtomic(t *testing.T) {
	var seen []domain.Change
	fail := false
	store := NewStore(nil, WithCommitHook(func(_ context.Context, changes []domain.Change) error {
		if fail {
			return errors.New("disk full")
		}
		seen = append(seen, changes...)
		return nil
	}))
	createRecord(t, store, domain.Record{
		Category:  domain.CategoryTherapy,
		SubjectID: "child-1",
		Payload:   domain.Therapy{MedicationName: "Levetiracetam"},
	})
	if len(seen) != 2 {
		t.Fatalf("expected record and audit changes, got %d", len(seen))
	}
	if seen[1].Category != domain.CategoryTherapyHistory || seen[1].Action != domain.ActionAppend {
		t.Fatalf("expected audit append change, got %+v", seen[1])
	}

	fail = true
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateRecord(domain.Record{
			Category:  domain.CategoryTherapy,
			SubjectID: "child-1",
			Payload:   domain.Therapy{MedicationName: "Clobazam"},
		}, "")
		return err
	})
	var storageErr domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(store.Records(domain.CategoryTherapy)) != 1 || len(store.AuditEntries()) != 1 {
		t.Fatalf("failed commit must leave record and audit untouched")
	}
}

func TestStoreBaselineUpsert(t *testing.T) {
	store := NewStore(nil, WithClock(steppingClock()))
	ctx := context.Background()
	for _, hb := range []float64{7.5, 8.1} {
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.UpsertBaseline(domain.BaselineProfile{SubjectID: "child-1", SteadyStateHb: hb})
			return err
		})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	snap := store.ExportState()
	if len(snap.Baselines) != 1 {
		t.Fatalf("expected one baseline per subject, got %d", len(snap.Baselines))
	}
	if snap.Baselines[0].SteadyStateHb != 8.1 || snap.Baselines[0].HbStdDev != domain.DefaultStdDev {
		t.Fatalf("unexpected baseline %+v", snap.Baselines[0])
	}
}

func TestStoreExportImportRoundTrip(t *testing.T) {
	store := NewStore(nil, WithClock(steppingClock()))
	med := createRecord(t, store, domain.Record{
		Category:  domain.CategoryTherapy,
		SubjectID: "child-1",
		Payload:   domain.Therapy{MedicationName: "Valproate"},
	})
	snapshot := store.ExportState()
	if snapshot.Version != domain.SchemaVersion {
		t.Fatalf("expected current schema version, got %d", snapshot.Version)
	}
	if err := store.ImportState(domain.Snapshot{}); err != nil {
		t.Fatalf("import empty: %v", err)
	}
	if len(store.Records(domain.CategoryTherapy)) != 0 {
		t.Fatalf("expected cleared state")
	}
	if err := store.ImportState(snapshot); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := store.VerifyIndexes(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	var history []domain.AuditEntry
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		history = v.History(domain.CategoryTherapy, med.ID)
		return nil
	})
	if len(history) != 1 {
		t.Fatalf("expected restored audit, got %d", len(history))
	}
	if err := store.ImportState(domain.Snapshot{Version: 3, Records: []domain.Record{med, med}}); err == nil {
		t.Fatalf("expected duplicate id import to fail")
	}
}

func TestStoreImportMigratesOlderSnapshots(t *testing.T) {
	store := NewStore(nil)
	created := baseTime.AddDate(0, -1, 0)
	legacy := domain.Snapshot{
		Version: 1,
		Records: []domain.Record{{
			ID:        "med-1",
			Category:  domain.CategoryMedication,
			SubjectID: "mama",
			CreatedAt: created,
			UpdatedAt: created,
			Payload:   domain.Medication{Name: "Penicillin V"},
		}},
		Baselines: []domain.BaselineProfile{{SubjectID: "mama", SteadyStateHb: 8}},
	}
	if err := store.ImportState(legacy); err != nil {
		t.Fatalf("import: %v", err)
	}
	snap := store.ExportState()
	rec := snap.Records[0]
	if rec.Lifecycle == nil || !rec.Lifecycle.Active {
		t.Fatalf("expected lifecycle backfill, got %+v", rec.Lifecycle)
	}
	if !rec.Date.Equal(created) {
		t.Fatalf("expected date backfill, got %s", rec.Date)
	}
	if snap.Baselines[0].HbStdDev != 1.0 {
		t.Fatalf("expected default std dev, got %v", snap.Baselines[0].HbStdDev)
	}
	if err := store.VerifyIndexes(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestStoreCanceledContext(t *testing.T) {
	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := store.RunInTransaction(ctx, func(domain.Transaction) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected canceled transaction, err=%v called=%v", err, called)
	}
}
