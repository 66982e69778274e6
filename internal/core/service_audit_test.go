package core

import (
	"context"
	"errors"
	"testing"

	"afyafamilia/internal/infra/persistence/memory"
	"afyafamilia/pkg/domain"
)

func TestCommitHookFailureDiscardsRecordAndAudit(t *testing.T) {
	ctx := context.Background()
	clock := newSteppingClock(testStart)
	fail := false
	hookErr := errors.New("disk full")
	var committed [][]domain.Change
	store := memory.NewStore(NewDefaultRulesEngine(clock),
		memory.WithClock(clock.Now),
		memory.WithCommitHook(func(_ context.Context, changes []Change) error {
			if fail {
				return hookErr
			}
			committed = append(committed, changes)
			return nil
		}))
	svc := NewService(store, WithClock(clock))

	rec, _, err := svc.Create(ctx, domain.CategoryTherapy, "child-1", domain.Therapy{MedicationName: "Valproate", Dosage: "100mg"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(committed) != 1 || len(committed[0]) != 2 {
		t.Fatalf("expected record and audit change in one commit, got %+v", committed)
	}

	fail = true
	_, _, err = svc.Update(ctx, domain.CategoryTherapy, rec.ID, domain.Patch{"dosage": "200mg"})
	var storageErr domain.StorageError
	if !errors.As(err, &storageErr) || !errors.Is(err, hookErr) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}

	got, err := svc.Get(ctx, domain.CategoryTherapy, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Payload.(domain.Therapy).Dosage != "100mg" {
		t.Fatalf("failed commit must not change the record, got %+v", got.Payload)
	}
	history, err := svc.History(ctx, domain.CategoryTherapy, rec.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Kind != domain.MutationCreated {
		t.Fatalf("failed commit must not append audit entries, got %+v", history)
	}
	if len(store.AuditEntries()) != 1 {
		t.Fatalf("expected a single committed audit entry")
	}
}

func TestAuditEntriesCarrySnapshots(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	rec, _, err := svc.Create(ctx, domain.CategoryTherapy, "child-1", domain.Therapy{MedicationName: "Valproate", Timing: map[string]string{"08:00": "5ml"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Update(ctx, domain.CategoryTherapy, rec.ID, domain.Patch{"timing": map[string]any{"08:00": "5ml", "20:00": "5ml"}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	history, err := svc.History(ctx, domain.CategoryTherapy, rec.ID)
	if err != nil || len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d (%v)", len(history), err)
	}
	newRec, ok, err := history[0].NewRecord()
	if err != nil || !ok {
		t.Fatalf("decode new value: %v", err)
	}
	if len(newRec.Payload.(domain.Therapy).Timing) != 2 {
		t.Fatalf("expected two doses in new snapshot, got %+v", newRec.Payload)
	}
	oldRec, ok, err := history[0].OldRecord()
	if err != nil || !ok || len(oldRec.Payload.(domain.Therapy).Timing) != 1 {
		t.Fatalf("expected one dose in old snapshot, got %+v %v", oldRec.Payload, err)
	}
	if history[0].SubjectID != "child-1" || history[0].RecordCategory != domain.CategoryTherapy {
		t.Fatalf("unexpected entry envelope %+v", history[0])
	}
}
