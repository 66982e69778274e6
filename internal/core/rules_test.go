package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"afyafamilia/internal/infra/persistence/memory"
	"afyafamilia/pkg/domain"
)

func TestDefaultRulesEngineRegistersPolicies(t *testing.T) {
	got := NewDefaultRulesEngine(nil).Rules()
	want := []string{"audit_coverage", "terminal_deactivation", "future_date"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func evaluateAgainst(t *testing.T, store *memory.Store, rule domain.Rule, changes []domain.Change) domain.Result {
	t.Helper()
	var res domain.Result
	err := store.View(context.Background(), func(v TransactionView) error {
		var err error
		res, err = rule.Evaluate(context.Background(), v, changes)
		return err
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return res
}

func seededStore(t *testing.T) (*memory.Store, Record) {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine(newSteppingClock(testStart)), memory.WithClock(newSteppingClock(testStart).Now))
	var created Record
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreateRecord(Record{Category: domain.CategoryTherapy, SubjectID: "child-1", Payload: domain.Therapy{MedicationName: "Valproate"}}, "")
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store, created
}

func TestAuditCoverageRule(t *testing.T) {
	store, rec := seededStore(t)
	rule := AuditCoverageRule()

	unaudited := []domain.Change{{Category: domain.CategoryTherapy, Action: domain.ActionUpdate, RecordID: rec.ID, Before: rec, After: rec}}
	res := evaluateAgainst(t, store, rule, unaudited)
	if len(res.Violations) != 1 || !res.HasBlocking() {
		t.Fatalf("expected one blocking violation for an unaudited update, got %+v", res.Violations)
	}

	entry := domain.AuditEntry{ID: "a1", RecordCategory: domain.CategoryTherapy, RecordID: rec.ID, Kind: domain.MutationUpdated}
	audited := append(unaudited, domain.Change{Category: domain.CategoryTherapyHistory, Action: domain.ActionAppend, RecordID: "a1", After: entry})
	if res := evaluateAgainst(t, store, rule, audited); len(res.Violations) != 0 {
		t.Fatalf("expected covered update to pass, got %+v", res.Violations)
	}

	doubled := append(audited, domain.Change{Category: domain.CategoryTherapyHistory, Action: domain.ActionAppend, RecordID: "a2", After: entry})
	if res := evaluateAgainst(t, store, rule, doubled); len(res.Violations) != 1 {
		t.Fatalf("expected duplicate audit entries to block, got %+v", res.Violations)
	}

	dangling := domain.AuditEntry{ID: "a3", RecordCategory: domain.CategoryTherapy, RecordID: "missing", Kind: domain.MutationCreated}
	res = evaluateAgainst(t, store, rule, []domain.Change{{Category: domain.CategoryTherapyHistory, Action: domain.ActionAppend, RecordID: "a3", After: dangling}})
	if len(res.Violations) != 1 || res.Violations[0].RecordID != "missing" {
		t.Fatalf("expected dangling audit entry to block, got %+v", res.Violations)
	}

	res = evaluateAgainst(t, store, rule, []domain.Change{{Category: domain.CategoryTherapyHistory, Action: domain.ActionAppend, RecordID: "a4", After: "not an entry"}})
	if len(res.Violations) != 1 {
		t.Fatalf("expected malformed audit change to block, got %+v", res.Violations)
	}

	immutable := []domain.Change{{Category: domain.CategoryLabResult, Action: domain.ActionCreate, RecordID: "x"}}
	if res := evaluateAgainst(t, store, rule, immutable); len(res.Violations) != 0 {
		t.Fatalf("immutable categories need no audit entries, got %+v", res.Violations)
	}
}

func TestTerminalDeactivationRule(t *testing.T) {
	store, rec := seededStore(t)
	rule := TerminalDeactivationRule()

	inactive := rec.Clone()
	inactive.Lifecycle.Active = false
	revived := rec.Clone()

	res := evaluateAgainst(t, store, rule, []domain.Change{{Category: domain.CategoryTherapy, Action: domain.ActionUpdate, RecordID: rec.ID, Before: inactive, After: revived}})
	if len(res.Violations) != 1 || res.Violations[0].Rule != "terminal_deactivation" {
		t.Fatalf("expected reactivation to block, got %+v", res.Violations)
	}
	res = evaluateAgainst(t, store, rule, []domain.Change{{Category: domain.CategoryTherapy, Action: domain.ActionDeactivate, RecordID: rec.ID, Before: revived, After: inactive}})
	if len(res.Violations) != 0 {
		t.Fatalf("expected deactivation to pass, got %+v", res.Violations)
	}
}

func TestFutureDateRule(t *testing.T) {
	store, _ := seededStore(t)
	clock := ClockFunc(func() time.Time { return testStart })
	rule := FutureDateRule(clock, 24*time.Hour)

	soon := Record{ID: "r1", Category: domain.CategoryRedFlag, Date: testStart.Add(23 * time.Hour)}
	later := Record{ID: "r2", Category: domain.CategoryRedFlag, Date: testStart.Add(48 * time.Hour)}
	plan := Record{ID: "p1", Category: domain.CategoryEliminationPlan, Date: testStart.AddDate(0, 0, 10)}
	res := evaluateAgainst(t, store, rule, []domain.Change{
		{Category: domain.CategoryRedFlag, Action: domain.ActionCreate, RecordID: "r1", After: soon},
		{Category: domain.CategoryRedFlag, Action: domain.ActionCreate, RecordID: "r2", After: later},
		{Category: domain.CategoryEliminationPlan, Action: domain.ActionCreate, RecordID: "p1", After: plan},
	})
	if len(res.Violations) != 1 || res.Violations[0].RecordID != "r2" {
		t.Fatalf("expected only the record beyond tolerance to warn, got %+v", res.Violations)
	}
	if res.HasBlocking() {
		t.Fatalf("future dates must not block")
	}
}

type rejectingRule struct{}

func (rejectingRule) Name() string { return "reject_all" }

func (rejectingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, c := range changes {
		res.Violations = append(res.Violations, domain.Violation{Rule: "reject_all", Severity: domain.SeverityBlock, Category: c.Category, RecordID: c.RecordID})
	}
	return res, nil
}

func TestBlockingRuleLeavesStoreUnchanged(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(rejectingRule{})
	svc := NewInMemoryService(engine, WithClock(newSteppingClock(testStart)))
	ctx := context.Background()

	_, res, err := svc.Create(ctx, domain.CategoryTherapy, "child-1", domain.Therapy{MedicationName: "Valproate"})
	var ruleErr domain.RuleViolationError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	recs, err := svc.List(ctx, domain.CategoryTherapy, "child-1", ListOptions{})
	if err != nil || len(recs) != 0 {
		t.Fatalf("expected no records after blocked transaction, got %d (%v)", len(recs), err)
	}
}
