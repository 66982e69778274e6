// Package memory provides the in-memory transactional record store. It is
// used directly for tests and ephemeral runs and as the working state of the
// durable SQL stores, which persist each transaction through a commit hook.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"afyafamilia/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// CommitHook persists the changes of a transaction that passed rule
// evaluation. The in-memory state is swapped only when it returns nil.
type CommitHook func(ctx context.Context, changes []Change) error

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source stamped on writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithCommitHook installs a durable commit step.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.hook = hook }
}

// WithIDGenerator overrides record and audit id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Store provides an in-memory transactional store for health records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	newID  func() string
	hook   CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the snapshot, migrating it to
// the current schema version first.
func (s *Store) ImportState(snapshot domain.Snapshot) error {
	migrated, _ := domain.Migrate(snapshot)
	state, err := memoryStateFromSnapshot(migrated)
	if err != nil {
		return fmt.Errorf("import state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// VerifyIndexes rebuilds every secondary index from the committed rows and
// reports the first inconsistency.
func (s *Store) VerifyIndexes() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range domain.RecordCategories() {
		if err := s.state.tables[c].verify(c); err != nil {
			return err
		}
	}
	for key, ids := range s.state.auditByRecord {
		for _, id := range ids {
			entry, ok := s.state.audit[id]
			if !ok {
				return fmt.Errorf("audit index %s references missing entry %s", key, id)
			}
			if recordKey(entry.RecordCategory, entry.RecordID) != key {
				return fmt.Errorf("audit entry %s filed under %s", id, key)
			}
		}
	}
	return nil
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) FindRecord(c domain.Category, id string) (domain.Record, bool) {
	t, ok := v.state.tables[c]
	if !ok {
		return domain.Record{}, false
	}
	rec, ok := t.rows[id]
	if !ok {
		return domain.Record{}, false
	}
	return rec.Clone(), true
}

func (v transactionView) QueryRecords(c domain.Category, q domain.Query) []domain.Record {
	t, ok := v.state.tables[c]
	if !ok {
		return nil
	}
	return t.query(q)
}

func (v transactionView) History(c domain.Category, recordID string) []domain.AuditEntry {
	return v.state.history(c, recordID)
}

func (v transactionView) Baseline(subjectID string) (domain.BaselineProfile, bool) {
	b, ok := v.state.baselines[subjectID]
	return b, ok
}

// RunInTransaction applies fn to a cloned state, evaluates the rules, runs
// the commit hook and only then swaps the state in.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.hook != nil && len(tx.changes) > 0 {
		if err := s.hook(ctx, tx.changes); err != nil {
			var storageErr domain.StorageError
			if errors.As(err, &storageErr) {
				return result, err
			}
			return result, domain.StorageError{Op: "commit", Err: err}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state
	s.mu.RUnlock()
	// Committed states are replaced wholesale, never mutated, so the captured
	// reference stays consistent after the lock is released.
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Now returns the transaction timestamp.
func (tx *transaction) Now() time.Time { return tx.now }

// FindRecord exposes record lookup within the transaction scope.
func (tx *transaction) FindRecord(c domain.Category, id string) (domain.Record, bool) {
	return newTransactionView(&tx.state).FindRecord(c, id)
}

func (tx *transaction) table(c domain.Category) (*table, error) {
	t, ok := tx.state.tables[c]
	if !ok {
		return nil, domain.ValidationError{Category: c, Reason: "category is not written through the record API"}
	}
	return t, nil
}

// CreateRecord stores a new record, assigning id and timestamps.
func (tx *transaction) CreateRecord(rec domain.Record, note string) (domain.Record, error) {
	t, err := tx.table(rec.Category)
	if err != nil {
		return domain.Record{}, err
	}
	if err := rec.Validate(); err != nil {
		return domain.Record{}, err
	}
	rec = rec.Clone()
	if rec.ID == "" {
		rec.ID = tx.store.newID()
	}
	if _, exists := t.rows[rec.ID]; exists {
		return domain.Record{}, domain.ValidationError{Category: rec.Category, Reason: fmt.Sprintf("id %q already exists", rec.ID)}
	}
	rec.CreatedAt = tx.now
	rec.UpdatedAt = tx.now
	rec.Date = domain.EventDate(rec.Payload, tx.now)
	rec.Lifecycle = nil
	if rec.Category.IsMutable() {
		rec.Lifecycle = &domain.Lifecycle{Active: true, LastModified: tx.now}
	}
	t.put(rec)
	tx.recordChange(Change{Category: rec.Category, Action: domain.ActionCreate, RecordID: rec.ID, After: rec.Clone()})
	if rec.Category.IsMutable() {
		if err := tx.audit(domain.MutationCreated, nil, rec, note); err != nil {
			return domain.Record{}, err
		}
	}
	return rec.Clone(), nil
}

// UpdateRecord mutates a record using the provided mutator function.
func (tx *transaction) UpdateRecord(c domain.Category, id, note string, mutator func(*domain.Record) error) (domain.Record, error) {
	t, err := tx.table(c)
	if err != nil {
		return domain.Record{}, err
	}
	current, ok := t.rows[id]
	if !ok {
		return domain.Record{}, domain.NotFoundError{Category: c, ID: id}
	}
	if !current.Active() {
		return domain.Record{}, domain.LifecycleError{Category: c, ID: id, Op: "update"}
	}
	before := current.Clone()
	working := current.Clone()
	if err := mutator(&working); err != nil {
		return domain.Record{}, err
	}
	working.ID = before.ID
	working.Category = before.Category
	working.SubjectID = before.SubjectID
	working.CreatedAt = before.CreatedAt
	working.Lifecycle = before.Clone().Lifecycle
	if err := working.Validate(); err != nil {
		return domain.Record{}, err
	}
	working.UpdatedAt = tx.now
	working.Date = domain.EventDate(working.Payload, working.CreatedAt)
	if working.Lifecycle != nil {
		working.Lifecycle.LastModified = tx.now
	}
	t.put(working)
	tx.recordChange(Change{Category: c, Action: domain.ActionUpdate, RecordID: id, Before: before, After: working.Clone()})
	if c.IsMutable() {
		if err := tx.audit(domain.MutationUpdated, &before, working, note); err != nil {
			return domain.Record{}, err
		}
	}
	return working.Clone(), nil
}

// DeactivateRecord ends the lifecycle of a mutable record.
func (tx *transaction) DeactivateRecord(c domain.Category, id, reason string) (domain.Record, error) {
	if !c.IsMutable() {
		return domain.Record{}, domain.ValidationError{Category: c, Reason: "deactivate is defined only for mutable categories"}
	}
	t, err := tx.table(c)
	if err != nil {
		return domain.Record{}, err
	}
	current, ok := t.rows[id]
	if !ok {
		return domain.Record{}, domain.NotFoundError{Category: c, ID: id}
	}
	if !current.Active() {
		return domain.Record{}, domain.LifecycleError{Category: c, ID: id, Op: "deactivate"}
	}
	before := current.Clone()
	working := current.Clone()
	at := tx.now
	working.Lifecycle = &domain.Lifecycle{
		Active:             false,
		LastModified:       tx.now,
		DeactivatedAt:      &at,
		DeactivationReason: reason,
	}
	working.UpdatedAt = tx.now
	t.put(working)
	tx.recordChange(Change{Category: c, Action: domain.ActionDeactivate, RecordID: id, Before: before, After: working.Clone()})
	if err := tx.audit(domain.MutationDeactivated, &before, working, reason); err != nil {
		return domain.Record{}, err
	}
	return working.Clone(), nil
}

// UpsertBaseline creates or replaces the subject's baseline profile.
func (tx *transaction) UpsertBaseline(b domain.BaselineProfile) (domain.BaselineProfile, error) {
	if err := b.Validate(); err != nil {
		return domain.BaselineProfile{}, err
	}
	b = b.Normalize()
	b.UpdatedAt = tx.now
	change := Change{Category: domain.CategoryBaseline, Action: domain.ActionCreate, RecordID: b.SubjectID, After: b}
	if prev, ok := tx.state.baselines[b.SubjectID]; ok {
		change.Action = domain.ActionUpdate
		change.Before = prev
	}
	tx.state.baselines[b.SubjectID] = b
	tx.recordChange(change)
	return b, nil
}

func (tx *transaction) audit(kind domain.MutationKind, before *domain.Record, after domain.Record, note string) error {
	entry := domain.AuditEntry{
		ID:             tx.store.newID(),
		RecordCategory: after.Category,
		RecordID:       after.ID,
		SubjectID:      after.SubjectID,
		Kind:           kind,
		ChangedAt:      tx.now,
		Note:           note,
	}
	if before != nil {
		old, err := domain.SnapshotOf(*before)
		if err != nil {
			return fmt.Errorf("snapshot old value: %w", err)
		}
		entry.OldValue = old
	}
	newValue, err := domain.SnapshotOf(after)
	if err != nil {
		return fmt.Errorf("snapshot new value: %w", err)
	}
	entry.NewValue = newValue
	if _, dup := tx.state.audit[entry.ID]; dup {
		return fmt.Errorf("audit entry %q already exists", entry.ID)
	}
	tx.state.appendAudit(entry)
	tx.recordChange(Change{
		Category: domain.CategoryTherapyHistory,
		Action:   domain.ActionAppend,
		RecordID: entry.ID,
		After:    tx.state.audit[entry.ID],
	})
	return nil
}

// Records returns every committed record of c ordered by date descending.
func (s *Store) Records(c domain.Category) []domain.Record {
	var out []domain.Record
	_ = s.View(context.Background(), func(v TransactionView) error {
		out = v.QueryRecords(c, domain.Query{})
		return nil
	})
	return out
}

// AuditEntries returns every committed audit entry in append order.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEntry, 0, len(s.state.audit))
	for _, e := range s.state.audit {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
