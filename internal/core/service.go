// Package core exposes the record service used by the CLI and the report
// generator. Every operation runs inside a store transaction or read view
// and is logged, traced and measured through the configured options.
package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"afyafamilia/internal/infra/persistence/memory"
	"afyafamilia/pkg/domain"
)

// Service exposes transactional record operations over a persistent store.
type Service struct {
	store   PersistentStore
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service backed by the supplied store. Without
// WithClock the store's clock is used.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = ClockFunc(store.NowFunc())
	}
	return &Service{
		store:   store,
		clock:   o.clock,
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  o.tracer,
	}
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine. A nil engine gets the default rule set.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	var storeOpts []memory.Option
	if o.clock != nil {
		storeOpts = append(storeOpts, memory.WithClock(o.clock.Now))
	}
	if engine == nil {
		engine = NewDefaultRulesEngine(o.clock)
	}
	return NewService(memory.NewStore(engine, storeOpts...), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err)
		return err
	}
	s.logger.Debug("operation completed", "operation", op)
	return nil
}

func (s *Service) transact(ctx context.Context, op string, fn func(Transaction) error) (Result, error) {
	var res Result
	err := s.run(ctx, op, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, fn)
		return err
	})
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			s.logger.Warn("rule warning", "operation", op, "rule", v.Rule, "record", v.RecordID, "message", v.Message)
		}
	}
	return res, err
}

func (s *Service) view(ctx context.Context, op string, fn func(TransactionView) error) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		return s.store.View(ctx, fn)
	})
}

// Create validates and stores a new record for subjectID.
func (s *Service) Create(ctx context.Context, category Category, subjectID string, payload domain.Payload) (Record, Result, error) {
	return s.CreateWithNote(ctx, category, subjectID, payload, "")
}

// CreateWithNote is Create with a note on the audit entry of mutable
// categories.
func (s *Service) CreateWithNote(ctx context.Context, category Category, subjectID string, payload domain.Payload, note string) (Record, Result, error) {
	var created Record
	res, err := s.transact(ctx, "create_"+opName(category), func(tx Transaction) error {
		var err error
		created, err = tx.CreateRecord(Record{Category: category, SubjectID: subjectID, Payload: payload}, note)
		return err
	})
	return created, res, err
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, category Category, id string) (Record, error) {
	var rec Record
	err := s.view(ctx, "get_"+opName(category), func(v TransactionView) error {
		if err := requireRecordCategory(category); err != nil {
			return err
		}
		found, ok := v.FindRecord(category, id)
		if !ok {
			return domain.NotFoundError{Category: category, ID: id}
		}
		rec = found
		return nil
	})
	return rec, err
}

// Update merges patch into the record payload by JSON field name.
func (s *Service) Update(ctx context.Context, category Category, id string, patch domain.Patch) (Record, Result, error) {
	return s.UpdateWithNote(ctx, category, id, patch, "")
}

// UpdateWithNote is Update with a note on the audit entry.
func (s *Service) UpdateWithNote(ctx context.Context, category Category, id string, patch domain.Patch, note string) (Record, Result, error) {
	return s.Mutate(ctx, category, id, note, func(rec *Record) error {
		payload, err := domain.ApplyPatch(rec.Payload, patch)
		if err != nil {
			return err
		}
		rec.Payload = payload
		return nil
	})
}

// Mutate updates a record through a typed mutator. Identity and lifecycle
// fields are restored after the mutator runs.
func (s *Service) Mutate(ctx context.Context, category Category, id, note string, mutator func(*Record) error) (Record, Result, error) {
	var updated Record
	res, err := s.transact(ctx, "update_"+opName(category), func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateRecord(category, id, note, mutator)
		return err
	})
	return updated, res, err
}

// Deactivate ends the lifecycle of a mutable record.
func (s *Service) Deactivate(ctx context.Context, category Category, id, reason string) (Record, Result, error) {
	var deactivated Record
	res, err := s.transact(ctx, "deactivate_"+opName(category), func(tx Transaction) error {
		var err error
		deactivated, err = tx.DeactivateRecord(category, id, reason)
		return err
	})
	return deactivated, res, err
}

// History returns the audit entries of a mutable record, newest first.
func (s *Service) History(ctx context.Context, category Category, id string) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := s.view(ctx, "history_"+opName(category), func(v TransactionView) error {
		if !category.IsMutable() {
			return domain.ValidationError{Category: category, Reason: "history is kept only for mutable categories"}
		}
		if _, ok := v.FindRecord(category, id); !ok {
			return domain.NotFoundError{Category: category, ID: id}
		}
		entries = v.History(category, id)
		return nil
	})
	return entries, err
}

// ListOptions filters List. Window is relative to the service clock.
type ListOptions struct {
	Window     domain.Window
	TypeKey    string
	ActiveOnly bool
	Limit      int
}

// List returns the records of one subject, newest first.
func (s *Service) List(ctx context.Context, category Category, subjectID string, opts ListOptions) ([]Record, error) {
	if err := opts.Window.Validate(); err != nil {
		var vErr domain.ValidationError
		if errors.As(err, &vErr) {
			vErr.Category = category
			return nil, vErr
		}
		return nil, err
	}
	q := domain.Query{SubjectID: subjectID, TypeKey: opts.TypeKey, ActiveOnly: opts.ActiveOnly, Limit: opts.Limit}
	if cutoff, ok := opts.Window.Cutoff(s.clock.Now()); ok {
		q.From = &cutoff
	}
	return s.Query(ctx, category, q)
}

// Query runs an explicit query against one category.
func (s *Service) Query(ctx context.Context, category Category, q domain.Query) ([]Record, error) {
	var out []Record
	err := s.view(ctx, "list_"+opName(category), func(v TransactionView) error {
		if err := requireRecordCategory(category); err != nil {
			return err
		}
		if q.ActiveOnly && !category.IsMutable() {
			return domain.ValidationError{Category: category, Reason: "active filter applies only to mutable categories"}
		}
		out = v.QueryRecords(category, q)
		return nil
	})
	return out, err
}

// ActiveRecords returns the active records of a mutable category.
func (s *Service) ActiveRecords(ctx context.Context, category Category, subjectID string) ([]Record, error) {
	return s.List(ctx, category, subjectID, ListOptions{ActiveOnly: true})
}

// LatestRecord returns the newest record of the subject, optionally of one
// type. ok is false when there is none.
func (s *Service) LatestRecord(ctx context.Context, category Category, subjectID, typeKey string) (Record, bool, error) {
	recs, err := s.List(ctx, category, subjectID, ListOptions{TypeKey: typeKey, Limit: 1})
	if err != nil || len(recs) == 0 {
		return Record{}, false, err
	}
	return recs[0], true, nil
}

// UpsertBaseline creates or replaces the baseline of a subject.
func (s *Service) UpsertBaseline(ctx context.Context, baseline BaselineProfile) (BaselineProfile, Result, error) {
	var stored BaselineProfile
	res, err := s.transact(ctx, "upsert_baseline", func(tx Transaction) error {
		var err error
		stored, err = tx.UpsertBaseline(baseline)
		return err
	})
	return stored, res, err
}

// Baseline returns the baseline of a subject.
func (s *Service) Baseline(ctx context.Context, subjectID string) (BaselineProfile, error) {
	var out BaselineProfile
	err := s.view(ctx, "get_baseline", func(v TransactionView) error {
		b, ok := v.Baseline(subjectID)
		if !ok {
			return domain.NotFoundError{Category: domain.CategoryBaseline, ID: subjectID}
		}
		out = b
		return nil
	})
	return out, err
}

func requireRecordCategory(c Category) error {
	if !c.IsRecord() {
		return domain.ValidationError{Category: c, Reason: "not a record category"}
	}
	return nil
}

func opName(c Category) string {
	return strings.ReplaceAll(string(c), "-", "_")
}
