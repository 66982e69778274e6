package domain

import (
	"context"
	"time"
)

// Transaction exposes the record operations a persistence implementation
// must support within an atomic scope. Writes to mutable categories append
// exactly one audit entry each.
type Transaction interface {
	Snapshot() TransactionView
	// Now returns the timestamp stamped on every write of the transaction.
	Now() time.Time
	CreateRecord(rec Record, note string) (Record, error)
	UpdateRecord(category Category, id, note string, mutator func(*Record) error) (Record, error)
	DeactivateRecord(category Category, id, reason string) (Record, error)
	UpsertBaseline(BaselineProfile) (BaselineProfile, error)
	FindRecord(category Category, id string) (Record, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// queries.
type TransactionView interface {
	FindRecord(category Category, id string) (Record, bool)
	QueryRecords(category Category, q Query) []Record
	History(category Category, recordID string) []AuditEntry
	Baseline(subjectID string) (BaselineProfile, bool)
}

// PersistentStore is the transactional record store used by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	NowFunc() func() time.Time
}

// Snapshot is the full persisted state at a schema version.
type Snapshot struct {
	Version   int               `json:"version"`
	Records   []Record          `json:"records"`
	Audit     []AuditEntry      `json:"audit"`
	Baselines []BaselineProfile `json:"baselines"`
}
