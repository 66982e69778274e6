package domain

import "time"

// MutationKind labels an audit entry.
type MutationKind string

// Audited mutation kinds.
const (
	MutationCreated     MutationKind = "created"
	MutationUpdated     MutationKind = "updated"
	MutationDeactivated MutationKind = "deactivated"
)

// ActionFor maps a mutation kind to the change action that produced it.
func (k MutationKind) ActionFor() Action {
	switch k {
	case MutationCreated:
		return ActionCreate
	case MutationUpdated:
		return ActionUpdate
	case MutationDeactivated:
		return ActionDeactivate
	}
	return ""
}

// AuditEntry is an append-only history row for a mutable record. OldValue
// is absent for created entries.
type AuditEntry struct {
	ID             string         `json:"id"`
	RecordCategory Category       `json:"record_category"`
	RecordID       string         `json:"record_id"`
	SubjectID      string         `json:"subject_id"`
	Kind           MutationKind   `json:"kind"`
	ChangedAt      time.Time      `json:"changed_at"`
	OldValue       RecordSnapshot `json:"old_value"`
	NewValue       RecordSnapshot `json:"new_value"`
	Note           string         `json:"note,omitempty"`
	// Sequence is assigned by the store in append order.
	Sequence int64 `json:"sequence"`
}

// OldRecord decodes the record snapshot taken before the change.
func (e AuditEntry) OldRecord() (Record, bool, error) {
	return e.OldValue.Record()
}

// NewRecord decodes the record snapshot taken after the change.
func (e AuditEntry) NewRecord() (Record, bool, error) {
	return e.NewValue.Record()
}
