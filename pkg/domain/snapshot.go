package domain

import (
	"bytes"
	"encoding/json"
)

// RecordSnapshot is the JSON image of a record stored on an audit entry.
// The zero value is absent and encodes as null.
type RecordSnapshot struct {
	raw json.RawMessage
}

// SnapshotOf captures rec as it is now.
func SnapshotOf(rec Record) (RecordSnapshot, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return RecordSnapshot{}, err
	}
	return RecordSnapshot{raw: raw}, nil
}

// Present reports whether a record was captured.
func (s RecordSnapshot) Present() bool {
	return len(s.raw) > 0
}

// Record decodes the captured record. ok is false for an absent snapshot.
func (s RecordSnapshot) Record() (rec Record, ok bool, err error) {
	if !s.Present() {
		return Record{}, false, nil
	}
	if err := json.Unmarshal(s.raw, &rec); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// MarshalJSON implements json.Marshaler.
func (s RecordSnapshot) MarshalJSON() ([]byte, error) {
	if !s.Present() {
		return []byte("null"), nil
	}
	return bytes.Clone(s.raw), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *RecordSnapshot) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*s = RecordSnapshot{}
		return nil
	}
	s.raw = bytes.Clone(data)
	return nil
}
