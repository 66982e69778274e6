package memory

import (
	"fmt"
	"sort"

	"afyafamilia/pkg/domain"
)

type idSet map[string]struct{}

func (s idSet) clone() idSet {
	out := make(idSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// table holds one category's rows and its secondary indices.
type table struct {
	rows      map[string]domain.Record
	bySubject map[string]idSet
	byDay     map[string]idSet
	byType    map[string]idSet
	byActive  map[bool]idSet
}

func newTable() *table {
	return &table{
		rows:      make(map[string]domain.Record),
		bySubject: make(map[string]idSet),
		byDay:     make(map[string]idSet),
		byType:    make(map[string]idSet),
		byActive:  make(map[bool]idSet),
	}
}

func dayKey(rec domain.Record) string {
	return rec.Date.UTC().Format("2006-01-02")
}

func addTo[K comparable](index map[K]idSet, key K, id string) {
	set, ok := index[key]
	if !ok {
		set = make(idSet)
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFrom[K comparable](index map[K]idSet, key K, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

func (t *table) put(rec domain.Record) {
	if prev, ok := t.rows[rec.ID]; ok {
		t.unindex(prev)
	}
	t.rows[rec.ID] = rec
	t.index(rec)
}

func (t *table) index(rec domain.Record) {
	spec, _ := domain.Spec(rec.Category)
	addTo(t.bySubject, rec.SubjectID, rec.ID)
	addTo(t.byDay, dayKey(rec), rec.ID)
	if spec.HasIndex(domain.IndexType) {
		addTo(t.byType, rec.TypeKey(), rec.ID)
	}
	if spec.HasIndex(domain.IndexActive) {
		addTo(t.byActive, rec.Active(), rec.ID)
	}
}

func (t *table) unindex(rec domain.Record) {
	removeFrom(t.bySubject, rec.SubjectID, rec.ID)
	removeFrom(t.byDay, dayKey(rec), rec.ID)
	removeFrom(t.byType, rec.TypeKey(), rec.ID)
	removeFrom(t.byActive, rec.Active(), rec.ID)
}

func (t *table) clone() *table {
	out := &table{
		rows:      make(map[string]domain.Record, len(t.rows)),
		bySubject: make(map[string]idSet, len(t.bySubject)),
		byDay:     make(map[string]idSet, len(t.byDay)),
		byType:    make(map[string]idSet, len(t.byType)),
		byActive:  make(map[bool]idSet, len(t.byActive)),
	}
	// Stored records are never mutated in place, so sharing values is safe.
	for k, v := range t.rows {
		out.rows[k] = v
	}
	for k, v := range t.bySubject {
		out.bySubject[k] = v.clone()
	}
	for k, v := range t.byDay {
		out.byDay[k] = v.clone()
	}
	for k, v := range t.byType {
		out.byType[k] = v.clone()
	}
	for k, v := range t.byActive {
		out.byActive[k] = v.clone()
	}
	return out
}

// candidates narrows the row set with the most selective index for q.
func (t *table) candidates(q domain.Query) []string {
	var set idSet
	switch {
	case q.SubjectID != "":
		set = t.bySubject[q.SubjectID]
	case q.TypeKey != "":
		set = t.byType[q.TypeKey]
	default:
		ids := make([]string, 0, len(t.rows))
		for id := range t.rows {
			ids = append(ids, id)
		}
		return ids
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func (t *table) query(q domain.Query) []domain.Record {
	var out []domain.Record
	for _, id := range t.candidates(q) {
		rec, ok := t.rows[id]
		if !ok || !q.Matches(rec) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return domain.RecordLess(out[i], out[j]) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// verify rebuilds the indices from rows and compares them with the
// maintained ones.
func (t *table) verify(c domain.Category) error {
	rebuilt := newTable()
	for _, rec := range t.rows {
		if rec.Category != c {
			return fmt.Errorf("%s: record %s filed under wrong category %s", c, rec.ID, rec.Category)
		}
		rebuilt.index(rec)
	}
	checks := []struct {
		name string
		want map[string]idSet
		got  map[string]idSet
	}{
		{"subject", rebuilt.bySubject, t.bySubject},
		{"date", rebuilt.byDay, t.byDay},
		{"type", rebuilt.byType, t.byType},
	}
	for _, chk := range checks {
		if err := compareIndex(chk.want, chk.got); err != nil {
			return fmt.Errorf("%s %s index: %w", c, chk.name, err)
		}
	}
	if err := compareIndex(rebuilt.byActive, t.byActive); err != nil {
		return fmt.Errorf("%s active index: %w", c, err)
	}
	return nil
}

func compareIndex[K comparable](want, got map[K]idSet) error {
	if len(want) != len(got) {
		return fmt.Errorf("%d keys, want %d", len(got), len(want))
	}
	for key, ids := range want {
		have := got[key]
		if len(have) != len(ids) {
			return fmt.Errorf("key %v holds %d ids, want %d", key, len(have), len(ids))
		}
		for id := range ids {
			if _, ok := have[id]; !ok {
				return fmt.Errorf("key %v missing id %s", key, id)
			}
		}
	}
	return nil
}

type memoryState struct {
	tables        map[domain.Category]*table
	audit         map[string]domain.AuditEntry
	auditByRecord map[string][]string
	baselines     map[string]domain.BaselineProfile
	seq           int64
}

func newMemoryState() memoryState {
	state := memoryState{
		tables:        make(map[domain.Category]*table),
		audit:         make(map[string]domain.AuditEntry),
		auditByRecord: make(map[string][]string),
		baselines:     make(map[string]domain.BaselineProfile),
	}
	for _, c := range domain.RecordCategories() {
		state.tables[c] = newTable()
	}
	return state
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		tables:        make(map[domain.Category]*table, len(s.tables)),
		audit:         make(map[string]domain.AuditEntry, len(s.audit)),
		auditByRecord: make(map[string][]string, len(s.auditByRecord)),
		baselines:     make(map[string]domain.BaselineProfile, len(s.baselines)),
		seq:           s.seq,
	}
	for c, t := range s.tables {
		out.tables[c] = t.clone()
	}
	for k, v := range s.audit {
		out.audit[k] = v
	}
	for k, v := range s.auditByRecord {
		out.auditByRecord[k] = append([]string(nil), v...)
	}
	for k, v := range s.baselines {
		out.baselines[k] = v
	}
	return out
}

func recordKey(c domain.Category, id string) string {
	return string(c) + "/" + id
}

func (s *memoryState) appendAudit(entry domain.AuditEntry) {
	s.seq++
	entry.Sequence = s.seq
	s.audit[entry.ID] = entry
	key := recordKey(entry.RecordCategory, entry.RecordID)
	s.auditByRecord[key] = append(s.auditByRecord[key], entry.ID)
}

func (s *memoryState) history(c domain.Category, id string) []domain.AuditEntry {
	ids := s.auditByRecord[recordKey(c, id)]
	out := make([]domain.AuditEntry, 0, len(ids))
	for _, entryID := range ids {
		if entry, ok := s.audit[entryID]; ok {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.AuditLess(out[i], out[j]) })
	return out
}

func snapshotFromMemoryState(state memoryState) domain.Snapshot {
	snap := domain.Snapshot{Version: domain.SchemaVersion}
	for _, c := range domain.RecordCategories() {
		t := state.tables[c]
		for _, rec := range t.rows {
			snap.Records = append(snap.Records, rec.Clone())
		}
	}
	sort.Slice(snap.Records, func(i, j int) bool {
		a, b := snap.Records[i], snap.Records[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.ID < b.ID
	})
	for _, entry := range state.audit {
		snap.Audit = append(snap.Audit, entry)
	}
	sort.Slice(snap.Audit, func(i, j int) bool { return snap.Audit[i].Sequence < snap.Audit[j].Sequence })
	for _, b := range state.baselines {
		snap.Baselines = append(snap.Baselines, b)
	}
	sort.Slice(snap.Baselines, func(i, j int) bool { return snap.Baselines[i].SubjectID < snap.Baselines[j].SubjectID })
	return snap
}

func memoryStateFromSnapshot(snap domain.Snapshot) (memoryState, error) {
	state := newMemoryState()
	for _, rec := range snap.Records {
		t, ok := state.tables[rec.Category]
		if !ok {
			return memoryState{}, fmt.Errorf("record %s: category %q is not a record category", rec.ID, rec.Category)
		}
		if _, dup := t.rows[rec.ID]; dup {
			return memoryState{}, fmt.Errorf("duplicate %s record %s", rec.Category, rec.ID)
		}
		t.put(rec.Clone())
	}
	entries := append([]domain.AuditEntry(nil), snap.Audit...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
	for _, entry := range entries {
		if _, dup := state.audit[entry.ID]; dup {
			return memoryState{}, fmt.Errorf("duplicate audit entry %s", entry.ID)
		}
		seq := entry.Sequence
		state.appendAudit(entry)
		if seq > state.seq {
			state.seq = seq
			stored := state.audit[entry.ID]
			stored.Sequence = seq
			state.audit[entry.ID] = stored
		}
	}
	for _, b := range snap.Baselines {
		state.baselines[b.SubjectID] = b.Normalize()
	}
	return state, nil
}
