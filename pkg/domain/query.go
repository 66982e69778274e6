package domain

import "time"

// Window is a trailing time window. At most one field may be set.
type Window struct {
	DaysBack   int `json:"days_back,omitempty" yaml:"days_back,omitempty"`
	MonthsBack int `json:"months_back,omitempty" yaml:"months_back,omitempty"`
	YearsBack  int `json:"years_back,omitempty" yaml:"years_back,omitempty"`
}

// Days returns a window of n days.
func Days(n int) Window { return Window{DaysBack: n} }

// Months returns a window of n months.
func Months(n int) Window { return Window{MonthsBack: n} }

// Years returns a window of n years.
func Years(n int) Window { return Window{YearsBack: n} }

// IsZero reports whether no bound is set.
func (w Window) IsZero() bool { return w == Window{} }

// Validate rejects negative and combined windows.
func (w Window) Validate() error {
	set := 0
	for _, v := range []int{w.DaysBack, w.MonthsBack, w.YearsBack} {
		if v < 0 {
			return ValidationError{Reason: "window must not be negative"}
		}
		if v > 0 {
			set++
		}
	}
	if set > 1 {
		return ValidationError{Reason: "window accepts only one of days_back, months_back, years_back"}
	}
	return nil
}

// Cutoff returns now minus the window. ok is false for a zero window.
func (w Window) Cutoff(now time.Time) (cutoff time.Time, ok bool) {
	switch {
	case w.DaysBack > 0:
		return now.AddDate(0, 0, -w.DaysBack), true
	case w.MonthsBack > 0:
		return now.AddDate(0, -w.MonthsBack, 0), true
	case w.YearsBack > 0:
		return now.AddDate(-w.YearsBack, 0, 0), true
	}
	return time.Time{}, false
}

// Query selects records of one category. Bounds are inclusive; nil bounds
// are open. Results are ordered by Date descending.
type Query struct {
	SubjectID  string
	From       *time.Time
	To         *time.Time
	TypeKey    string
	ActiveOnly bool
	Limit      int
}

// Matches reports whether rec satisfies every filter of q.
func (q Query) Matches(rec Record) bool {
	if q.SubjectID != "" && rec.SubjectID != q.SubjectID {
		return false
	}
	if q.From != nil && rec.Date.Before(*q.From) {
		return false
	}
	if q.To != nil && rec.Date.After(*q.To) {
		return false
	}
	if q.TypeKey != "" && rec.TypeKey() != q.TypeKey {
		return false
	}
	if q.ActiveOnly && !rec.Active() {
		return false
	}
	return true
}

// RecordLess orders records by Date descending, then CreatedAt descending,
// then ID ascending.
func RecordLess(a, b Record) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// AuditLess orders audit entries by ChangedAt descending, then by append
// order descending.
func AuditLess(a, b AuditEntry) bool {
	if !a.ChangedAt.Equal(b.ChangedAt) {
		return a.ChangedAt.After(b.ChangedAt)
	}
	if a.Sequence != b.Sequence {
		return a.Sequence > b.Sequence
	}
	return a.ID < b.ID
}
