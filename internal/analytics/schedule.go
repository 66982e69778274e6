package analytics

import (
	"time"

	"afyafamilia/pkg/domain"
)

// DefaultGraceDays is the tolerance after a scheduled date before an exam
// is overdue.
const DefaultGraceDays = 7

// ExamStatus is the scheduling state of a periodic exam.
type ExamStatus string

// Exam statuses.
const (
	ExamOverdue     ExamStatus = "overdue"
	ExamGracePeriod ExamStatus = "grace_period"
	ExamSoon        ExamStatus = "soon"
	ExamScheduled   ExamStatus = "scheduled"
	ExamUpcoming    ExamStatus = "upcoming"
)

// NextDueDate advances last by one cadence step. An unknown cadence
// returns last unchanged.
func NextDueDate(last time.Time, cadence domain.Cadence) time.Time {
	switch cadence {
	case domain.CadenceMonthly:
		return last.AddDate(0, 1, 0)
	case domain.CadenceSixMonthly:
		return last.AddDate(0, 6, 0)
	case domain.CadenceYearly:
		return last.AddDate(1, 0, 0)
	}
	return last
}

// ExamCheck is the status of one scheduled exam.
type ExamCheck struct {
	ExamType  string     `json:"exam_type,omitempty"`
	Status    ExamStatus `json:"status"`
	DaysUntil int        `json:"days_until"`
	Scheduled time.Time  `json:"scheduled"`
}

// CheckExam classifies scheduled against today by calendar days in the
// location of today. A non-positive graceDays uses DefaultGraceDays.
func CheckExam(scheduled, today time.Time, graceDays int) ExamCheck {
	if graceDays <= 0 {
		graceDays = DefaultGraceDays
	}
	days := domain.CalendarDaysBetween(today, scheduled, today.Location())
	check := ExamCheck{DaysUntil: days, Scheduled: scheduled}
	switch {
	case days < -graceDays:
		check.Status = ExamOverdue
	case days < 0:
		check.Status = ExamGracePeriod
	case days <= 30:
		check.Status = ExamSoon
	case days <= 90:
		check.Status = ExamScheduled
	default:
		check.Status = ExamUpcoming
	}
	return check
}

// ExamSchedule derives the next due date of every exam type from annual
// exam records and classifies it. An explicit NextScheduled wins over the
// cadence; exams with neither are skipped. Results follow the order in
// which exam types first appear in records.
func ExamSchedule(records []domain.Record, today time.Time, graceDays int) []ExamCheck {
	latest := make(map[string]domain.AnnualExam)
	var order []string
	for _, rec := range records {
		exam, ok := rec.Payload.(domain.AnnualExam)
		if !ok {
			continue
		}
		prev, seen := latest[exam.ExamType]
		if !seen {
			order = append(order, exam.ExamType)
		}
		if !seen || exam.Date.After(prev.Date) {
			latest[exam.ExamType] = exam
		}
	}
	var checks []ExamCheck
	for _, examType := range order {
		exam := latest[examType]
		var due time.Time
		switch {
		case exam.NextScheduled != nil:
			due = *exam.NextScheduled
		case exam.Frequency.Valid():
			due = NextDueDate(exam.Date, exam.Frequency)
		default:
			continue
		}
		check := CheckExam(due, today, graceDays)
		check.ExamType = examType
		checks = append(checks, check)
	}
	return checks
}
