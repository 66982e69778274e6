package core

import (
	"context"
	"fmt"
	"time"

	"afyafamilia/pkg/domain"
)

// FutureDateRule warns when a written record is dated more than tolerance
// after the clock reading. Plans and schedules are exempt.
func FutureDateRule(clock Clock, tolerance time.Duration) domain.Rule {
	return futureDateRule{clock: clock, tolerance: tolerance}
}

type futureDateRule struct {
	clock     Clock
	tolerance time.Duration
}

func (futureDateRule) Name() string { return "future_date" }

func (r futureDateRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	limit := r.clock.Now().Add(r.tolerance)
	for _, change := range changes {
		if change.Category == domain.CategoryEliminationPlan {
			continue
		}
		rec, ok := recordValue(change.After)
		if !ok || !rec.Date.After(limit) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("%s %s is dated %s, in the future", change.Category, change.RecordID, rec.Date.Format(time.DateOnly)),
			Category: change.Category,
			RecordID: change.RecordID,
		})
	}
	return res, nil
}
