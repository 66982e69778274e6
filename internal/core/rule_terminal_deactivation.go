package core

import (
	"context"
	"fmt"

	"afyafamilia/pkg/domain"
)

// TerminalDeactivationRule blocks any change that brings a deactivated
// record back to active.
func TerminalDeactivationRule() domain.Rule {
	return terminalDeactivationRule{}
}

type terminalDeactivationRule struct{}

func (terminalDeactivationRule) Name() string { return "terminal_deactivation" }

func (r terminalDeactivationRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if !change.Category.IsMutable() {
			continue
		}
		before, ok := recordValue(change.Before)
		if !ok || before.Lifecycle == nil || before.Lifecycle.Active {
			continue
		}
		after, ok := recordValue(change.After)
		if !ok || !after.Active() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("%s %s was deactivated and cannot be reactivated", change.Category, change.RecordID),
			Category: change.Category,
			RecordID: change.RecordID,
		})
	}
	return res, nil
}
