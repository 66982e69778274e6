package core

import (
	"context"
	"fmt"

	"afyafamilia/pkg/domain"
)

// AuditCoverageRule blocks transactions in which a mutable record change
// is not matched by exactly one audit entry, or an audit entry points at a
// record that does not exist.
func AuditCoverageRule() domain.Rule {
	return auditCoverageRule{}
}

type auditCoverageRule struct{}

type auditKey struct {
	category domain.Category
	id       string
	action   domain.Action
}

func (auditCoverageRule) Name() string { return "audit_coverage" }

func (r auditCoverageRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	covered := make(map[auditKey]int)
	for _, change := range changes {
		if change.Category != domain.CategoryTherapyHistory {
			continue
		}
		entry, ok := change.After.(domain.AuditEntry)
		if !ok {
			res.Violations = append(res.Violations, r.violation(change.Category, change.RecordID, "audit change without an audit entry"))
			continue
		}
		if _, exists := view.FindRecord(entry.RecordCategory, entry.RecordID); !exists || !entry.RecordCategory.IsMutable() {
			res.Violations = append(res.Violations, r.violation(entry.RecordCategory, entry.RecordID,
				fmt.Sprintf("audit entry %s references no mutable record", entry.ID)))
			continue
		}
		covered[auditKey{entry.RecordCategory, entry.RecordID, entry.Kind.ActionFor()}]++
	}
	for _, change := range changes {
		if !change.Category.IsMutable() {
			continue
		}
		if n := covered[auditKey{change.Category, change.RecordID, change.Action}]; n != 1 {
			res.Violations = append(res.Violations, r.violation(change.Category, change.RecordID,
				fmt.Sprintf("%s of %s %s has %d audit entries, want 1", change.Action, change.Category, change.RecordID, n)))
		}
	}
	return res, nil
}

func (r auditCoverageRule) violation(c domain.Category, id, msg string) domain.Violation {
	return domain.Violation{Rule: r.Name(), Severity: domain.SeverityBlock, Message: msg, Category: c, RecordID: id}
}
