package core

import "afyafamilia/pkg/domain"

type (
	Category           = domain.Category
	Record             = domain.Record
	AuditEntry         = domain.AuditEntry
	BaselineProfile    = domain.BaselineProfile
	Change             = domain.Change
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
