package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports a missing or malformed field on a write.
type ValidationError struct {
	Category Category
	Fields   []string
	Reason   string
}

func (e ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	if e.Category != "" {
		fmt.Fprintf(&b, " for %s", e.Category)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, ": missing %s", strings.Join(e.Fields, ", "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// NotFoundError reports a reference to a record that does not exist.
type NotFoundError struct {
	Category Category
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Category, e.ID)
}

// StorageError wraps a rejected durable transaction. Nothing from the
// transaction is applied when it is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("storage: %v", e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// LifecycleError reports a mutation of a record whose lifecycle has ended.
type LifecycleError struct {
	Category Category
	ID       string
	Op       string
}

func (e LifecycleError) Error() string {
	return fmt.Sprintf("%s %q is deactivated; %s not permitted", e.Category, e.ID, e.Op)
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	rules := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			rules = append(rules, v.Rule)
		}
	}
	if len(rules) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(rules, ", ")
}

func missingFields(c Category, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return ValidationError{Category: c, Fields: fields}
}
