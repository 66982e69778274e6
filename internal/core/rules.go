package core

import "time"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
// A nil clock reads the wall clock.
func NewDefaultRulesEngine(clock Clock) *RulesEngine {
	if clock == nil {
		clock = ClockFunc(func() time.Time { return time.Now().UTC() })
	}
	engine := NewRulesEngine()
	engine.Register(AuditCoverageRule())
	engine.Register(TerminalDeactivationRule())
	engine.Register(FutureDateRule(clock, 24*time.Hour))
	return engine
}

func recordValue(v any) (Record, bool) {
	rec, ok := v.(Record)
	return rec, ok
}
