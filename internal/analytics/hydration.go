package analytics

import "math"

// ConditionMultiplier scales the maintenance fluid requirement for the
// tracked condition.
const ConditionMultiplier = 1.5

// IntakeStatus grades daily fluid intake.
type IntakeStatus string

// Intake statuses.
const (
	IntakeUnknown       IntakeStatus = "unknown"
	IntakeCriticallyLow IntakeStatus = "critically_low"
	IntakeLow           IntakeStatus = "low"
	IntakeAdequate      IntakeStatus = "adequate"
	IntakeGood          IntakeStatus = "good"
)

// FluidNeeds is the daily requirement for a body weight.
type FluidNeeds struct {
	WeightKg   float64 `json:"weight_kg"`
	BaseML     float64 `json:"base_ml"`
	RequiredML float64 `json:"required_ml"`
}

// Liters returns the requirement in liters.
func (n FluidNeeds) Liters() float64 { return n.RequiredML / 1000 }

// BaseFluid is the tiered maintenance requirement in mL for weight w kg.
func BaseFluid(w float64) float64 {
	switch {
	case w <= 0:
		return 0
	case w <= 10:
		return 100 * w
	case w <= 20:
		return 1000 + 50*(w-10)
	default:
		return 1500 + 20*(w-20)
	}
}

// FluidRequirement returns the condition-adjusted daily requirement.
func FluidRequirement(w float64) FluidNeeds {
	base := BaseFluid(w)
	return FluidNeeds{WeightKg: w, BaseML: base, RequiredML: base * ConditionMultiplier}
}

// IntakeCheck grades an actual intake against the requirement.
type IntakeCheck struct {
	Status         IntakeStatus `json:"status"`
	Needs          FluidNeeds   `json:"needs"`
	ActualML       float64      `json:"actual_ml"`
	PercentOfNeeds float64      `json:"percent_of_needs"`
	ShortfallML    float64      `json:"shortfall_ml"`
}

// CheckIntake grades actualLiters against the requirement for weight w.
// Without a positive weight there is no requirement and the status is
// unknown.
func CheckIntake(actualLiters, w float64) IntakeCheck {
	actual := actualLiters * 1000
	if w <= 0 {
		return IntakeCheck{Status: IntakeUnknown, ActualML: actual}
	}
	needs := FluidRequirement(w)
	pct := actual / needs.RequiredML * 100
	check := IntakeCheck{
		Needs:          needs,
		ActualML:       actual,
		PercentOfNeeds: math.Round(pct),
		ShortfallML:    math.Max(0, needs.RequiredML-actual),
	}
	switch {
	case pct < 60:
		check.Status = IntakeCriticallyLow
	case pct < 80:
		check.Status = IntakeLow
	case pct > 120:
		check.Status = IntakeGood
	default:
		check.Status = IntakeAdequate
	}
	return check
}
