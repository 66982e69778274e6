package analytics

import "time"

// Cumulative risk defaults and thresholds.
const (
	DefaultRiskYears      = 5
	HighRiskThreshold     = 20
	ModerateRiskThreshold = 15
)

// RiskLevel grades a cumulative count.
type RiskLevel string

// Risk levels.
const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// RiskResult counts qualifying events in a trailing window.
type RiskResult struct {
	Count     int       `json:"count"`
	YearsBack int       `json:"years_back"`
	Level     RiskLevel `json:"level"`
	HasRisk   bool      `json:"has_risk"`
}

// CumulativeRisk counts events on or after now minus yearsBack years.
// A non-positive yearsBack uses DefaultRiskYears.
func CumulativeRisk(events []time.Time, now time.Time, yearsBack int) RiskResult {
	if yearsBack <= 0 {
		yearsBack = DefaultRiskYears
	}
	cutoff := now.AddDate(-yearsBack, 0, 0)
	res := RiskResult{YearsBack: yearsBack, Level: RiskLow}
	for _, at := range events {
		if !at.Before(cutoff) {
			res.Count++
		}
	}
	switch {
	case res.Count > HighRiskThreshold:
		res.Level = RiskHigh
		res.HasRisk = true
	case res.Count > ModerateRiskThreshold:
		res.Level = RiskModerate
	}
	return res
}
