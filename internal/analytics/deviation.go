// Package analytics holds the pure computations behind reports and alerts:
// baseline deviation, trends, hydration, cumulative risk, exam scheduling,
// lab reference ranges and food allergy analysis. Nothing here performs I/O
// or reads the clock; callers pass the current time in.
package analytics

import (
	"math"

	"afyafamilia/pkg/domain"
)

// CriticalDeviation is the absolute deviation, in standard deviations, at
// which a measurement is flagged critical.
const CriticalDeviation = 2.0

// DeviationClass partitions a deviation into three bands.
type DeviationClass string

// Deviation classes.
const (
	DeviationMarkedlyLow  DeviationClass = "markedly_low"
	DeviationNormal       DeviationClass = "normal"
	DeviationMarkedlyHigh DeviationClass = "markedly_high"
)

// DeviationResult describes how far a measurement sits from a baseline.
type DeviationResult struct {
	Deviation float64        `json:"deviation"`
	StdDev    float64        `json:"std_dev"`
	Critical  bool           `json:"critical"`
	Class     DeviationClass `json:"class"`
}

// CheckDeviation computes (current-baseline)/stdDev. A non-positive stdDev
// is replaced by domain.DefaultStdDev.
func CheckDeviation(current, baseline, stdDev float64) DeviationResult {
	if stdDev <= 0 || math.IsNaN(stdDev) {
		stdDev = domain.DefaultStdDev
	}
	d := (current - baseline) / stdDev
	res := DeviationResult{Deviation: d, StdDev: stdDev, Critical: math.Abs(d) >= CriticalDeviation, Class: DeviationNormal}
	switch {
	case d <= -CriticalDeviation:
		res.Class = DeviationMarkedlyLow
	case d >= CriticalDeviation:
		res.Class = DeviationMarkedlyHigh
	}
	return res
}
