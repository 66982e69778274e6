package domain

import (
	"strings"
	"time"
)

// DefaultStdDev is applied when a baseline carries no usable standard deviation.
const DefaultStdDev = 1.0

// BaselineProfile holds the per-subject reference values used by analytics.
type BaselineProfile struct {
	SubjectID          string    `json:"subject_id"`
	SteadyStateHb      float64   `json:"steady_state_hb,omitempty"`
	HbStdDev           float64   `json:"hb_std_dev"`
	CurrentWeightKg    float64   `json:"current_weight_kg,omitempty"`
	KnownComplications []string  `json:"known_complications,omitempty"`
	EnvironmentalRisks []string  `json:"environmental_risks,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Normalize applies defaults.
func (b BaselineProfile) Normalize() BaselineProfile {
	if b.HbStdDev <= 0 {
		b.HbStdDev = DefaultStdDev
	}
	b.KnownComplications = append([]string(nil), b.KnownComplications...)
	b.EnvironmentalRisks = append([]string(nil), b.EnvironmentalRisks...)
	return b
}

// Validate checks required fields.
func (b BaselineProfile) Validate() error {
	if strings.TrimSpace(b.SubjectID) == "" {
		return ValidationError{Category: CategoryBaseline, Fields: []string{"subject_id"}}
	}
	if b.SteadyStateHb < 0 || b.CurrentWeightKg < 0 {
		return ValidationError{Category: CategoryBaseline, Reason: "values must not be negative"}
	}
	return nil
}
