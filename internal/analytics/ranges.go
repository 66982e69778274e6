package analytics

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed ranges.yaml
var defaultRanges []byte

// LabStatus grades a lab value against its reference range.
type LabStatus string

// Lab statuses. Unknown is returned whenever no validated range exists.
const (
	LabUnknown LabStatus = "unknown"
	LabLow     LabStatus = "low"
	LabNormal  LabStatus = "normal"
	LabHigh    LabStatus = "high"
)

// Range is a reference interval for one lab test.
type Range struct {
	Min         *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Unit        string   `yaml:"unit,omitempty" json:"unit,omitempty"`
	Note        string   `yaml:"note,omitempty" json:"note,omitempty"`
	Placeholder bool     `yaml:"placeholder" json:"placeholder"`
}

// BPBand is the lower edge of a blood pressure class.
type BPBand struct {
	Systolic   float64 `yaml:"systolic"`
	Diastolic  float64 `yaml:"diastolic"`
	Percentile int     `yaml:"percentile"`
}

// BPGroup holds the bands of an age group. MaxAge of zero closes the list.
// Inclusive selects >= instead of > when comparing against a band.
type BPGroup struct {
	MaxAge    int    `yaml:"max_age,omitempty"`
	Inclusive bool   `yaml:"inclusive"`
	Elevated  BPBand `yaml:"elevated"`
	High      BPBand `yaml:"high"`
}

// BPTable is the provisional blood pressure classification.
type BPTable struct {
	Placeholder bool      `yaml:"placeholder"`
	Note        string    `yaml:"note,omitempty"`
	Groups      []BPGroup `yaml:"groups"`
}

// ReferenceRanges is a versioned set of provisional thresholds.
type ReferenceRanges struct {
	Version       int              `yaml:"version"`
	Validated     bool             `yaml:"validated"`
	Lab           map[string]Range `yaml:"lab"`
	BloodPressure BPTable          `yaml:"blood_pressure"`
}

// DefaultReferenceRanges returns the embedded reference set.
func DefaultReferenceRanges() ReferenceRanges {
	rr, err := ParseReferenceRanges(defaultRanges)
	if err != nil {
		panic(fmt.Sprintf("embedded reference ranges: %v", err))
	}
	return rr
}

// ParseReferenceRanges decodes and checks a YAML reference set.
func ParseReferenceRanges(data []byte) (ReferenceRanges, error) {
	var rr ReferenceRanges
	if err := yaml.Unmarshal(data, &rr); err != nil {
		return ReferenceRanges{}, fmt.Errorf("decode reference ranges: %w", err)
	}
	if rr.Version <= 0 {
		return ReferenceRanges{}, errors.New("reference ranges: version is required")
	}
	for name, r := range rr.Lab {
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return ReferenceRanges{}, fmt.Errorf("reference ranges: %s min exceeds max", name)
		}
	}
	return rr, nil
}

// Tests lists the configured lab test types in name order.
func (rr ReferenceRanges) Tests() []string {
	names := make([]string, 0, len(rr.Lab))
	for name := range rr.Lab {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LabCheck is the outcome of CheckLabValue.
type LabCheck struct {
	TestType string    `json:"test_type"`
	Value    float64   `json:"value"`
	Status   LabStatus `json:"status"`
	Range    *Range    `json:"range,omitempty"`
	Note     string    `json:"note,omitempty"`
}

// CheckLabValue grades value against the range of testType. Placeholder
// ranges, unknown tests and unvalidated sets all yield LabUnknown.
func (rr ReferenceRanges) CheckLabValue(testType string, value float64) LabCheck {
	check := LabCheck{TestType: testType, Value: value, Status: LabUnknown}
	r, ok := rr.Lab[testType]
	if !ok {
		check.Note = "range not defined"
		return check
	}
	check.Note = r.Note
	if r.Placeholder || !rr.Validated {
		return check
	}
	check.Range = &r
	switch {
	case r.Min != nil && value < *r.Min:
		check.Status = LabLow
	case r.Max != nil && value > *r.Max:
		check.Status = LabHigh
	default:
		check.Status = LabNormal
	}
	return check
}

// BPStatus grades a blood pressure reading.
type BPStatus string

// Blood pressure statuses.
const (
	BPNormal   BPStatus = "normal"
	BPElevated BPStatus = "elevated"
	BPHigh     BPStatus = "high"
)

// BPResult is a provisional blood pressure classification.
type BPResult struct {
	Status      BPStatus `json:"status"`
	Percentile  int      `json:"percentile"`
	Placeholder bool     `json:"placeholder"`
	Note        string   `json:"note,omitempty"`
}

// ClassifyBloodPressure places a reading in the band table for ageYears.
// The result is always flagged placeholder unless the table says otherwise.
func (rr ReferenceRanges) ClassifyBloodPressure(systolic, diastolic float64, ageYears int) BPResult {
	res := BPResult{Status: BPNormal, Percentile: 50, Placeholder: rr.BloodPressure.Placeholder || !rr.Validated, Note: rr.BloodPressure.Note}
	group, ok := rr.bpGroup(ageYears)
	if !ok {
		return res
	}
	if group.exceeds(group.Elevated, systolic, diastolic) {
		res.Status, res.Percentile = BPElevated, group.Elevated.Percentile
	}
	if group.exceeds(group.High, systolic, diastolic) {
		res.Status, res.Percentile = BPHigh, group.High.Percentile
	}
	return res
}

func (rr ReferenceRanges) bpGroup(age int) (BPGroup, bool) {
	for _, g := range rr.BloodPressure.Groups {
		if g.MaxAge == 0 || age <= g.MaxAge {
			return g, true
		}
	}
	return BPGroup{}, false
}

func (g BPGroup) exceeds(b BPBand, systolic, diastolic float64) bool {
	if g.Inclusive {
		return systolic >= b.Systolic || diastolic >= b.Diastolic
	}
	return systolic > b.Systolic || diastolic > b.Diastolic
}
