package domain

import (
	"strings"
	"time"
)

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// SeizureEvent is a logged seizure.
type SeizureEvent struct {
	DateTime          time.Time `json:"date_time"`
	Duration          string    `json:"duration,omitempty"`
	BeforeSeizure     string    `json:"before_seizure,omitempty"`
	Aura              string    `json:"aura,omitempty"`
	Onset             []string  `json:"onset,omitempty"`
	BodyParts         []string  `json:"body_parts,omitempty"`
	LostConsciousness bool      `json:"lost_consciousness,omitempty"`
	Triggers          []string  `json:"triggers,omitempty"`
	AfterSeizure      []string  `json:"after_seizure,omitempty"`
	EmergencyMeds     string    `json:"emergency_meds,omitempty"`
	Location          string    `json:"location,omitempty"`
	TookMeds          bool      `json:"took_meds,omitempty"`
	Notes             string    `json:"notes,omitempty"`
}

func (SeizureEvent) Category() Category      { return CategorySeizureEvent }
func (p SeizureEvent) OccurredAt() time.Time { return p.DateTime }

func (p SeizureEvent) Validate() error {
	if p.DateTime.IsZero() {
		return missingFields(p.Category(), "date_time")
	}
	return nil
}

// Therapy is a basic anti-epileptic therapy entry. Timing maps a time of
// day to the dose taken then.
type Therapy struct {
	MedicationName string            `json:"medication_name"`
	Dosage         string            `json:"dosage,omitempty"`
	Timing         map[string]string `json:"timing,omitempty"`
	ChildWeightKg  float64           `json:"child_weight_kg,omitempty"`
	Notes          string            `json:"notes,omitempty"`
}

func (Therapy) Category() Category    { return CategoryTherapy }
func (Therapy) OccurredAt() time.Time { return time.Time{} }

func (p Therapy) Validate() error {
	if blank(p.MedicationName) {
		return missingFields(p.Category(), "medication_name")
	}
	return nil
}

// DevelopmentCheckpoint captures developmental observations at a point in time.
type DevelopmentCheckpoint struct {
	RecordDate        time.Time `json:"record_date,omitzero"`
	Speech            bool      `json:"speech"`
	SocialInteraction string    `json:"social_interaction,omitempty"`
	RecognizesParents bool      `json:"recognizes_parents"`
	SchoolPerformance string    `json:"school_performance,omitempty"`
	BladderControl    bool      `json:"bladder_control"`
	BowelControl      bool      `json:"bowel_control"`
	Notes             string    `json:"notes,omitempty"`
}

func (DevelopmentCheckpoint) Category() Category      { return CategoryDevelopment }
func (p DevelopmentCheckpoint) OccurredAt() time.Time { return p.RecordDate }
func (DevelopmentCheckpoint) Validate() error         { return nil }

// LabResult is a single laboratory measurement.
type LabResult struct {
	Date     time.Time `json:"date"`
	TestType string    `json:"test_type"`
	Value    *float64  `json:"value"`
	Unit     string    `json:"unit,omitempty"`
	Notes    string    `json:"notes,omitempty"`
}

// Common lab test types.
const (
	LabTestHemoglobin = "hb"
	LabTestFerritin   = "ferritin"
)

func (LabResult) Category() Category      { return CategoryLabResult }
func (p LabResult) OccurredAt() time.Time { return p.Date }
func (p LabResult) TypeKey() string       { return p.TestType }

func (p LabResult) Validate() error {
	var missing []string
	if p.Date.IsZero() {
		missing = append(missing, "date")
	}
	if blank(p.TestType) {
		missing = append(missing, "test_type")
	}
	if p.Value == nil {
		missing = append(missing, "value")
	}
	return missingFields(p.Category(), missing...)
}

// Medication is a general medication course.
type Medication struct {
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

func (Medication) Category() Category      { return CategoryMedication }
func (p Medication) OccurredAt() time.Time { return derefTime(p.StartDate) }

func (p Medication) Validate() error {
	if blank(p.Name) {
		return missingFields(p.Category(), "name")
	}
	return nil
}

// Transfusion is a blood transfusion.
type Transfusion struct {
	Date     time.Time `json:"date"`
	Reason   string    `json:"reason,omitempty"`
	AmountML float64   `json:"amount_ml,omitempty"`
	Notes    string    `json:"notes,omitempty"`
}

func (Transfusion) Category() Category      { return CategoryTransfusion }
func (p Transfusion) OccurredAt() time.Time { return p.Date }

func (p Transfusion) Validate() error {
	if p.Date.IsZero() {
		return missingFields(p.Category(), "date")
	}
	return nil
}

// Hospitalization is a hospital admission.
type Hospitalization struct {
	AdmissionDate time.Time  `json:"admission_date"`
	DischargeDate *time.Time `json:"discharge_date,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	BedDays       int        `json:"bed_days,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

func (Hospitalization) Category() Category      { return CategoryHospitalization }
func (p Hospitalization) OccurredAt() time.Time { return p.AdmissionDate }

func (p Hospitalization) Validate() error {
	if p.AdmissionDate.IsZero() {
		return missingFields(p.Category(), "admission_date")
	}
	if p.DischargeDate != nil && p.DischargeDate.Before(p.AdmissionDate) {
		return ValidationError{Category: p.Category(), Reason: "discharge_date precedes admission_date"}
	}
	return nil
}

// Days returns the recorded bed days, deriving them from the discharge date
// when not given.
func (p Hospitalization) Days() int {
	if p.BedDays > 0 || p.DischargeDate == nil {
		return p.BedDays
	}
	return CalendarDaysBetween(p.AdmissionDate, *p.DischargeDate, nil)
}

// Operation is a surgical operation.
type Operation struct {
	Date    time.Time `json:"date"`
	Type    string    `json:"type,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Notes   string    `json:"notes,omitempty"`
}

func (Operation) Category() Category      { return CategoryOperation }
func (p Operation) OccurredAt() time.Time { return p.Date }
func (p Operation) TypeKey() string       { return p.Type }

func (p Operation) Validate() error {
	if p.Date.IsZero() {
		return missingFields(p.Category(), "date")
	}
	return nil
}

// Vaccination is an administered vaccine.
type Vaccination struct {
	Date        time.Time `json:"date"`
	VaccineName string    `json:"vaccine_name"`
	Notes       string    `json:"notes,omitempty"`
}

func (Vaccination) Category() Category      { return CategoryVaccination }
func (p Vaccination) OccurredAt() time.Time { return p.Date }

func (p Vaccination) Validate() error {
	var missing []string
	if p.Date.IsZero() {
		missing = append(missing, "date")
	}
	if blank(p.VaccineName) {
		missing = append(missing, "vaccine_name")
	}
	return missingFields(p.Category(), missing...)
}

// Cadence is the repeat interval of a periodic exam.
type Cadence string

// Supported exam cadences.
const (
	CadenceMonthly    Cadence = "monthly"
	CadenceSixMonthly Cadence = "6months"
	CadenceYearly     Cadence = "yearly"
)

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceMonthly, CadenceSixMonthly, CadenceYearly:
		return true
	}
	return false
}

// AnnualExam is a periodic examination.
type AnnualExam struct {
	Date          time.Time  `json:"date"`
	ExamType      string     `json:"exam_type"`
	Result        string     `json:"result,omitempty"`
	NextScheduled *time.Time `json:"next_scheduled,omitempty"`
	Frequency     Cadence    `json:"frequency,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

func (AnnualExam) Category() Category      { return CategoryAnnualExam }
func (p AnnualExam) OccurredAt() time.Time { return p.Date }
func (p AnnualExam) TypeKey() string       { return p.ExamType }

func (p AnnualExam) Validate() error {
	var missing []string
	if p.Date.IsZero() {
		missing = append(missing, "date")
	}
	if blank(p.ExamType) {
		missing = append(missing, "exam_type")
	}
	if err := missingFields(p.Category(), missing...); err != nil {
		return err
	}
	if p.Frequency != "" && !p.Frequency.Valid() {
		return ValidationError{Category: p.Category(), Reason: "unknown frequency " + string(p.Frequency)}
	}
	return nil
}

// DailyTracking is a day of hydration tracking.
type DailyTracking struct {
	Date               time.Time `json:"date"`
	WaterIntakeLiters  float64   `json:"water_intake_liters,omitempty"`
	Clothing           string    `json:"clothing,omitempty"`
	UrinationFrequency int       `json:"urination_frequency,omitempty"`
	Notes              string    `json:"notes,omitempty"`
}

func (DailyTracking) Category() Category      { return CategoryDailyTracking }
func (p DailyTracking) OccurredAt() time.Time { return p.Date }

func (p DailyTracking) Validate() error {
	if p.Date.IsZero() {
		return missingFields(p.Category(), "date")
	}
	return nil
}

// RedFlagEvent records warning symptoms and the action taken.
type RedFlagEvent struct {
	Date        time.Time `json:"date"`
	Symptoms    []string  `json:"symptoms"`
	ActionTaken string    `json:"action_taken,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

func (RedFlagEvent) Category() Category      { return CategoryRedFlag }
func (p RedFlagEvent) OccurredAt() time.Time { return p.Date }

func (p RedFlagEvent) Validate() error {
	var missing []string
	if p.Date.IsZero() {
		missing = append(missing, "date")
	}
	if len(p.Symptoms) == 0 {
		missing = append(missing, "symptoms")
	}
	return missingFields(p.Category(), missing...)
}

// DoctorVisit is a consultation.
type DoctorVisit struct {
	Date          time.Time  `json:"date"`
	NextVisit     *time.Time `json:"next_visit,omitempty"`
	Discussed     string     `json:"discussed,omitempty"`
	Prescriptions string     `json:"prescriptions,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

func (DoctorVisit) Category() Category      { return CategoryDoctorVisit }
func (p DoctorVisit) OccurredAt() time.Time { return p.Date }

func (p DoctorVisit) Validate() error {
	if p.Date.IsZero() {
		return missingFields(p.Category(), "date")
	}
	return nil
}

// ReactionSeverity grades a food reaction.
type ReactionSeverity string

// Reaction severities in ascending order.
const (
	ReactionMild     ReactionSeverity = "mild"
	ReactionModerate ReactionSeverity = "moderate"
	ReactionSevere   ReactionSeverity = "severe"
)

// Rank orders severities; unknown values rank 0.
func (s ReactionSeverity) Rank() int {
	switch s {
	case ReactionMild:
		return 1
	case ReactionModerate:
		return 2
	case ReactionSevere:
		return 3
	}
	return 0
}

// FoodItem is one food eaten on a diary day.
type FoodItem struct {
	Name   string `json:"name"`
	Amount string `json:"amount,omitempty"`
}

// FoodDiaryEntry is one day of the food diary. A day with at least one
// reaction is a reaction day.
type FoodDiaryEntry struct {
	Date      time.Time        `json:"date"`
	Foods     []FoodItem       `json:"foods"`
	Reactions []string         `json:"reactions,omitempty"`
	Severity  ReactionSeverity `json:"severity,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

func (FoodDiaryEntry) Category() Category      { return CategoryFoodDiary }
func (p FoodDiaryEntry) OccurredAt() time.Time { return p.Date }

// HasReaction reports whether the day recorded any reaction.
func (p FoodDiaryEntry) HasReaction() bool { return len(p.Reactions) > 0 }

func (p FoodDiaryEntry) Validate() error {
	var missing []string
	if p.Date.IsZero() {
		missing = append(missing, "date")
	}
	if len(p.Foods) == 0 {
		missing = append(missing, "foods")
	}
	if err := missingFields(p.Category(), missing...); err != nil {
		return err
	}
	for _, f := range p.Foods {
		if blank(f.Name) {
			return missingFields(p.Category(), "foods.name")
		}
	}
	if p.Severity != "" && p.Severity.Rank() == 0 {
		return ValidationError{Category: p.Category(), Reason: "unknown severity " + string(p.Severity)}
	}
	return nil
}

// CalendarDaysBetween returns the whole calendar days from a to b as seen
// on the wall clock of loc. A nil loc means UTC.
func CalendarDaysBetween(a, b time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
