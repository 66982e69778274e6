// Package domain defines the persistent record types, the category schema
// registry, audit entries and the store contracts shared by the afyafamilia
// persistence backends, services and analytics.
package domain

import (
	"fmt"
	"strings"
)

// Category identifies a record collection. The set is closed; every switch
// over Category in this module is exhaustive.
type Category string

// Record categories persisted by the store.
const (
	// CategorySeizureEvent holds logged seizures.
	CategorySeizureEvent Category = "seizure-events"
	// CategoryTherapy holds basic (anti-epileptic) therapy entries. Mutable.
	CategoryTherapy Category = "therapy"
	// CategoryTherapyHistory holds the audit trail of mutable categories.
	CategoryTherapyHistory Category = "therapy-history"
	// CategoryDevelopment holds development checkpoints.
	CategoryDevelopment Category = "development-checkpoints"
	// CategoryLabResult holds laboratory measurements.
	CategoryLabResult Category = "lab-results"
	// CategoryMedication holds general medications. Mutable.
	CategoryMedication Category = "medications"
	// CategoryTransfusion holds blood transfusions.
	CategoryTransfusion Category = "transfusions"
	// CategoryHospitalization holds hospital admissions.
	CategoryHospitalization Category = "hospitalizations"
	// CategoryOperation holds surgical operations.
	CategoryOperation Category = "operations"
	// CategoryVaccination holds vaccinations.
	CategoryVaccination Category = "vaccinations"
	// CategoryAnnualExam holds periodic examinations.
	CategoryAnnualExam Category = "annual-exams"
	// CategoryDailyTracking holds daily hydration tracking.
	CategoryDailyTracking Category = "daily-tracking"
	// CategoryRedFlag holds red-flag symptom events.
	CategoryRedFlag Category = "red-flag-events"
	// CategoryDoctorVisit holds doctor visits.
	CategoryDoctorVisit Category = "doctor-visits"
	// CategoryBaseline holds one baseline profile per subject.
	CategoryBaseline Category = "baseline-profile"
	// CategoryFoodDiary holds food diary days.
	CategoryFoodDiary Category = "food-diary-entries"
	// CategoryEliminationPlan holds saved elimination plans.
	CategoryEliminationPlan Category = "elimination-plans"
)

var allCategories = []Category{
	CategorySeizureEvent,
	CategoryTherapy,
	CategoryTherapyHistory,
	CategoryDevelopment,
	CategoryLabResult,
	CategoryMedication,
	CategoryTransfusion,
	CategoryHospitalization,
	CategoryOperation,
	CategoryVaccination,
	CategoryAnnualExam,
	CategoryDailyTracking,
	CategoryRedFlag,
	CategoryDoctorVisit,
	CategoryBaseline,
	CategoryFoodDiary,
	CategoryEliminationPlan,
}

// Categories returns every category in declaration order.
func Categories() []Category {
	return append([]Category(nil), allCategories...)
}

// RecordCategories returns the categories written through the generic record
// API (everything except the audit trail and baseline profiles).
func RecordCategories() []Category {
	out := make([]Category, 0, len(allCategories))
	for _, c := range allCategories {
		if c.IsRecord() {
			out = append(out, c)
		}
	}
	return out
}

// EventCategories returns the non-mutable record categories that carry
// dated events and are included in reports.
func EventCategories() []Category {
	out := make([]Category, 0, len(allCategories))
	for _, c := range allCategories {
		if c.IsRecord() && !c.IsMutable() && c != CategoryEliminationPlan {
			out = append(out, c)
		}
	}
	return out
}

// ParseCategory resolves a category name.
func ParseCategory(name string) (Category, error) {
	c := Category(strings.TrimSpace(strings.ToLower(name)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", name)
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	_, ok := Spec(c)
	return ok
}

// IsMutable reports whether records of c have an audited active/inactive lifecycle.
func (c Category) IsMutable() bool {
	spec, ok := Spec(c)
	return ok && spec.Mutable
}

// IsRecord reports whether c is written through the generic record API.
func (c Category) IsRecord() bool {
	spec, ok := Spec(c)
	return ok && !spec.Audit && !spec.Singleton
}

func (c Category) String() string { return string(c) }
