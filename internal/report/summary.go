package report

import (
	"math"
	"strconv"
	"time"

	"afyafamilia/internal/analytics"
	"afyafamilia/pkg/domain"
)

const topN = 3

// AlertKind names a critical alert.
type AlertKind string

// Alert kinds raised by the report.
const (
	AlertHbTrend         AlertKind = "hb_trend"
	AlertHbDeviation     AlertKind = "hb_deviation"
	AlertTransfusionRisk AlertKind = "transfusion_risk"
	AlertHydration       AlertKind = "hydration"
	AlertExamOverdue     AlertKind = "exam_overdue"
)

// AlertSeverity grades an alert.
type AlertSeverity string

// Alert severities.
const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a condition that needs attention. Subject names the exam type
// for exam alerts.
type Alert struct {
	Kind     AlertKind     `json:"kind"`
	Severity AlertSeverity `json:"severity"`
	Subject  string        `json:"subject,omitempty"`
}

// HourCount is the number of seizures that started in an hour of the day.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Summary aggregates the report's analytics.
type Summary struct {
	TotalSeizures        int                        `json:"total_seizures"`
	AveragePerWeek       float64                    `json:"average_per_week"`
	CommonTriggers       []analytics.Counted        `json:"common_triggers"`
	FoodReactions        []analytics.Counted        `json:"food_reactions"`
	PeakHours            []HourCount                `json:"peak_hours"`
	HbTrend              analytics.TrendResult      `json:"hb_trend"`
	HbDeviation          *analytics.DeviationResult `json:"hb_deviation,omitempty"`
	LabChecks            []analytics.LabCheck       `json:"lab_checks,omitempty"`
	TransfusionRisk      analytics.RiskResult       `json:"transfusion_risk"`
	RedFlagCount         int                        `json:"red_flag_count"`
	HospitalizationCount int                        `json:"hospitalization_count"`
	TotalBedDays         int                        `json:"total_bed_days"`
	Exams                []analytics.ExamCheck      `json:"exams"`
	Hydration            *analytics.IntakeCheck     `json:"hydration,omitempty"`
	CriticalAlerts       []Alert                    `json:"critical_alerts"`
}

func (g *Generator) summarise(rep Report, snap snapshot, now time.Time) Summary {
	seizures := rep.Events[domain.CategorySeizureEvent]
	labs := rep.Events[domain.CategoryLabResult]
	hospitalizations := rep.Events[domain.CategoryHospitalization]

	s := Summary{
		TotalSeizures:        len(seizures),
		AveragePerWeek:       AveragePerWeek(seizures, rep.Period),
		CommonTriggers:       commonTriggers(seizures),
		FoodReactions:        foodReactions(rep.Events[domain.CategoryFoodDiary]),
		PeakHours:            PeakHours(seizures),
		HbTrend:              analytics.DetectTrend(analytics.LabPoints(labs, domain.LabTestHemoglobin)),
		LabChecks:            g.latestLabChecks(labs),
		TransfusionRisk:      analytics.CumulativeRisk(recordDates(snap.transfusions), now, g.riskYears),
		RedFlagCount:         len(rep.Events[domain.CategoryRedFlag]),
		HospitalizationCount: len(hospitalizations),
		Exams:                analytics.ExamSchedule(snap.exams, now.In(g.location), g.graceDays),
	}
	for _, rec := range hospitalizations {
		if h, ok := rec.Payload.(domain.Hospitalization); ok {
			s.TotalBedDays += h.Days()
		}
	}

	if snap.baseline != nil {
		if hb, ok := latestValue(labs, domain.LabTestHemoglobin); ok && snap.baseline.SteadyStateHb > 0 {
			dev := analytics.CheckDeviation(hb, snap.baseline.SteadyStateHb, snap.baseline.HbStdDev)
			s.HbDeviation = &dev
		}
		if tracking, ok := latestTracking(rep.Events[domain.CategoryDailyTracking]); ok {
			check := analytics.CheckIntake(tracking.WaterIntakeLiters, snap.baseline.CurrentWeightKg)
			s.Hydration = &check
		}
	}

	s.CriticalAlerts = alerts(s)
	return s
}

func alerts(s Summary) []Alert {
	var out []Alert
	if s.HbTrend.Trend == analytics.TrendDecreasing {
		out = append(out, Alert{Kind: AlertHbTrend, Severity: SeverityWarning})
	}
	if s.HbDeviation != nil && s.HbDeviation.Critical {
		out = append(out, Alert{Kind: AlertHbDeviation, Severity: SeverityCritical})
	}
	if s.TransfusionRisk.HasRisk {
		out = append(out, Alert{Kind: AlertTransfusionRisk, Severity: SeverityCritical})
	}
	if s.Hydration != nil && (s.Hydration.Status == analytics.IntakeCriticallyLow || s.Hydration.Status == analytics.IntakeLow) {
		out = append(out, Alert{Kind: AlertHydration, Severity: SeverityWarning})
	}
	for _, exam := range s.Exams {
		if exam.Status == analytics.ExamOverdue {
			out = append(out, Alert{Kind: AlertExamOverdue, Severity: SeverityWarning, Subject: exam.ExamType})
		}
	}
	return out
}

// AveragePerWeek divides the seizure count by the weeks in the period.
// Open bounds fall back to the oldest and newest seizure.
// A zero-length span yields the plain count. Rounded to one decimal.
func AveragePerWeek(seizures []domain.Record, period Period) float64 {
	if len(seizures) == 0 {
		return 0
	}
	oldest, newest := seizures[0].Date, seizures[0].Date
	for _, rec := range seizures[1:] {
		if rec.Date.Before(oldest) {
			oldest = rec.Date
		}
		if rec.Date.After(newest) {
			newest = rec.Date
		}
	}
	if period.Start != nil {
		oldest = *period.Start
	}
	if period.End != nil {
		newest = *period.End
	}
	weeks := newest.Sub(oldest).Hours() / (7 * 24)
	if weeks <= 0 {
		return float64(len(seizures))
	}
	return math.Round(float64(len(seizures))/weeks*10) / 10
}

// PeakHours returns the three hours of day with the most seizures. Records
// arrive newest first, so ties favour the most recent seizure.
func PeakHours(seizures []domain.Record) []HourCount {
	hours := make([]string, 0, len(seizures))
	for _, rec := range seizures {
		hours = append(hours, strconv.Itoa(rec.Date.Hour()))
	}
	counted := analytics.TopCounts(hours, topN)
	out := make([]HourCount, 0, len(counted))
	for _, c := range counted {
		h, _ := strconv.Atoi(c.Value)
		out = append(out, HourCount{Hour: h, Count: c.Count})
	}
	return out
}

func commonTriggers(seizures []domain.Record) []analytics.Counted {
	var triggers []string
	for _, rec := range seizures {
		if ev, ok := rec.Payload.(domain.SeizureEvent); ok {
			triggers = append(triggers, ev.Triggers...)
		}
	}
	return analytics.TopCounts(triggers, topN)
}

func foodReactions(days []domain.Record) []analytics.Counted {
	var reactions []string
	for _, rec := range days {
		if entry, ok := rec.Payload.(domain.FoodDiaryEntry); ok {
			reactions = append(reactions, entry.Reactions...)
		}
	}
	return analytics.TopCounts(reactions, topN)
}

// latestLabChecks grades the newest value of every lab test type.
func (g *Generator) latestLabChecks(labs []domain.Record) []analytics.LabCheck {
	seen := make(map[string]bool)
	var out []analytics.LabCheck
	for _, rec := range labs {
		lab, ok := rec.Payload.(domain.LabResult)
		if !ok || lab.Value == nil || seen[lab.TestType] {
			continue
		}
		seen[lab.TestType] = true
		out = append(out, g.ranges.CheckLabValue(lab.TestType, *lab.Value))
	}
	return out
}

// Records arrive newest first; the helpers below rely on that order.

func latestValue(labs []domain.Record, testType string) (float64, bool) {
	for _, rec := range labs {
		if lab, ok := rec.Payload.(domain.LabResult); ok && lab.TestType == testType && lab.Value != nil {
			return *lab.Value, true
		}
	}
	return 0, false
}

func latestTracking(days []domain.Record) (domain.DailyTracking, bool) {
	for _, rec := range days {
		if t, ok := rec.Payload.(domain.DailyTracking); ok {
			return t, true
		}
	}
	return domain.DailyTracking{}, false
}

func recordDates(recs []domain.Record) []time.Time {
	out := make([]time.Time, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Date)
	}
	return out
}
