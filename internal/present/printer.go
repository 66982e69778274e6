package present

import (
	"strconv"

	"afyafamilia/internal/analytics"
	"afyafamilia/internal/report"
	"afyafamilia/pkg/domain"
)

// Printer renders results in one language.
type Printer struct {
	catalog *Catalog
	lang    Lang
}

// NewPrinter returns a printer over catalog. A nil catalog uses Default.
func NewPrinter(catalog *Catalog, lang Lang) Printer {
	if catalog == nil {
		catalog = Default()
	}
	return Printer{catalog: catalog, lang: lang}
}

// Lang returns the printer language.
func (p Printer) Lang() Lang { return p.lang }

func (p Printer) text(group, key string, args map[string]string) string {
	return p.catalog.Text(p.lang, group, key, args)
}

// Trend describes an Hb trend.
func (p Printer) Trend(t analytics.TrendResult) string {
	return p.text("trend", string(t.Trend), nil)
}

// Deviation describes a baseline deviation.
func (p Printer) Deviation(d analytics.DeviationResult) string {
	return p.text("deviation", string(d.Class), nil)
}

// Lab describes a graded lab value.
func (p Printer) Lab(c analytics.LabCheck) string {
	return p.text("lab", string(c.Status), nil)
}

// BloodPressure describes a blood pressure class.
func (p Printer) BloodPressure(r analytics.BPResult) string {
	return p.text("bp", string(r.Status), nil)
}

// Intake describes a hydration check.
func (p Printer) Intake(c analytics.IntakeCheck) string {
	return p.text("intake", string(c.Status), nil)
}

// FluidNeeds states the daily requirement in liters.
func (p Printer) FluidNeeds(n analytics.FluidNeeds) string {
	return p.text("fluid", "required", map[string]string{"liters": strconv.FormatFloat(n.Liters(), 'f', 1, 64)})
}

// Risk describes a cumulative transfusion count.
func (p Printer) Risk(r analytics.RiskResult) string {
	return p.text("risk", string(r.Level), map[string]string{
		"count": strconv.Itoa(r.Count),
		"years": strconv.Itoa(r.YearsBack),
	})
}

// Exam describes a scheduled exam.
func (p Printer) Exam(c analytics.ExamCheck) string {
	days := c.DaysUntil
	if days < 0 {
		days = -days
	}
	return p.text("exam", string(c.Status), map[string]string{
		"days": strconv.Itoa(days),
		"date": c.Scheduled.Format("2006-01-02"),
	})
}

// Recommendation describes the tier of a suspicious food.
func (p Printer) Recommendation(r analytics.Recommendation) string {
	return p.text("action", string(r.Action), map[string]string{"weeks": strconv.Itoa(r.DurationWeeks)})
}

// Priority names a priority.
func (p Printer) Priority(pr domain.Priority) string {
	return p.text("priority", string(pr), nil)
}

// Severity names an alert severity.
func (p Printer) Severity(s report.AlertSeverity) string {
	return p.text("severity", string(s), nil)
}

// Alert describes a critical alert, using the summary for details where
// one applies.
func (p Printer) Alert(a report.Alert, s report.Summary) string {
	switch a.Kind {
	case report.AlertHbDeviation:
		if s.HbDeviation != nil {
			return p.Deviation(*s.HbDeviation)
		}
	case report.AlertTransfusionRisk:
		return p.Risk(s.TransfusionRisk)
	case report.AlertHydration:
		if s.Hydration != nil {
			return p.Intake(*s.Hydration)
		}
	case report.AlertExamOverdue:
		title := p.text("alert", string(a.Kind), map[string]string{"exam": a.Subject})
		for _, c := range s.Exams {
			if c.ExamType == a.Subject {
				return title + ": " + p.Exam(c)
			}
		}
		return title
	}
	return p.text("alert", string(a.Kind), nil)
}
