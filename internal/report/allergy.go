package report

import (
	"context"

	"afyafamilia/internal/analytics"
	"afyafamilia/internal/core"
	"afyafamilia/pkg/domain"
)

// AnalyzeAllergies scores the food diary of subjectID over window. A zero
// window covers the last analytics.DefaultAllergyWindowDays days.
func (g *Generator) AnalyzeAllergies(ctx context.Context, subjectID string, window domain.Window) (analytics.AllergyAnalysis, error) {
	if err := requireSubject(subjectID); err != nil {
		return analytics.AllergyAnalysis{}, err
	}
	if window.IsZero() {
		window = domain.Days(analytics.DefaultAllergyWindowDays)
	}
	recs, err := g.svc.List(ctx, domain.CategoryFoodDiary, subjectID, core.ListOptions{Window: window})
	if err != nil {
		return analytics.AllergyAnalysis{}, err
	}
	entries := make([]domain.FoodDiaryEntry, 0, len(recs))
	for _, rec := range recs {
		if entry, ok := rec.Payload.(domain.FoodDiaryEntry); ok {
			entries = append(entries, entry)
		}
	}
	return analytics.AnalyzeAllergies(entries), nil
}

// PlanElimination schedules the suspicious foods of analysis starting now.
// With save the plan is stored as an elimination-plans record and returned
// alongside it.
func (g *Generator) PlanElimination(ctx context.Context, subjectID string, analysis analytics.AllergyAnalysis, save bool) (domain.EliminationPlan, *domain.Record, error) {
	if err := requireSubject(subjectID); err != nil {
		return domain.EliminationPlan{}, nil, err
	}
	plan := analytics.CreateEliminationPlan(analysis.Suspicious, g.svc.Now())
	if !save {
		return plan, nil, nil
	}
	rec, _, err := g.svc.Create(ctx, domain.CategoryEliminationPlan, subjectID, plan)
	if err != nil {
		return domain.EliminationPlan{}, nil, err
	}
	return plan, &rec, nil
}
