package analytics

import (
	"slices"
	"strings"
	"time"

	"afyafamilia/pkg/domain"
)

// PlanGapDays separates consecutive elimination windows.
const PlanGapDays = 3

var dairyMarkers = []string{"maziwa", "milk"}

// CreateEliminationPlan schedules the suspicious foods one after another
// from start. Items are ordered by priority, keeping the input order within
// a priority; each window lasts the recommended number of weeks and the
// next one begins PlanGapDays after it ends.
func CreateEliminationPlan(items []SuspiciousFood, start time.Time) domain.EliminationPlan {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b SuspiciousFood) int {
		return a.Recommendation.Priority.Rank() - b.Recommendation.Priority.Rank()
	})

	plan := domain.EliminationPlan{StartDate: start}
	current := start
	for _, item := range sorted {
		weeks := item.Recommendation.DurationWeeks
		if weeks <= 0 {
			weeks = 2
		}
		end := current.AddDate(0, 0, weeks*7)
		plan.Items = append(plan.Items, domain.PlanItem{
			Food:          item.Food,
			Priority:      item.Recommendation.Priority,
			Confidence:    item.Confidence,
			MaxSeverity:   item.MaxSeverity,
			DurationWeeks: weeks,
			StartDate:     current,
			EndDate:       end,
			Status:        domain.PlanItemPending,
			Protocol:      ReintroductionFor(item),
		})
		current = end.AddDate(0, 0, PlanGapDays)
	}
	return plan
}

// ReintroductionFor picks the ladder for a food: supervised after a severe
// reaction, the dairy ladder for milk products, otherwise the standard one.
func ReintroductionFor(item SuspiciousFood) domain.ReintroductionProtocol {
	if item.MaxSeverity == domain.ReactionSevere {
		return domain.ReintroductionProtocol{
			Kind:    domain.ProtocolSupervised,
			Setting: domain.SettingHospital,
			Steps: []domain.ReintroductionStep{
				{Day: 1, Portion: domain.PortionTrace, WaitHours: 2},
				{Day: 2, Portion: domain.PortionQuarterSpoon, WaitHours: 4},
				{Day: 3, Portion: domain.PortionHalfSpoon, WaitHours: 24},
			},
		}
	}
	if isDairy(item.Food) {
		return domain.ReintroductionProtocol{
			Kind:    domain.ProtocolDairy,
			Setting: domain.SettingHome,
			Steps: []domain.ReintroductionStep{
				{Day: 1, Food: "yogurt", Portion: domain.PortionTeaspoon, WaitHours: 72},
				{Day: 4, Food: "kefir", Portion: domain.PortionTwoTeaspoons, WaitHours: 72},
				{Day: 7, Food: "fresh milk", Portion: domain.PortionThirtyML, WaitHours: 72},
				{Day: 10, Food: "fresh milk", Portion: domain.PortionNormal, WaitHours: 72},
			},
		}
	}
	return domain.ReintroductionProtocol{
		Kind:    domain.ProtocolStandard,
		Setting: domain.SettingHome,
		Steps: []domain.ReintroductionStep{
			{Day: 1, Portion: domain.PortionQuarterSpoon, WaitHours: 72},
			{Day: 4, Portion: domain.PortionHalfSpoon, WaitHours: 72},
			{Day: 7, Portion: domain.PortionTeaspoon, WaitHours: 72},
			{Day: 10, Portion: domain.PortionNormal, Monitor: true},
		},
	}
}

func isDairy(food string) bool {
	for _, marker := range dairyMarkers {
		if strings.Contains(food, marker) {
			return true
		}
	}
	return false
}
