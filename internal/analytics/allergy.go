package analytics

import (
	"slices"
	"strings"

	"afyafamilia/pkg/domain"
)

// Suspicion thresholds.
const (
	SuspicionConfidence  = 0.6
	SuspicionMinReaction = 2
	// DefaultAllergyWindowDays is the diary history analysed by default.
	DefaultAllergyWindowDays = 30
)

// RecommendationAction is what to do about a suspicious food.
type RecommendationAction string

// Recommendation actions.
const (
	ActionEliminate RecommendationAction = "eliminate"
	ActionMonitor   RecommendationAction = "monitor"
)

// Recommendation is the tier assigned to a suspicious food.
type Recommendation struct {
	Action        RecommendationAction `json:"action"`
	Priority      domain.Priority      `json:"priority"`
	DurationWeeks int                  `json:"duration_weeks"`
}

// SuspiciousFood is a food whose occurrences coincide with reaction days.
// Confidence is an integer percentage.
type SuspiciousFood struct {
	Food            string                  `json:"food"`
	Confidence      int                     `json:"confidence"`
	ReactionCount   int                     `json:"reaction_count"`
	TotalCount      int                     `json:"total_count"`
	CommonReactions []string                `json:"common_reactions"`
	MaxSeverity     domain.ReactionSeverity `json:"max_severity,omitempty"`
	Recommendation  Recommendation          `json:"recommendation"`
}

// AllergyAnalysis is the result of AnalyzeAllergies.
type AllergyAnalysis struct {
	Suspicious        []SuspiciousFood `json:"suspicious"`
	Safe              []string         `json:"safe"`
	ReactionDaysCount int              `json:"reaction_days_count"`
	TotalDaysCount    int              `json:"total_days_count"`
}

// NormalizeFood case-folds and trims a food name.
func NormalizeFood(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type foodTally struct {
	name          string
	totalCount    int
	reactionCount int
	reactions     []string
	maxSeverity   domain.ReactionSeverity
}

// AnalyzeAllergies scores every food by the share of its occurrences that
// fall on reaction days. Entries are processed in date order so that ties
// break by first appearance.
func AnalyzeAllergies(entries []domain.FoodDiaryEntry) AllergyAnalysis {
	days := slices.Clone(entries)
	slices.SortStableFunc(days, func(a, b domain.FoodDiaryEntry) int { return a.Date.Compare(b.Date) })

	tallies := make(map[string]*foodTally)
	var order []string
	res := AllergyAnalysis{TotalDaysCount: len(days)}
	for _, day := range days {
		reaction := day.HasReaction()
		if reaction {
			res.ReactionDaysCount++
		}
		for _, food := range day.Foods {
			name := NormalizeFood(food.Name)
			t, ok := tallies[name]
			if !ok {
				t = &foodTally{name: name}
				tallies[name] = t
				order = append(order, name)
			}
			t.totalCount++
			if !reaction {
				continue
			}
			t.reactionCount++
			t.reactions = append(t.reactions, day.Reactions...)
			if day.Severity.Rank() > t.maxSeverity.Rank() {
				t.maxSeverity = day.Severity
			}
		}
	}

	suspicious := make(map[string]bool)
	for _, name := range order {
		t := tallies[name]
		confidence := float64(t.reactionCount) / float64(t.totalCount)
		if confidence < SuspicionConfidence || t.reactionCount < SuspicionMinReaction {
			continue
		}
		suspicious[name] = true
		res.Suspicious = append(res.Suspicious, SuspiciousFood{
			Food:            name,
			Confidence:      percent(confidence),
			ReactionCount:   t.reactionCount,
			TotalCount:      t.totalCount,
			CommonReactions: topN(t.reactions, 3),
			MaxSeverity:     t.maxSeverity,
			Recommendation:  recommend(confidence, t.maxSeverity),
		})
	}
	slices.SortStableFunc(res.Suspicious, func(a, b SuspiciousFood) int { return b.Confidence - a.Confidence })

	seen := make(map[string]bool)
	for _, day := range days {
		if day.HasReaction() {
			continue
		}
		for _, food := range day.Foods {
			name := NormalizeFood(food.Name)
			if suspicious[name] || seen[name] {
				continue
			}
			seen[name] = true
			res.Safe = append(res.Safe, name)
		}
	}
	return res
}

func percent(f float64) int {
	return int(f*100 + 0.5)
}

func recommend(confidence float64, maxSeverity domain.ReactionSeverity) Recommendation {
	switch {
	case maxSeverity == domain.ReactionSevere || confidence > 0.9:
		return Recommendation{Action: ActionEliminate, Priority: domain.PriorityHigh, DurationWeeks: 4}
	case confidence > 0.7:
		return Recommendation{Action: ActionEliminate, Priority: domain.PriorityMedium, DurationWeeks: 2}
	default:
		return Recommendation{Action: ActionMonitor, Priority: domain.PriorityLow, DurationWeeks: 2}
	}
}

// TopN returns the n most frequent values in descending count order. Ties
// keep the order in which values first appear.
func TopN(values []string, n int) []string {
	return topN(values, n)
}

// Counted is a value with its frequency.
type Counted struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// TopCounts is TopN with the counts attached.
func TopCounts(values []string, n int) []Counted {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	out := make([]Counted, 0, len(order))
	for _, v := range order {
		out = append(out, Counted{Value: v, Count: counts[v]})
	}
	slices.SortStableFunc(out, func(a, b Counted) int { return b.Count - a.Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topN(values []string, n int) []string {
	counted := TopCounts(values, n)
	out := make([]string, 0, len(counted))
	for _, c := range counted {
		out = append(out, c.Value)
	}
	return out
}
