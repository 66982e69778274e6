package domain

import "time"

// Priority orders elimination work.
type Priority string

// Recommendation priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns 0 for high, 1 for medium and 2 for everything else.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	}
	return 2
}

// ProtocolKind selects a reintroduction ladder.
type ProtocolKind string

// Reintroduction ladders.
const (
	// ProtocolSupervised is the clinical ladder for severe reactions.
	ProtocolSupervised ProtocolKind = "supervised"
	// ProtocolDairy is the fermented-first dairy ladder.
	ProtocolDairy ProtocolKind = "dairy"
	// ProtocolStandard is the default home ladder.
	ProtocolStandard ProtocolKind = "standard"
)

// Setting is where a reintroduction takes place.
type Setting string

// Reintroduction settings.
const (
	SettingHospital Setting = "hospital"
	SettingHome     Setting = "home"
)

// Portion is a reintroduction dose.
type Portion string

// Reintroduction portions.
const (
	PortionTrace        Portion = "trace"
	PortionQuarterSpoon Portion = "quarter_teaspoon"
	PortionHalfSpoon    Portion = "half_teaspoon"
	PortionTeaspoon     Portion = "teaspoon"
	PortionTwoTeaspoons Portion = "two_teaspoons"
	PortionThirtyML     Portion = "30ml"
	PortionNormal       Portion = "normal"
)

// ReintroductionStep is one dose of a ladder. Day counts from the start of
// reintroduction (day 1). WaitHours is the observation period after the
// dose; Monitor marks the open-ended final observation.
type ReintroductionStep struct {
	Day       int     `json:"day"`
	Food      string  `json:"food,omitempty"`
	Portion   Portion `json:"portion"`
	WaitHours int     `json:"wait_hours,omitempty"`
	Monitor   bool    `json:"monitor,omitempty"`
}

// ReintroductionProtocol is the ladder attached to a plan item.
type ReintroductionProtocol struct {
	Kind    ProtocolKind         `json:"kind"`
	Setting Setting              `json:"setting"`
	Steps   []ReintroductionStep `json:"steps"`
}

// PlanItemStatus tracks plan item progress.
type PlanItemStatus string

// Plan item states.
const (
	PlanItemPending PlanItemStatus = "pending"
)

// PlanItem eliminates one food for a date range.
type PlanItem struct {
	Food          string                 `json:"food"`
	Priority      Priority               `json:"priority"`
	Confidence    int                    `json:"confidence"`
	MaxSeverity   ReactionSeverity       `json:"max_severity,omitempty"`
	DurationWeeks int                    `json:"duration_weeks"`
	StartDate     time.Time              `json:"start_date"`
	EndDate       time.Time              `json:"end_date"`
	Status        PlanItemStatus         `json:"status"`
	Protocol      ReintroductionProtocol `json:"protocol"`
}

// EliminationPlan is a saved, ordered elimination schedule.
type EliminationPlan struct {
	StartDate time.Time  `json:"start_date"`
	Items     []PlanItem `json:"items"`
	Notes     string     `json:"notes,omitempty"`
}

func (EliminationPlan) Category() Category      { return CategoryEliminationPlan }
func (p EliminationPlan) OccurredAt() time.Time { return p.StartDate }

func (p EliminationPlan) Validate() error {
	if len(p.Items) == 0 {
		return missingFields(p.Category(), "items")
	}
	for _, item := range p.Items {
		if blank(item.Food) {
			return missingFields(p.Category(), "items.food")
		}
		if item.EndDate.Before(item.StartDate) {
			return ValidationError{Category: p.Category(), Reason: "plan item ends before it starts"}
		}
	}
	return nil
}
