// Package report assembles the per-subject medical report and runs the food
// allergy workflow on top of the record service. Category snapshots are
// fetched concurrently; all scoring is delegated to internal/analytics.
package report

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"afyafamilia/internal/analytics"
	"afyafamilia/internal/core"
	"afyafamilia/pkg/domain"
)

// Generator builds reports from the records held by one service.
type Generator struct {
	svc       *core.Service
	ranges    analytics.ReferenceRanges
	graceDays int
	riskYears int
	location  *time.Location
}

// Option configures a Generator.
type Option func(*Generator)

// WithReferenceRanges replaces the embedded reference ranges.
func WithReferenceRanges(r analytics.ReferenceRanges) Option {
	return func(g *Generator) { g.ranges = r }
}

// WithGraceDays sets the exam grace period.
func WithGraceDays(days int) Option {
	return func(g *Generator) {
		if days > 0 {
			g.graceDays = days
		}
	}
}

// WithRiskYears sets the trailing window of the transfusion risk check.
func WithRiskYears(years int) Option {
	return func(g *Generator) {
		if years > 0 {
			g.riskYears = years
		}
	}
}

// WithLocation sets the time zone in which exam due dates are counted.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.location = loc
		}
	}
}

// NewGenerator returns a generator reading through svc.
func NewGenerator(svc *core.Service, opts ...Option) *Generator {
	g := &Generator{
		svc:       svc,
		ranges:    analytics.DefaultReferenceRanges(),
		graceDays: analytics.DefaultGraceDays,
		riskYears: analytics.DefaultRiskYears,
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Period is the inclusive report range. Nil bounds are open.
type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	if p.Start != nil && t.Before(*p.Start) {
		return false
	}
	if p.End != nil && t.After(*p.End) {
		return false
	}
	return true
}

// Report is the assembled view of one subject.
type Report struct {
	SubjectID         string                              `json:"subject_id"`
	GeneratedAt       time.Time                           `json:"generated_at"`
	Period            Period                              `json:"period"`
	Events            map[domain.Category][]domain.Record `json:"events"`
	ActiveMutables    map[domain.Category][]domain.Record `json:"active_mutables"`
	LatestDevelopment *domain.Record                      `json:"latest_development,omitempty"`
	Baseline          *domain.BaselineProfile             `json:"baseline,omitempty"`
	Summary           Summary                             `json:"summary"`
}

// snapshot is everything fetched for one report before summarising.
type snapshot struct {
	events       [][]domain.Record
	active       [][]domain.Record
	transfusions []domain.Record
	exams        []domain.Record
	development  *domain.Record
	baseline     *domain.BaselineProfile
}

// Generate builds the report of subjectID for the inclusive range
// [start, end].
func (g *Generator) Generate(ctx context.Context, subjectID string, start, end *time.Time) (Report, error) {
	if err := requireSubject(subjectID); err != nil {
		return Report{}, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return Report{}, domain.ValidationError{Reason: "report end precedes start"}
	}
	now := g.svc.Now()
	period := Period{Start: start, End: end}
	snap, err := g.fetch(ctx, subjectID, period, now)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		SubjectID:         subjectID,
		GeneratedAt:       now,
		Period:            period,
		Events:            make(map[domain.Category][]domain.Record),
		ActiveMutables:    make(map[domain.Category][]domain.Record),
		LatestDevelopment: snap.development,
		Baseline:          snap.baseline,
	}
	for i, c := range domain.EventCategories() {
		rep.Events[c] = snap.events[i]
	}
	for i, c := range mutableCategories() {
		rep.ActiveMutables[c] = snap.active[i]
	}
	rep.Summary = g.summarise(rep, snap, now)
	return rep, nil
}

func mutableCategories() []domain.Category {
	return []domain.Category{domain.CategoryTherapy, domain.CategoryMedication}
}

func (g *Generator) fetch(ctx context.Context, subjectID string, period Period, now time.Time) (snapshot, error) {
	eventCats := domain.EventCategories()
	mutable := mutableCategories()
	snap := snapshot{
		events: make([][]domain.Record, len(eventCats)),
		active: make([][]domain.Record, len(mutable)),
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i, c := range eventCats {
		eg.Go(func() error {
			recs, err := g.svc.Query(ctx, c, domain.Query{SubjectID: subjectID, From: period.Start, To: period.End})
			if err != nil {
				return err
			}
			snap.events[i] = recs
			return nil
		})
	}
	for i, c := range mutable {
		eg.Go(func() error {
			recs, err := g.svc.ActiveRecords(ctx, c, subjectID)
			if err != nil {
				return err
			}
			snap.active[i] = recs
			return nil
		})
	}
	eg.Go(func() error {
		cutoff := now.AddDate(-g.riskYears, 0, 0)
		recs, err := g.svc.Query(ctx, domain.CategoryTransfusion, domain.Query{SubjectID: subjectID, From: &cutoff})
		if err != nil {
			return err
		}
		snap.transfusions = recs
		return nil
	})
	eg.Go(func() error {
		recs, err := g.svc.List(ctx, domain.CategoryAnnualExam, subjectID, core.ListOptions{})
		if err != nil {
			return err
		}
		snap.exams = recs
		return nil
	})
	eg.Go(func() error {
		rec, ok, err := g.svc.LatestRecord(ctx, domain.CategoryDevelopment, subjectID, "")
		if err != nil || !ok {
			return err
		}
		snap.development = &rec
		return nil
	})
	eg.Go(func() error {
		b, err := g.svc.Baseline(ctx, subjectID)
		var nf domain.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		if err != nil {
			return err
		}
		snap.baseline = &b
		return nil
	})
	if err := eg.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// requireSubject rejects a blank subject id. An empty query subject matches
// every subject.
func requireSubject(subjectID string) error {
	if strings.TrimSpace(subjectID) == "" {
		return domain.ValidationError{Fields: []string{"subject_id"}}
	}
	return nil
}
