package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afyafamilia/internal/blob"
	"afyafamilia/internal/core"
	"afyafamilia/internal/report"
	"afyafamilia/pkg/domain"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) (*core.Service, *report.Generator, *Archiver) {
	t.Helper()
	svc := core.NewInMemoryService(nil, core.WithClock(core.ClockFunc(func() time.Time { return now })))
	return svc, report.NewGenerator(svc), New(blob.NewMemory())
}

func TestSaveAndLoadReport(t *testing.T) {
	ctx := context.Background()
	svc, gen, arc := newFixture(t)
	_, _, err := svc.Create(ctx, domain.CategorySeizureEvent, "child-1", domain.SeizureEvent{DateTime: now.Add(-time.Hour), Triggers: []string{"fever"}})
	require.NoError(t, err)

	rep, err := gen.Generate(ctx, "child-1", nil, nil)
	require.NoError(t, err)

	info, err := arc.SaveReport(ctx, rep)
	require.NoError(t, err)
	assert.Equal(t, "reports/child-1/20250601T120000Z.json", info.Key)
	assert.Equal(t, "application/json", info.ContentType)
	assert.Equal(t, "child-1", info.Metadata[MetaSubject])

	_, err = arc.SaveReport(ctx, rep)
	require.ErrorIs(t, err, blob.ErrExists)

	loaded, err := arc.LoadReport(ctx, info.Key)
	require.NoError(t, err)
	assert.Equal(t, "child-1", loaded.SubjectID)
	assert.True(t, loaded.GeneratedAt.Equal(now))
	assert.Equal(t, 1, loaded.Summary.TotalSeizures)
	require.Len(t, loaded.Events[domain.CategorySeizureEvent], 1)
	ev, ok := loaded.Events[domain.CategorySeizureEvent][0].Payload.(domain.SeizureEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"fever"}, ev.Triggers)
}

func TestSaveReportRequiresSubject(t *testing.T) {
	_, _, arc := newFixture(t)
	_, err := arc.SaveReport(context.Background(), report.Report{GeneratedAt: now})
	var vErr domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestSavePlanAndList(t *testing.T) {
	ctx := context.Background()
	svc, gen, arc := newFixture(t)
	day := now.AddDate(0, 0, -5)
	for i := 0; i < 3; i++ {
		_, _, err := svc.Create(ctx, domain.CategoryFoodDiary, "child-1", domain.FoodDiaryEntry{
			Date:      day.AddDate(0, 0, i),
			Foods:     []domain.FoodItem{{Name: "maziwa"}},
			Reactions: []string{"rash"},
			Severity:  domain.ReactionModerate,
		})
		require.NoError(t, err)
	}
	analysis, err := gen.AnalyzeAllergies(ctx, "child-1", domain.Window{})
	require.NoError(t, err)
	_, rec, err := gen.PlanElimination(ctx, "child-1", analysis, true)
	require.NoError(t, err)
	require.NotNil(t, rec)

	info, err := arc.SavePlan(ctx, *rec)
	require.NoError(t, err)
	assert.Equal(t, PlanKey("child-1", rec.ID), info.Key)

	loaded, err := arc.LoadPlan(ctx, info.Key)
	require.NoError(t, err)
	plan, ok := loaded.Payload.(domain.EliminationPlan)
	require.True(t, ok)
	require.Len(t, plan.Items, 1)
	assert.Equal(t, "maziwa", plan.Items[0].Food)

	rep, err := gen.Generate(ctx, "child-1", nil, nil)
	require.NoError(t, err)
	_, err = arc.SaveReport(ctx, rep)
	require.NoError(t, err)

	plans, err := arc.List(ctx, KindPlan, "child-1")
	require.NoError(t, err)
	assert.Len(t, plans, 1)
	reports, err := arc.List(ctx, KindReport, "")
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	none, err := arc.List(ctx, KindPlan, "child-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSavePlanRejectsOtherCategories(t *testing.T) {
	_, _, arc := newFixture(t)
	_, err := arc.SavePlan(context.Background(), domain.Record{ID: "x", Category: domain.CategoryTherapy})
	var vErr domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestKeysAreSanitised(t *testing.T) {
	assert.Equal(t, "plans/a_b/_.json", PlanKey("a/b", ""))
	assert.Equal(t, "reports/__/20250601T120000Z.json", ReportKey(" ../ ", now))
}

func TestURLUnsupportedOnMemory(t *testing.T) {
	_, _, arc := newFixture(t)
	_, err := arc.URL(context.Background(), "reports/x.json", time.Minute)
	require.ErrorIs(t, err, blob.ErrUnsupported)
}
