package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func monthlyEvents(n int, last time.Time) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = last.AddDate(0, -i, 0)
	}
	return out
}

func TestCumulativeRiskLevels(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, RiskLow, CumulativeRisk(monthlyEvents(15, now), now, 0).Level)
	assert.Equal(t, RiskModerate, CumulativeRisk(monthlyEvents(16, now), now, 0).Level)
	high := CumulativeRisk(monthlyEvents(21, now), now, 0)
	assert.Equal(t, RiskHigh, high.Level)
	assert.True(t, high.HasRisk)
	assert.Equal(t, DefaultRiskYears, high.YearsBack)
}

func TestCumulativeRiskWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	events := []time.Time{
		now.AddDate(-5, 0, 0),
		now.AddDate(-5, 0, -1),
		now.AddDate(-1, 0, 0),
	}
	assert.Equal(t, 2, CumulativeRisk(events, now, 5).Count)
	assert.Equal(t, 1, CumulativeRisk(events, now, 2).Count)
}
