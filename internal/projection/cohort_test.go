package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func TestAggregateCohortDay_SumsCountersAndAveragesScores(t *testing.T) {
	rows := []domain.ClientDailyMetrics{
		{ClientID: "client-a", Date: "2026-03-14", TasksCompleted: 2, TasksActive: 1, AlertsOpen: 1, RiskScoreAvg: floatPtr(4.0)},
		{ClientID: "client-b", Date: "2026-03-14", TasksCompleted: 1, TasksBlocked: 1, RiskScoreAvg: floatPtr(8.0)},
		{ClientID: "client-c", Date: "2026-03-14", ActionPlanVersionsActivated: 1},
	}

	out := AggregateCohortDay("high-risk", "2026-03-14", rows)

	assert.Equal(t, "high-risk", out.CohortTag)
	assert.Equal(t, "2026-03-14", out.Date)
	assert.Equal(t, 3, out.ClientCount)
	assert.Equal(t, int64(3), out.TasksCompleted)
	assert.Equal(t, int64(1), out.TasksActive)
	assert.Equal(t, int64(1), out.TasksBlocked)
	assert.Equal(t, int64(1), out.AlertsOpen)
	assert.Equal(t, int64(1), out.ActionPlanVersionsActivated)

	// client-c has no score and is excluded from the average.
	assert.NotNil(t, out.RiskScoreAvg)
	assert.Equal(t, 6.0, *out.RiskScoreAvg)
}

func TestAggregateCohortDay_NoScoresYieldsNilAverage(t *testing.T) {
	rows := []domain.ClientDailyMetrics{
		{ClientID: "client-a", Date: "2026-03-14", TasksCompleted: 1},
		{ClientID: "client-b", Date: "2026-03-14", AlertsOpen: 2},
	}

	out := AggregateCohortDay("high-risk", "2026-03-14", rows)

	assert.Nil(t, out.RiskScoreAvg)
	assert.Equal(t, int64(2), out.AlertsOpen)
}

func TestAggregateCohortDay_EmptyRows(t *testing.T) {
	out := AggregateCohortDay("high-risk", "2026-03-14", nil)

	assert.Equal(t, 0, out.ClientCount)
	assert.Nil(t, out.RiskScoreAvg)
	assert.Equal(t, int64(0), out.TasksCompleted)
}

func TestAggregateCohortSeries_GroupsByDateAscending(t *testing.T) {
	rows := []domain.ClientDailyMetrics{
		{ClientID: "client-a", Date: "2026-03-15", AlertsOpen: 1},
		{ClientID: "client-b", Date: "2026-03-14", AlertsOpen: 2},
		{ClientID: "client-a", Date: "2026-03-14", AlertsOpen: 3},
	}

	series := AggregateCohortSeries("high-risk", rows)

	assert.Len(t, series, 2)
	assert.Equal(t, "2026-03-14", series[0].Date)
	assert.Equal(t, int64(5), series[0].AlertsOpen)
	assert.Equal(t, 2, series[0].ClientCount)
	assert.Equal(t, "2026-03-15", series[1].Date)
	assert.Equal(t, int64(1), series[1].AlertsOpen)
	assert.Equal(t, 1, series[1].ClientCount)
}

func TestAggregateCohortSeries_Empty(t *testing.T) {
	assert.Empty(t, AggregateCohortSeries("high-risk", nil))
}
