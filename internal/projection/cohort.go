package projection

import (
	"sort"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
)

// AggregateCohortDay derives one cohort row from the member rows of a single
// date: counters are summed, and the risk score is averaged only over members
// with a non-null value. The result's score is nil when no member reports one.
func AggregateCohortDay(cohortTag, date string, rows []domain.ClientDailyMetrics) domain.CohortDailyMetrics {
	out := domain.CohortDailyMetrics{
		CohortTag:   cohortTag,
		Date:        date,
		ClientCount: len(rows),
	}

	var (
		scoreSum   float64
		scoreCount int
	)

	for _, row := range rows {
		out.TasksCompleted += row.TasksCompleted
		out.TasksActive += row.TasksActive
		out.TasksBlocked += row.TasksBlocked
		out.AlertsOpen += row.AlertsOpen
		out.ActionPlanVersionsActivated += row.ActionPlanVersionsActivated

		if row.RiskScoreAvg != nil {
			scoreSum += *row.RiskScoreAvg
			scoreCount++
		}
	}

	if scoreCount > 0 {
		avg := scoreSum / float64(scoreCount)
		out.RiskScoreAvg = &avg
	}

	return out
}

// AggregateCohortSeries groups member rows by date and aggregates each day,
// returning the series ordered by date ascending. Days where no member has a
// row are omitted.
func AggregateCohortSeries(cohortTag string, memberRows []domain.ClientDailyMetrics) []domain.CohortDailyMetrics {
	byDate := make(map[string][]domain.ClientDailyMetrics)
	for _, row := range memberRows {
		byDate[row.Date] = append(byDate[row.Date], row)
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	series := make([]domain.CohortDailyMetrics, 0, len(dates))
	for _, date := range dates {
		series = append(series, AggregateCohortDay(cohortTag, date, byDate[date]))
	}

	return series
}
