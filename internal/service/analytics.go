package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/auth"
	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/dto"
	"github.com/Dominus-Gray/polaris-analytics/internal/observability"
	"github.com/Dominus-Gray/polaris-analytics/internal/projection"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository"
)

const (
	dateLayout   = "2006-01-02"
	maxRangeDays = 365
)

// AnalyticsService serves projected metrics behind the RBAC matrix, with
// freshness metadata on every response.
type AnalyticsService struct {
	metrics   repository.ClientMetricsRepository
	directory repository.ClientDirectory
	outbox    repository.OutboxRepository
	obs       *observability.Metrics
	log       *zap.Logger
	version   string
	now       func() time.Time
}

// NewAnalyticsService creates the read service. version identifies the
// deployed projection source in response metadata.
func NewAnalyticsService(
	metrics repository.ClientMetricsRepository,
	directory repository.ClientDirectory,
	outbox repository.OutboxRepository,
	obs *observability.Metrics,
	log *zap.Logger,
	version string,
) *AnalyticsService {
	return &AnalyticsService{
		metrics:   metrics,
		directory: directory,
		outbox:    outbox,
		obs:       obs,
		log:       log,
		version:   version,
		now:       time.Now,
	}
}

// validateRange parses and checks a daily range request.
func validateRange(fromDate, toDate string) (from, to time.Time, err error) {
	from, err = time.Parse(dateLayout, fromDate)
	if err != nil {
		return time.Time{}, time.Time{}, validationErrorf("invalid from_date: expected YYYY-MM-DD")
	}

	to, err = time.Parse(dateLayout, toDate)
	if err != nil {
		return time.Time{}, time.Time{}, validationErrorf("invalid to_date: expected YYYY-MM-DD")
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, validationErrorf("end_date must be after start_date")
	}

	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, validationErrorf("Date range cannot exceed 365 days")
	}

	return from, to, nil
}

// metadata builds the freshness disclosure. A store failure degrades the
// response by omitting the lag value instead of failing the call.
func (s *AnalyticsService) metadata(ctx context.Context) dto.Metadata {
	meta := dto.Metadata{
		GeneratedAt:   s.now().UTC(),
		SourceVersion: s.version,
	}

	latest, ok, err := s.outbox.LatestOccurredAt(ctx)
	if err != nil {
		s.log.Warn("Failed to resolve data lag, omitting from metadata", zap.Error(err))
		return meta
	}
	if !ok {
		return meta
	}

	lag := s.now().UTC().Sub(latest)
	if lag < 0 {
		lag = 0
	}

	s.obs.RecordLag(ctx, lag)

	seconds := lag.Seconds()
	meta.DataLagSeconds = &seconds

	return meta
}

func (s *AnalyticsService) authorizeClient(ctx context.Context, principal auth.Principal, clientID string) (*domain.ClientProfile, error) {
	profile, err := s.directory.Get(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve client %s: %w", clientID, err)
	}

	if !principal.CanViewClient(*profile) {
		s.log.Warn("Client metrics access denied",
			zap.String("user_id", principal.UserID),
			zap.String("role", string(principal.Role)),
			zap.String("client_id", clientID))
		return nil, auth.ErrPermissionDenied
	}

	return profile, nil
}

// ClientDailySeries returns a client's metric rows for a bounded date range.
func (s *AnalyticsService) ClientDailySeries(ctx context.Context, principal auth.Principal, clientID string, req dto.DailyRangeRequest) (*dto.ClientDailyResponse, error) {
	if _, _, err := validateRange(req.FromDate, req.ToDate); err != nil {
		return nil, err
	}

	if _, err := s.authorizeClient(ctx, principal, clientID); err != nil {
		return nil, err
	}

	rows, err := s.metrics.Range(ctx, clientID, req.FromDate, req.ToDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query client metrics: %w", err)
	}

	out := &dto.ClientDailyResponse{
		ClientID: clientID,
		Metrics:  make([]dto.ClientDailyMetrics, 0, len(rows)),
		Metadata: s.metadata(ctx),
	}
	for _, row := range rows {
		out.Metrics = append(out.Metrics, clientRowToDTO(row))
	}

	return out, nil
}

// ClientSummary returns a client's most recent projected row.
func (s *AnalyticsService) ClientSummary(ctx context.Context, principal auth.Principal, clientID string) (*dto.ClientSummaryResponse, error) {
	if _, err := s.authorizeClient(ctx, principal, clientID); err != nil {
		return nil, err
	}

	latest, err := s.metrics.Latest(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest client metrics: %w", err)
	}

	out := &dto.ClientSummaryResponse{
		ClientID: clientID,
		Metadata: s.metadata(ctx),
	}
	if latest != nil {
		row := clientRowToDTO(*latest)
		out.LatestMetrics = &row
	}

	return out, nil
}

// cohortMembers resolves and authorization-scopes the member set for a
// cohort query.
func (s *AnalyticsService) cohortMembers(ctx context.Context, principal auth.Principal, cohortTag string) ([]domain.ClientProfile, error) {
	if !principal.CanViewCohorts() {
		s.log.Warn("Cohort metrics access denied",
			zap.String("user_id", principal.UserID),
			zap.String("role", string(principal.Role)),
			zap.String("cohort_tag", cohortTag))
		return nil, auth.ErrPermissionDenied
	}

	members, err := s.directory.ListByCohort(ctx, cohortTag)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cohort %s: %w", cohortTag, err)
	}

	if principal.ScopesCohortToOrganization() {
		scoped := members[:0]
		for _, member := range members {
			if member.OrganizationKey == principal.OrganizationKey {
				scoped = append(scoped, member)
			}
		}
		members = scoped
	}

	return members, nil
}

// CohortDailySeries aggregates member rows per date over a bounded range.
func (s *AnalyticsService) CohortDailySeries(ctx context.Context, principal auth.Principal, cohortTag string, req dto.DailyRangeRequest) (*dto.CohortDailyResponse, error) {
	if _, _, err := validateRange(req.FromDate, req.ToDate); err != nil {
		return nil, err
	}

	members, err := s.cohortMembers(ctx, principal, cohortTag)
	if err != nil {
		return nil, err
	}

	var memberRows []domain.ClientDailyMetrics
	for _, member := range members {
		rows, err := s.metrics.Range(ctx, member.ClientID, req.FromDate, req.ToDate)
		if err != nil {
			return nil, fmt.Errorf("failed to query metrics for cohort member %s: %w", member.ClientID, err)
		}
		memberRows = append(memberRows, rows...)
	}

	series := projection.AggregateCohortSeries(cohortTag, memberRows)

	out := &dto.CohortDailyResponse{
		CohortTag: cohortTag,
		Metrics:   make([]dto.CohortDailyMetrics, 0, len(series)),
		Metadata:  s.metadata(ctx),
	}
	for _, row := range series {
		out.Metrics = append(out.Metrics, cohortRowToDTO(row))
	}

	return out, nil
}

// CohortSummary aggregates member rows for the most recent date on which any
// member has a projected row.
func (s *AnalyticsService) CohortSummary(ctx context.Context, principal auth.Principal, cohortTag string) (*dto.CohortSummaryResponse, error) {
	members, err := s.cohortMembers(ctx, principal, cohortTag)
	if err != nil {
		return nil, err
	}

	var (
		latestDate string
		latestRows []domain.ClientDailyMetrics
	)

	for _, member := range members {
		latest, err := s.metrics.Latest(ctx, member.ClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to query latest metrics for cohort member %s: %w", member.ClientID, err)
		}
		if latest == nil {
			continue
		}

		switch {
		case latest.Date > latestDate:
			latestDate = latest.Date
			latestRows = []domain.ClientDailyMetrics{*latest}
		case latest.Date == latestDate:
			latestRows = append(latestRows, *latest)
		}
	}

	out := &dto.CohortSummaryResponse{
		CohortTag: cohortTag,
		Metadata:  s.metadata(ctx),
	}
	if latestDate != "" {
		row := cohortRowToDTO(projection.AggregateCohortDay(cohortTag, latestDate, latestRows))
		out.LatestMetrics = &row
	}

	return out, nil
}

func clientRowToDTO(row domain.ClientDailyMetrics) dto.ClientDailyMetrics {
	return dto.ClientDailyMetrics{
		Date:                        row.Date,
		RiskScoreAvg:                row.RiskScoreAvg,
		TasksCompleted:              row.TasksCompleted,
		TasksActive:                 row.TasksActive,
		TasksBlocked:                row.TasksBlocked,
		AlertsOpen:                  row.AlertsOpen,
		ActionPlanVersionsActivated: row.ActionPlanVersionsActivated,
	}
}

func cohortRowToDTO(row domain.CohortDailyMetrics) dto.CohortDailyMetrics {
	return dto.CohortDailyMetrics{
		Date:                        row.Date,
		RiskScoreAvg:                row.RiskScoreAvg,
		TasksCompleted:              row.TasksCompleted,
		TasksActive:                 row.TasksActive,
		TasksBlocked:                row.TasksBlocked,
		AlertsOpen:                  row.AlertsOpen,
		ActionPlanVersionsActivated: row.ActionPlanVersionsActivated,
		ClientCount:                 row.ClientCount,
	}
}
