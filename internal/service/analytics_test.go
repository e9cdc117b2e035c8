package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/auth"
	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/dto"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository/memory"
)

var (
	superAdmin = auth.Principal{UserID: "admin-1", Role: auth.RoleSuperAdmin}
	queryNow   = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
)

type analyticsFixture struct {
	service   *AnalyticsService
	metrics   *memory.MetricsStore
	directory *memory.Directory
	outbox    *memory.OutboxStore
}

func newAnalyticsFixture(t *testing.T) *analyticsFixture {
	t.Helper()

	f := &analyticsFixture{
		metrics:   memory.NewMetricsStore(),
		directory: memory.NewDirectory(),
		outbox:    memory.NewOutboxStore(),
	}
	f.service = NewAnalyticsService(f.metrics, f.directory, f.outbox, nil, zap.NewNop(), "test")
	f.service.now = func() time.Time { return queryNow }

	f.directory.Put(domain.ClientProfile{
		ClientID:        "client-1",
		OrganizationKey: "org-a",
		CohortTags:      []string{"high-risk"},
	})
	f.directory.Put(domain.ClientProfile{
		ClientID:        "client-2",
		OrganizationKey: "org-b",
		CohortTags:      []string{"high-risk"},
	})

	return f
}

func (f *analyticsFixture) seedDelta(t *testing.T, clientID, date string, alerts int64) {
	t.Helper()
	err := f.metrics.ApplyDelta(context.Background(), domain.MetricsDelta{
		ClientID:   clientID,
		Date:       date,
		AlertsOpen: alerts,
	})
	assert.NoError(t, err)
}

func (f *analyticsFixture) seedOutbox(t *testing.T, occurredAt time.Time) {
	t.Helper()
	err := f.outbox.Insert(context.Background(), &domain.OutboxRecord{
		ID:         uuid.New(),
		EventType:  domain.EventTypeAlertCreated,
		Payload:    []byte(`{}`),
		OccurredAt: occurredAt,
	})
	assert.NoError(t, err)
}

func rangeRequest(from, to string) dto.DailyRangeRequest {
	return dto.DailyRangeRequest{FromDate: from, ToDate: to}
}

func TestClientDailySeries_InvalidFromDate(t *testing.T) {
	f := newAnalyticsFixture(t)

	_, err := f.service.ClientDailySeries(context.Background(), superAdmin, "client-1",
		rangeRequest("14-03-2026", "2026-03-15"))

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "invalid from_date: expected YYYY-MM-DD", validationErr.Message)
}

func TestClientDailySeries_InvalidToDate(t *testing.T) {
	f := newAnalyticsFixture(t)

	_, err := f.service.ClientDailySeries(context.Background(), superAdmin, "client-1",
		rangeRequest("2026-03-14", "tomorrow"))

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "invalid to_date: expected YYYY-MM-DD", validationErr.Message)
}

func TestClientDailySeries_ReversedRange(t *testing.T) {
	f := newAnalyticsFixture(t)

	_, err := f.service.ClientDailySeries(context.Background(), superAdmin, "client-1",
		rangeRequest("2026-03-15", "2026-03-14"))

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "end_date must be after start_date", validationErr.Message)
}

func TestClientDailySeries_RangeTooLarge(t *testing.T) {
	f := newAnalyticsFixture(t)

	_, err := f.service.ClientDailySeries(context.Background(), superAdmin, "client-1",
		rangeRequest("2025-01-01", "2026-06-01"))

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Date range cannot exceed 365 days", validationErr.Message)
}

func TestClientDailySeries_SameDayRangeAllowed(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.seedDelta(t, "client-1", "2026-03-14", 2)

	resp, err := f.service.ClientDailySeries(context.Background(), superAdmin, "client-1",
		rangeRequest("2026-03-14", "2026-03-14"))

	assert.NoError(t, err)
	assert.Len(t, resp.Metrics, 1)
	assert.Equal(t, int64(2), resp.Metrics[0].AlertsOpen)
}

func TestClientDailySeries_UnknownClient(t *testing.T) {
	f := newAnalyticsFixture(t)

	_, err := f.service.ClientDailySeries(context.Background(), superAdmin, "client-missing",
		rangeRequest("2026-03-14", "2026-03-15"))

	assert.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestClientDailySeries_RBAC(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.seedDelta(t, "client-1", "2026-03-14", 1)

	tests := []struct {
		name      string
		principal auth.Principal
		wantErr   error
	}{
		{"super admin allowed", superAdmin, nil},
		{"analyst allowed", auth.Principal{UserID: "an-1", Role: auth.RoleAnalyst}, nil},
		{"org admin same org allowed", auth.Principal{UserID: "oa-1", Role: auth.RoleOrgAdmin, OrganizationKey: "org-a"}, nil},
		{"org admin other org denied", auth.Principal{UserID: "oa-2", Role: auth.RoleOrgAdmin, OrganizationKey: "org-b"}, auth.ErrPermissionDenied},
		{"case manager same org allowed", auth.Principal{UserID: "cm-1", Role: auth.RoleCaseManager, OrganizationKey: "org-a"}, nil},
		{"client self allowed", auth.Principal{UserID: "client-1", Role: auth.RoleClient}, nil},
		{"client cross denied", auth.Principal{UserID: "client-2", Role: auth.RoleClient}, auth.ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.ClientDailySeries(context.Background(), tt.principal, "client-1",
				rangeRequest("2026-03-14", "2026-03-15"))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientSummary_LatestRow(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.seedDelta(t, "client-1", "2026-03-14", 1)
	f.seedDelta(t, "client-1", "2026-03-16", 3)

	resp, err := f.service.ClientSummary(context.Background(), superAdmin, "client-1")

	assert.NoError(t, err)
	assert.NotNil(t, resp.LatestMetrics)
	assert.Equal(t, "2026-03-16", resp.LatestMetrics.Date)
	assert.Equal(t, int64(3), resp.LatestMetrics.AlertsOpen)
}

func TestClientSummary_NoRowsYet(t *testing.T) {
	f := newAnalyticsFixture(t)

	resp, err := f.service.ClientSummary(context.Background(), superAdmin, "client-1")

	assert.NoError(t, err)
	assert.Nil(t, resp.LatestMetrics)
}

func TestMetadata_DisclosesLag(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.seedOutbox(t, queryNow.Add(-90*time.Second))

	resp, err := f.service.ClientSummary(context.Background(), superAdmin, "client-1")

	assert.NoError(t, err)
	assert.Equal(t, queryNow, resp.Metadata.GeneratedAt)
	assert.Equal(t, "test", resp.Metadata.SourceVersion)
	assert.NotNil(t, resp.Metadata.DataLagSeconds)
	assert.Equal(t, 90.0, *resp.Metadata.DataLagSeconds)
}

func TestMetadata_NoEventsNoLag(t *testing.T) {
	f := newAnalyticsFixture(t)

	resp, err := f.service.ClientSummary(context.Background(), superAdmin, "client-1")

	assert.NoError(t, err)
	assert.Nil(t, resp.Metadata.DataLagSeconds)
}

// failingOutbox degrades the lag lookup without touching the rest of the
// outbox contract.
type failingOutbox struct {
	*memory.OutboxStore
}

func (f *failingOutbox) LatestOccurredAt(ctx context.Context) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("store unavailable")
}

func TestMetadata_DegradesOnOutboxError(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.service = NewAnalyticsService(f.metrics, f.directory, &failingOutbox{OutboxStore: f.outbox}, nil, zap.NewNop(), "test")
	f.service.now = func() time.Time { return queryNow }

	resp, err := f.service.ClientSummary(context.Background(), superAdmin, "client-1")

	assert.NoError(t, err, "a lag lookup failure must not fail the read")
	assert.Nil(t, resp.Metadata.DataLagSeconds)
	assert.Equal(t, queryNow, resp.Metadata.GeneratedAt)
}

func TestCohortDailySeries_AggregatesMembers(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.seedDelta(t, "client-1", "2026-03-14", 2)
	f.seedDelta(t, "client-2", "2026-03-14", 3)

	resp, err := f.service.CohortDailySeries(context.Background(), superAdmin, "high-risk",
		rangeRequest("2026-03-14", "2026-03-15"))

	assert.NoError(t, err)
	assert.Len(t, resp.Metrics, 1)
	assert.Equal(t, int64(5), resp.Metrics[0].AlertsOpen)
	assert.Equal(t, 2, resp.Metrics[0].ClientCount)
}

func TestCohortDailySeries_OrgAdminScopedToOwnMembers(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.seedDelta(t, "client-1", "2026-03-14", 2)
	f.seedDelta(t, "client-2", "2026-03-14", 3)

	orgAdmin := auth.Principal{UserID: "oa-1", Role: auth.RoleOrgAdmin, OrganizationKey: "org-a"}
	resp, err := f.service.CohortDailySeries(context.Background(), orgAdmin, "high-risk",
		rangeRequest("2026-03-14", "2026-03-15"))

	assert.NoError(t, err)
	assert.Len(t, resp.Metrics, 1)
	assert.Equal(t, int64(2), resp.Metrics[0].AlertsOpen, "only the org's own members count")
	assert.Equal(t, 1, resp.Metrics[0].ClientCount)
}

func TestCohortDailySeries_CaseManagerDenied(t *testing.T) {
	f := newAnalyticsFixture(t)

	caseManager := auth.Principal{UserID: "cm-1", Role: auth.RoleCaseManager, OrganizationKey: "org-a"}
	_, err := f.service.CohortDailySeries(context.Background(), caseManager, "high-risk",
		rangeRequest("2026-03-14", "2026-03-15"))

	assert.ErrorIs(t, err, auth.ErrPermissionDenied)
}

func TestCohortDailySeries_ClientDenied(t *testing.T) {
	f := newAnalyticsFixture(t)

	client := auth.Principal{UserID: "client-1", Role: auth.RoleClient}
	_, err := f.service.CohortDailySeries(context.Background(), client, "high-risk",
		rangeRequest("2026-03-14", "2026-03-15"))

	assert.ErrorIs(t, err, auth.ErrPermissionDenied)
}

func TestCohortDailySeries_UnknownCohort(t *testing.T) {
	f := newAnalyticsFixture(t)

	_, err := f.service.CohortDailySeries(context.Background(), superAdmin, "no-such-cohort",
		rangeRequest("2026-03-14", "2026-03-15"))

	assert.ErrorIs(t, err, domain.ErrCohortNotFound)
}

func TestCohortSummary_UsesMostRecentMemberDate(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.seedDelta(t, "client-1", "2026-03-14", 2)
	f.seedDelta(t, "client-2", "2026-03-16", 3)

	resp, err := f.service.CohortSummary(context.Background(), superAdmin, "high-risk")

	assert.NoError(t, err)
	assert.NotNil(t, resp.LatestMetrics)
	assert.Equal(t, "2026-03-16", resp.LatestMetrics.Date)
	assert.Equal(t, int64(3), resp.LatestMetrics.AlertsOpen)
	assert.Equal(t, 1, resp.LatestMetrics.ClientCount)
}

func TestCohortSummary_NoProjectedRows(t *testing.T) {
	f := newAnalyticsFixture(t)

	resp, err := f.service.CohortSummary(context.Background(), superAdmin, "high-risk")

	assert.NoError(t, err)
	assert.Nil(t, resp.LatestMetrics)
}
