package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/dto"
	"github.com/Dominus-Gray/polaris-analytics/internal/outbox"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository/memory"
	"github.com/Dominus-Gray/polaris-analytics/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	metrics := memory.NewMetricsStore()
	directory := memory.NewDirectory()
	outboxStore := memory.NewOutboxStore()

	directory.Put(domain.ClientProfile{
		ClientID:        "client-1",
		OrganizationKey: "org-a",
		CohortTags:      []string{"high-risk"},
	})

	err := metrics.ApplyDelta(context.Background(), domain.MetricsDelta{
		ClientID:   "client-1",
		Date:       "2026-03-14",
		AlertsOpen: 2,
	})
	assert.NoError(t, err)

	analytics := service.NewAnalyticsService(metrics, directory, outboxStore, nil, zap.NewNop(), "test")
	dispatcher := outbox.NewDispatcher(outboxStore, outbox.NewRegistry(), nil, zap.NewNop())
	ingest := service.NewIngestService(dispatcher, zap.NewNop())

	return New(analytics, ingest, nil, zap.NewNop())
}

func asSuperAdmin(req *http.Request) {
	req.Header.Set("X-User-Id", "admin-1")
	req.Header.Set("X-User-Role", "SuperAdmin")
}

func TestHealthCheck_NoIdentityRequired(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientDaily_MissingIdentity(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/analytics/clients/client-1/daily?from_date=2026-03-14&to_date=2026-03-15", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp dto.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unauthorized", resp.Error)
}

func TestClientDaily_UnknownRole(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/analytics/clients/client-1/daily?from_date=2026-03-14&to_date=2026-03-15", nil)
	req.Header.Set("X-User-Id", "someone")
	req.Header.Set("X-User-Role", "Wizard")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClientDaily_InvalidRange(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/analytics/clients/client-1/daily?from_date=bogus&to_date=2026-03-15", nil)
	asSuperAdmin(req)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
	assert.Equal(t, "invalid from_date: expected YYYY-MM-DD", resp.Message)
}

func TestClientDaily_Success(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/analytics/clients/client-1/daily?from_date=2026-03-14&to_date=2026-03-15", nil)
	asSuperAdmin(req)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.ClientDailyResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "client-1", resp.ClientID)
	assert.Len(t, resp.Metrics, 1)
	assert.Equal(t, int64(2), resp.Metrics[0].AlertsOpen)
	assert.Equal(t, "test", resp.Metadata.SourceVersion)
}

func TestClientDaily_CrossClientForbidden(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/analytics/clients/client-1/daily?from_date=2026-03-14&to_date=2026-03-15", nil)
	req.Header.Set("X-User-Id", "client-2")
	req.Header.Set("X-User-Role", "client")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp dto.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "permission_denied", resp.Error)
}

func TestClientSummary_UnknownClient(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/analytics/clients/client-missing/summary", nil)
	asSuperAdmin(req)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCohortSummary_Success(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/analytics/cohorts/high-risk/summary", nil)
	asSuperAdmin(req)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.CohortSummaryResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "high-risk", resp.CohortTag)
	assert.NotNil(t, resp.LatestMetrics)
	assert.Equal(t, int64(2), resp.LatestMetrics.AlertsOpen)
}

func TestCohortDaily_CaseManagerForbidden(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/analytics/cohorts/high-risk/daily?from_date=2026-03-14&to_date=2026-03-15", nil)
	req.Header.Set("X-User-Id", "cm-1")
	req.Header.Set("X-User-Role", "CaseManager")
	req.Header.Set("X-Organization-Key", "org-a")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIngestEvent_Accepted(t *testing.T) {
	h := newTestHandler(t)

	body := `{"event_type":"ALERT_CREATED","payload":{"alert_id":"alert-1","client_id":"client-1","severity":"high"}}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	asSuperAdmin(req)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.IngestEventResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.NotEmpty(t, resp.EventID)
}

func TestIngestEvent_MissingEventType(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"payload":{}}`))
	req.Header.Set("Content-Type", "application/json")
	asSuperAdmin(req)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestEvent_UnknownType(t *testing.T) {
	h := newTestHandler(t)

	body := `{"event_type":"SOMETHING_ELSE","payload":{}}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	asSuperAdmin(req)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
}
