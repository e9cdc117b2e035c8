package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/auth"
	"github.com/Dominus-Gray/polaris-analytics/internal/domain"
	"github.com/Dominus-Gray/polaris-analytics/internal/dto"
	"github.com/Dominus-Gray/polaris-analytics/internal/observability"
	"github.com/Dominus-Gray/polaris-analytics/internal/service"
)

// Handler wires the analytics read API and the ingestion endpoint.
type Handler struct {
	analytics *service.AnalyticsService
	ingest    *service.IngestService
	router    *gin.Engine
	log       *zap.Logger
}

// New creates the HTTP handler and registers all routes.
func New(analytics *service.AnalyticsService, ingest *service.IngestService, obs *observability.Metrics, log *zap.Logger) *Handler {
	h := &Handler{
		analytics: analytics,
		ingest:    ingest,
		router:    gin.Default(),
		log:       log,
	}

	h.router.Use(metricsMiddleware(obs))
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)

	authed := h.router.Group("/", identityMiddleware())
	authed.POST("/events", h.ingestEvent)
	authed.GET("/analytics/clients/:client_id/daily", h.clientDaily)
	authed.GET("/analytics/clients/:client_id/summary", h.clientSummary)
	authed.GET("/analytics/cohorts/:cohort_tag/daily", h.cohortDaily)
	authed.GET("/analytics/cohorts/:cohort_tag/summary", h.cohortSummary)
}

// healthCheck handles health check requests
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ingestEvent handles POST /events
// @Summary Ingest a domain event
// @Description Construct a typed event and dispatch it through the outbox
// @Tags events
// @Accept json
// @Produce json
// @Param event body dto.IngestEventRequest true "Event data"
// @Success 202 {object} dto.IngestEventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /events [post]
func (h *Handler) ingestEvent(c *gin.Context) {
	var req dto.IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.ingest.Ingest(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// clientDaily handles GET /analytics/clients/:client_id/daily
// @Summary Client daily metric series
// @Tags analytics
// @Produce json
// @Param client_id path string true "Client id"
// @Param from_date query string true "Range start (YYYY-MM-DD)"
// @Param to_date query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} dto.ClientDailyResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /analytics/clients/{client_id}/daily [get]
func (h *Handler) clientDaily(c *gin.Context) {
	var req dto.DailyRangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.analytics.ClientDailySeries(c.Request.Context(), principalFrom(c), c.Param("client_id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// clientSummary handles GET /analytics/clients/:client_id/summary
// @Summary Client latest metrics summary
// @Tags analytics
// @Produce json
// @Param client_id path string true "Client id"
// @Success 200 {object} dto.ClientSummaryResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /analytics/clients/{client_id}/summary [get]
func (h *Handler) clientSummary(c *gin.Context) {
	resp, err := h.analytics.ClientSummary(c.Request.Context(), principalFrom(c), c.Param("client_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// cohortDaily handles GET /analytics/cohorts/:cohort_tag/daily
// @Summary Cohort daily metric series
// @Tags analytics
// @Produce json
// @Param cohort_tag path string true "Cohort tag"
// @Param from_date query string true "Range start (YYYY-MM-DD)"
// @Param to_date query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} dto.CohortDailyResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /analytics/cohorts/{cohort_tag}/daily [get]
func (h *Handler) cohortDaily(c *gin.Context) {
	var req dto.DailyRangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.analytics.CohortDailySeries(c.Request.Context(), principalFrom(c), c.Param("cohort_tag"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// cohortSummary handles GET /analytics/cohorts/:cohort_tag/summary
// @Summary Cohort latest metrics summary
// @Tags analytics
// @Produce json
// @Param cohort_tag path string true "Cohort tag"
// @Success 200 {object} dto.CohortSummaryResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /analytics/cohorts/{cohort_tag}/summary [get]
func (h *Handler) cohortSummary(c *gin.Context) {
	resp, err := h.analytics.CohortSummary(c.Request.Context(), principalFrom(c), c.Param("cohort_tag"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// respondError maps the error taxonomy onto HTTP statuses. Anything
// unclassified surfaces as a generic server error.
func (h *Handler) respondError(c *gin.Context, err error) {
	var validationErr *service.ValidationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: validationErr.Message,
		})
	case errors.Is(err, auth.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   "permission_denied",
			Message: "you do not have access to this resource",
		})
	case errors.Is(err, domain.ErrClientNotFound), errors.Is(err, domain.ErrCohortNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	default:
		h.log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: "internal server error",
		})
	}
}
