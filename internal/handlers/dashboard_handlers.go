package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"crash-dashboard/internal/export"
	"crash-dashboard/internal/models"
	"crash-dashboard/internal/render"
	"crash-dashboard/internal/services"
	"crash-dashboard/pkg/logging"
	"crash-dashboard/pkg/metrics"
)

const maxPageLimit = 500

// HealthFunc reports the health of an optional backing store.
type HealthFunc func(ctx context.Context) error

// DashboardHandler serves the dashboard page, its JSON API and chart images
type DashboardHandler struct {
	dashboard *services.DashboardService
	health    HealthFunc
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler. health may be nil.
func NewDashboardHandler(
	dashboard *services.DashboardService,
	health HealthFunc,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		health:    health,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Columns    []string    `json:"columns,omitempty"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// RegisterRoutes registers all dashboard routes. The fixed chart routes go
// before /charts/{id}.svg so they are matched first.
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Index).Methods("GET")
	router.HandleFunc("/api/dashboard", h.GetDashboard).Methods("GET")
	router.HandleFunc("/api/table", h.GetTable).Methods("GET")
	router.HandleFunc("/api/charts/time", h.GetTimeChart).Methods("GET")
	router.HandleFunc("/api/charts/damage", h.GetDamageChart).Methods("GET")
	router.HandleFunc("/api/export.xlsx", h.ExportWorkbook).Methods("GET")
	router.HandleFunc("/charts/time.svg", h.TimeChartSVG).Methods("GET")
	router.HandleFunc("/charts/damage.svg", h.DamageChartSVG).Methods("GET")
	router.HandleFunc("/charts/{id}.svg", h.ChartSVG).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
}

// Index handles GET /
func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, h.dashboard.Page()); err != nil {
		h.logger.Error(r.Context(), "[API_INDEX_ERROR] Failed to render page", logging.Fields{}, err)
		h.sendError(w, r, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, h.dashboard.Page(), http.StatusOK)
}

// GetTable handles GET /api/table
func (h *DashboardHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := h.dashboard.Page().PageSize

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxPageLimit {
		limit = l
	}

	rows, total := h.dashboard.PreviewPage(page, limit)
	h.sendJSON(w, PaginatedResponse{
		Data:       rows,
		Columns:    h.dashboard.Page().Preview.Table.Columns,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// GetTimeChart handles GET /api/charts/time?unit=
func (h *DashboardHandler) GetTimeChart(w http.ResponseWriter, r *http.Request) {
	chart, err := h.timeChart(r)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendJSON(w, chart, http.StatusOK)
}

// TimeChartSVG handles GET /charts/time.svg?unit=
func (h *DashboardHandler) TimeChartSVG(w http.ResponseWriter, r *http.Request) {
	chart, err := h.timeChart(r)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSVG(w, r, chart)
}

// GetDamageChart handles GET /api/charts/damage?type=
func (h *DashboardHandler) GetDamageChart(w http.ResponseWriter, r *http.Request) {
	chart, err := h.damageChart(r)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendJSON(w, chart, http.StatusOK)
}

// DamageChartSVG handles GET /charts/damage.svg?type=
func (h *DashboardHandler) DamageChartSVG(w http.ResponseWriter, r *http.Request) {
	chart, err := h.damageChart(r)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSVG(w, r, chart)
}

// ChartSVG handles GET /charts/{id}.svg for the static page charts
func (h *DashboardHandler) ChartSVG(w http.ResponseWriter, r *http.Request) {
	chart, err := h.dashboard.Chart(mux.Vars(r)["id"])
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSVG(w, r, chart)
}

// ExportWorkbook handles GET /api/export.xlsx
func (h *DashboardHandler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, h.dashboard.Snapshot()); err != nil {
		h.logger.Error(r.Context(), "[API_EXPORT_ERROR] Failed to build workbook", logging.Fields{}, err)
		h.metrics.RecordAPIError("export_error", r.URL.Path)
		h.sendError(w, r, "failed to build workbook", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="crash-dashboard.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := h.dashboard.Page()

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"source":    page.Source,
		"rows":      page.Rows,
	}
	code := http.StatusOK
	if h.health != nil {
		if err := h.health(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Backing store unhealthy", logging.Fields{"error": err.Error()})
			status["status"] = "degraded"
			status["error"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

func (h *DashboardHandler) timeChart(r *http.Request) (render.Chart, error) {
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		unit = h.dashboard.Controller().DefaultTimeUnit()
	}
	return h.dashboard.Controller().OnTimeUnitSelected(r.Context(), unit)
}

func (h *DashboardHandler) damageChart(r *http.Request) (render.Chart, error) {
	crashType, ok := r.URL.Query()["type"]
	if !ok || len(crashType) == 0 {
		return h.dashboard.Controller().OnCollisionTypeSelected(r.Context(), h.dashboard.Controller().DefaultCollisionType())
	}
	return h.dashboard.Controller().OnCollisionTypeSelected(r.Context(), crashType[0])
}

// sendSVG renders into a buffer first so a drawing failure still gets a
// JSON error instead of a truncated image.
func (h *DashboardHandler) sendSVG(w http.ResponseWriter, r *http.Request, chart render.Chart) {
	timer := h.metrics.NewTimer(h.metrics.RenderDuration.WithLabelValues(string(chart.Kind)))
	var buf bytes.Buffer
	err := render.SVG(&buf, chart)
	timer.ObserveDuration()
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var invalid *models.InvalidColumnError
	var unknown *models.UnknownCategoryError
	var missing *models.MissingCategoryError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &unknown):
		return http.StatusNotFound
	case errors.As(err, &missing), errors.Is(err, render.ErrNotDrawable), errors.Is(err, render.ErrEmptyChart):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *DashboardHandler) sendDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"path": r.URL.Path,
		}, err)
		h.metrics.RecordAPIError("internal_error", r.URL.Path)
		h.sendError(w, r, "internal error", code)
		return
	}
	h.metrics.RecordAPIError("client_error", r.URL.Path)
	h.sendError(w, r, err.Error(), code)
}

// sendJSON sends a JSON response
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}
	h.sendJSON(w, response, statusCode)
}
