package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/reconcile"
	"github.com/quillforge/quillforge-api/internal/repository"
)

// MonitoringHandler handles monitoring rollup endpoints.
type MonitoringHandler struct {
	repos *repository.Repositories
}

// NewMonitoringHandler creates a new monitoring handler.
func NewMonitoringHandler(repos *repository.Repositories) *MonitoringHandler {
	return &MonitoringHandler{repos: repos}
}

// GetStatsOutput represents the per-user monitoring rows.
type GetStatsOutput struct {
	Body struct {
		Projects []*models.MonitoringProjectStats `json:"projects"`
	}
}

// GetStats returns the caller's monitoring rollup rows.
func (h *MonitoringHandler) GetStats(ctx context.Context, input *struct{}) (*GetStatsOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	rows, err := h.repos.Monitoring.GetByUserID(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get monitoring stats")
	}

	out := &GetStatsOutput{}
	out.Body.Projects = rows
	if out.Body.Projects == nil {
		out.Body.Projects = []*models.MonitoringProjectStats{}
	}
	return out, nil
}

// RefreshMonitoringHandler is the scheduler-facing endpoint that rebuilds
// the monitoring table. It is a raw HTTP handler: external cron tooling
// expects exact response bodies, including HTTP 200 on a bad key.
type RefreshMonitoringHandler struct {
	cronAPIKey string
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

// NewRefreshMonitoringHandler creates a new refresh handler.
func NewRefreshMonitoringHandler(cronAPIKey string, reconciler *reconcile.Reconciler, logger *slog.Logger) *RefreshMonitoringHandler {
	return &RefreshMonitoringHandler{
		cronAPIKey: cronAPIKey,
		reconciler: reconciler,
		logger:     logger,
	}
}

type refreshResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	*reconcile.Summary
}

// ServeHTTP runs one reconciliation pass. This call is long-running: it
// scans the content store and fetches search metrics per project.
func (h *RefreshMonitoringHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("api-key") != h.cronAPIKey {
		// Legacy cron contract: invalid keys get a 200 error body.
		writeJSON(w, http.StatusOK, refreshResponse{
			Status:  "error",
			Message: "Invalid API key",
		})
		return
	}

	summary, err := h.reconciler.Run(r.Context())
	if err != nil {
		if errors.Is(err, reconcile.ErrRunInProgress) {
			writeJSON(w, http.StatusConflict, refreshResponse{
				Status:  "error",
				Message: "Refresh already in progress",
			})
			return
		}
		h.logger.Error("monitoring refresh failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, refreshResponse{
			Status:  "error",
			Message: fmt.Sprintf("Refresh failed: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Status:  "success",
		Message: "Monitoring table refreshed",
		Summary: summary,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
