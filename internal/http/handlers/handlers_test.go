package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quillforge/quillforge-api/internal/config"
	"github.com/quillforge/quillforge-api/internal/http/mw"
	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/reconcile"
	"github.com/quillforge/quillforge-api/internal/repository"
	"github.com/quillforge/quillforge-api/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ========================================
// Health and probes
// ========================================

func TestHealthCheck(t *testing.T) {
	output, err := HealthCheck(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "healthy" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "healthy")
	}
	if output.Body.Version == "" {
		t.Error("expected a version string")
	}
}

func TestLivez(t *testing.T) {
	output, err := Livez(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "ok" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "ok")
	}
}

func TestReadyz(t *testing.T) {
	ok := PingerFunc(func() error { return nil })
	failing := PingerFunc(func() error { return errors.New("down") })

	tests := []struct {
		name    string
		db      Pinger
		mongo   Pinger
		wantErr bool
	}{
		{"both healthy", ok, ok, false},
		{"nil pingers skipped", nil, nil, false},
		{"db down", failing, ok, true},
		{"mongo down", ok, failing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewReadyzHandler(tt.db, tt.mongo)
			output, err := handler.Readyz(context.Background(), nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output.Body.Status != "ok" {
				t.Errorf("Status = %q, want %q", output.Body.Status, "ok")
			}
		})
	}
}

func TestGetUserID(t *testing.T) {
	ctx := mw.WithUserClaims(context.Background(), &mw.UserClaims{UserID: "user-1"})
	if got := getUserID(ctx); got != "user-1" {
		t.Errorf("expected user-1, got %q", got)
	}
	if got := getUserID(context.Background()); got != "" {
		t.Errorf("expected empty id without claims, got %q", got)
	}
}

// ========================================
// Usage recording
// ========================================

type stubUsageRepo struct {
	charges   []repository.ChargeParams
	chargeErr error
}

func (s *stubUsageRepo) ChargeAndRecord(ctx context.Context, params repository.ChargeParams) (*models.UsageReceipt, error) {
	if s.chargeErr != nil {
		return nil, s.chargeErr
	}
	s.charges = append(s.charges, params)
	return &models.UsageReceipt{
		UsageID:       "usage-1",
		TransactionID: "tx-1",
		ServiceName:   params.ServiceName,
		BaseCost:      params.BaseCost,
		Multiplier:    params.Multiplier,
		ActualCharge:  params.ActualCharge,
	}, nil
}

func (s *stubUsageRepo) GetHistory(ctx context.Context, userID string, filter repository.UsageHistoryFilter) ([]*models.UsageRecordWithProject, int, error) {
	return nil, 0, nil
}

func (s *stubUsageRepo) GetSummary(ctx context.Context, userID string, since time.Time) ([]*models.UsageSummary, error) {
	return nil, nil
}

func newTestUsageHandler(repo *stubUsageRepo) *UsageHandler {
	pricing := service.NewPricingService(config.DefaultPricingTable(), testLogger())
	svc := service.NewUsageService(&repository.Repositories{Usage: repo}, pricing, testLogger())
	return NewUsageHandler(svc)
}

func TestRecordUsage(t *testing.T) {
	repo := &stubUsageRepo{}
	handler := newTestUsageHandler(repo)

	ctx := mw.WithUserClaims(context.Background(), &mw.UserClaims{UserID: "user-1"})
	input := &RecordUsageInput{}
	input.Body.ServiceName = "blog_generation"
	input.Body.ModelName = "gpt-4o"
	input.Body.InputTokens = 1000
	input.Body.OutputTokens = 500

	out, err := handler.RecordUsage(ctx, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Body.Recorded {
		t.Fatal("expected the usage to be recorded")
	}
	if out.Body.Receipt == nil || out.Body.Receipt.ServiceName != "blog_generation" {
		t.Errorf("unexpected receipt: %+v", out.Body.Receipt)
	}
	if len(repo.charges) != 1 {
		t.Fatalf("expected 1 charge, got %d", len(repo.charges))
	}
	if repo.charges[0].UserID != "user-1" {
		t.Errorf("charge billed to %q, want user-1", repo.charges[0].UserID)
	}
	if repo.charges[0].ActualCharge <= 0 {
		t.Errorf("expected a positive charge, got %v", repo.charges[0].ActualCharge)
	}
}

func TestRecordUsage_BillingFailureIsAbsorbed(t *testing.T) {
	// The provider call already completed upstream; a failed charge must
	// not turn the report into an error.
	repo := &stubUsageRepo{chargeErr: repository.ErrInsufficientBalance}
	handler := newTestUsageHandler(repo)

	ctx := mw.WithUserClaims(context.Background(), &mw.UserClaims{UserID: "user-2"})
	input := &RecordUsageInput{}
	input.Body.ServiceName = "meta_description"
	input.Body.OutputTokens = 100

	out, err := handler.RecordUsage(ctx, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Body.Recorded {
		t.Error("expected recorded=false when the charge fails")
	}
	if out.Body.Receipt != nil {
		t.Errorf("expected no receipt, got %+v", out.Body.Receipt)
	}
}

func TestRecordUsage_RequiresAuth(t *testing.T) {
	handler := newTestUsageHandler(&stubUsageRepo{})
	input := &RecordUsageInput{}
	input.Body.ServiceName = "blog_generation"

	if _, err := handler.RecordUsage(context.Background(), input); err == nil {
		t.Fatal("expected an error without user claims")
	}
}

// ========================================
// Monitoring refresh
// ========================================

type stubContentRepo struct{ docs []models.ContentDoc }

func (s *stubContentRepo) FindActiveContent(ctx context.Context) ([]models.ContentDoc, error) {
	return s.docs, nil
}

type stubProjectRepo struct{ projects []*models.Project }

func (s *stubProjectRepo) ListProjects(ctx context.Context) ([]*models.Project, error) {
	return s.projects, nil
}

func (s *stubProjectRepo) CountGSCAccountsByProject(ctx context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

func (s *stubProjectRepo) GetGSCAccount(ctx context.Context, projectID string) (*models.GSCAccount, error) {
	return nil, nil
}

type stubMonitoringRepo struct{ rows []*models.MonitoringProjectStats }

func (s *stubMonitoringRepo) GetAll(ctx context.Context) ([]*models.MonitoringProjectStats, error) {
	return nil, nil
}

func (s *stubMonitoringRepo) GetByUserID(ctx context.Context, userID string) ([]*models.MonitoringProjectStats, error) {
	return nil, nil
}

func (s *stubMonitoringRepo) UpsertBatch(ctx context.Context, rows []*models.MonitoringProjectStats) error {
	s.rows = rows
	return nil
}

func (s *stubMonitoringRepo) Count(ctx context.Context) (int, error) {
	return len(s.rows), nil
}

type stubPerformance struct{}

func (stubPerformance) ProjectMetrics(ctx context.Context, projectID string) models.GSCPerformance {
	return models.GSCPerformance{}
}

func newTestRefreshHandler(key string) *RefreshMonitoringHandler {
	repos := &repository.Repositories{
		Project:    &stubProjectRepo{projects: []*models.Project{{ID: "p1", UserID: "u1", Name: "One"}}},
		Monitoring: &stubMonitoringRepo{},
		Content:    &stubContentRepo{docs: []models.ContentDoc{{UserID: "u1", ProjectID: "p1", WordCount: 800}}},
	}
	rec := reconcile.New(repos, stubPerformance{}, testLogger())
	return NewRefreshMonitoringHandler(key, rec, testLogger())
}

func TestRefreshMonitoring_InvalidKeyReturns200(t *testing.T) {
	handler := newTestRefreshHandler("secret-key")

	req := httptest.NewRequest(http.MethodPost, "/api/public/refresh-monitoring", nil)
	req.Header.Set("api-key", "wrong-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200 for invalid key, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["status"] != "error" || body["message"] != "Invalid API key" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestRefreshMonitoring_Success(t *testing.T) {
	handler := newTestRefreshHandler("secret-key")

	req := httptest.NewRequest(http.MethodPost, "/api/public/refresh-monitoring", nil)
	req.Header.Set("api-key", "secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Status              string `json:"status"`
		ProjectsWithBlogs   int    `json:"projects_with_blogs"`
		TotalBlogsProcessed int    `json:"total_blogs_processed"`
		TotalRowsInserted   int    `json:"total_rows_inserted"`
		FinalTableSize      int    `json:"final_table_size"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Status != "success" {
		t.Errorf("expected success, got %q", body.Status)
	}
	if body.ProjectsWithBlogs != 1 || body.TotalBlogsProcessed != 1 {
		t.Errorf("unexpected counts: %+v", body)
	}
	if body.TotalRowsInserted != 1 || body.FinalTableSize != 1 {
		t.Errorf("unexpected row counts: %+v", body)
	}
}
