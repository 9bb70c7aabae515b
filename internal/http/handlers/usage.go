package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/repository"
	"github.com/quillforge/quillforge-api/internal/service"
)

// UsageHandler handles usage endpoints.
type UsageHandler struct {
	usageSvc *service.UsageService
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(usageSvc *service.UsageService) *UsageHandler {
	return &UsageHandler{usageSvc: usageSvc}
}

// RecordUsageInput reports one completed provider call for billing.
type RecordUsageInput struct {
	Body struct {
		ServiceName        string `json:"service_name" minLength:"1" doc:"Billing service name"`
		ServiceDescription string `json:"service_description,omitempty"`
		ModelName          string `json:"model_name,omitempty" doc:"Provider model that served the call; defaults when empty"`
		InputTokens        int    `json:"input_tokens,omitempty" minimum:"0"`
		OutputTokens       int    `json:"output_tokens,omitempty" minimum:"0"`
		ReasoningTokens    int    `json:"reasoning_tokens,omitempty" minimum:"0"`
		ReferenceID        string `json:"reference_id,omitempty" doc:"Caller-side correlation id"`
		ProjectID          string `json:"project_id,omitempty"`
	}
}

// RecordUsageOutput represents the billing outcome for a reported call.
type RecordUsageOutput struct {
	Body struct {
		Recorded bool                 `json:"recorded" doc:"False when the charge could not be applied; the result was still delivered"`
		Receipt  *models.UsageReceipt `json:"receipt,omitempty"`
	}
}

// RecordUsage bills a provider call that already completed upstream. The
// generation result has been delivered, so billing failures are absorbed:
// the response reports recorded=false instead of an error.
func (h *UsageHandler) RecordUsage(ctx context.Context, input *RecordUsageInput) (*RecordUsageOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	receipt := h.usageSvc.RecordUsageOrLog(ctx, service.RecordUsageParams{
		UserID:             userID,
		ServiceName:        input.Body.ServiceName,
		ServiceDescription: input.Body.ServiceDescription,
		ModelName:          input.Body.ModelName,
		InputTokens:        input.Body.InputTokens,
		OutputTokens:       input.Body.OutputTokens,
		ReasoningTokens:    input.Body.ReasoningTokens,
		ReferenceID:        input.Body.ReferenceID,
		ProjectID:          input.Body.ProjectID,
	})

	out := &RecordUsageOutput{}
	out.Body.Recorded = receipt != nil
	out.Body.Receipt = receipt
	return out, nil
}

// GetUsageInput represents a usage summary request.
type GetUsageInput struct {
	Days int `query:"days" default:"30" minimum:"1" maximum:"365" doc:"Trailing period in days"`
}

// GetUsageOutput represents the per-service usage summary.
type GetUsageOutput struct {
	Body struct {
		Services    []*models.UsageSummary `json:"services"`
		TotalCharge float64                `json:"total_charge"`
	}
}

// GetUsage returns per-service spend over the trailing period.
func (h *UsageHandler) GetUsage(ctx context.Context, input *GetUsageInput) (*GetUsageOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	summaries, err := h.usageSvc.GetUsageSummary(ctx, userID, time.Duration(input.Days)*24*time.Hour)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get usage")
	}

	out := &GetUsageOutput{}
	out.Body.Services = summaries
	if out.Body.Services == nil {
		out.Body.Services = []*models.UsageSummary{}
	}
	for _, s := range summaries {
		out.Body.TotalCharge += s.TotalCharge
	}
	return out, nil
}

// GetUsageHistoryInput represents a usage history request.
type GetUsageHistoryInput struct {
	ServiceName string `query:"service_name" doc:"Filter by billing service name"`
	ProjectID   string `query:"project_id" doc:"Filter by project"`
	Limit       int    `query:"limit" default:"50" minimum:"1" maximum:"200"`
	Offset      int    `query:"offset" default:"0" minimum:"0"`
}

// GetUsageHistoryOutput represents the usage history response.
type GetUsageHistoryOutput struct {
	Body struct {
		Records []*models.UsageRecordWithProject `json:"records"`
		Total   int                              `json:"total" doc:"Total matching records"`
	}
}

// GetUsageHistory returns individual usage records, newest first.
func (h *UsageHandler) GetUsageHistory(ctx context.Context, input *GetUsageHistoryInput) (*GetUsageHistoryOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	records, total, err := h.usageSvc.GetUsageHistory(ctx, userID, repository.UsageHistoryFilter{
		ServiceName: input.ServiceName,
		ProjectID:   input.ProjectID,
		Limit:       input.Limit,
		Offset:      input.Offset,
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get usage history")
	}

	out := &GetUsageHistoryOutput{}
	out.Body.Records = records
	if out.Body.Records == nil {
		out.Body.Records = []*models.UsageRecordWithProject{}
	}
	out.Body.Total = total
	return out, nil
}
