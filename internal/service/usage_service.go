package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quillforge/quillforge-api/internal/metrics"
	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/repository"
)

// UsageService handles usage recording and billing.
type UsageService struct {
	repos   *repository.Repositories
	pricing *PricingService
	logger  *slog.Logger
}

// NewUsageService creates a new usage service.
func NewUsageService(repos *repository.Repositories, pricing *PricingService, logger *slog.Logger) *UsageService {
	return &UsageService{
		repos:   repos,
		pricing: pricing,
		logger:  logger,
	}
}

// RecordUsageParams identifies what to bill and to whom.
type RecordUsageParams struct {
	UserID             string
	ServiceName        string
	ServiceDescription string
	ModelName          string
	InputTokens        int
	OutputTokens       int
	ReasoningTokens    int
	ReferenceID        string
	ProjectID          string
}

// RecordLLMUsage prices the token usage and charges the account in one
// atomic step. Returns ErrInsufficientBalance when the account cannot
// cover the computed charge.
func (s *UsageService) RecordLLMUsage(ctx context.Context, params RecordUsageParams) (*models.UsageReceipt, error) {
	breakdown, err := s.pricing.ServiceCost(params.ServiceName, params.ModelName,
		params.InputTokens, params.OutputTokens, params.ReasoningTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to price usage: %w", err)
	}

	usageData, err := json.Marshal(breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cost breakdown: %w", err)
	}

	receipt, err := s.charge(ctx, params, breakdown.BaseCostUSD, breakdown.Multiplier,
		breakdown.ActualChargeUSD, string(usageData))
	if err != nil {
		return nil, err
	}

	metrics.LLMTokensUsed.WithLabelValues(breakdown.Provider, breakdown.ModelName, "input").Add(float64(params.InputTokens))
	metrics.LLMTokensUsed.WithLabelValues(breakdown.Provider, breakdown.ModelName, "output").Add(float64(params.OutputTokens))
	if params.ReasoningTokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(breakdown.Provider, breakdown.ModelName, "reasoning").Add(float64(params.ReasoningTokens))
	}
	return receipt, nil
}

// RecordFlatUsage charges a pre-computed base cost with a multiplier,
// bypassing token pricing. Used for services billed per call or per
// provider credit rather than per token.
func (s *UsageService) RecordFlatUsage(ctx context.Context, params RecordUsageParams, baseCost, multiplier float64) (*models.UsageReceipt, error) {
	if multiplier <= 0 {
		multiplier = 1
	}
	return s.charge(ctx, params, baseCost, multiplier, baseCost*multiplier, "")
}

// RecordUsageOrLog is the lenient billing path: generation already
// succeeded, so a billing failure must not turn the response into an
// error. Failures are logged and counted, never propagated.
func (s *UsageService) RecordUsageOrLog(ctx context.Context, params RecordUsageParams) *models.UsageReceipt {
	receipt, err := s.RecordLLMUsage(ctx, params)
	if err != nil {
		metrics.BillingFailuresTotal.WithLabelValues(params.ServiceName).Inc()
		s.logger.Error("usage recording failed, result delivered unbilled",
			"user_id", params.UserID,
			"service", params.ServiceName,
			"model", params.ModelName,
			"error", err,
		)
		return nil
	}
	return receipt
}

// charge runs the atomic debit and updates billing metrics.
func (s *UsageService) charge(ctx context.Context, params RecordUsageParams, baseCost, multiplier, actualCharge float64, usageData string) (*models.UsageReceipt, error) {
	var refID, projectID *string
	if params.ReferenceID != "" {
		refID = &params.ReferenceID
	}
	if params.ProjectID != "" {
		projectID = &params.ProjectID
	}

	receipt, err := s.repos.Usage.ChargeAndRecord(ctx, repository.ChargeParams{
		UserID:             params.UserID,
		ServiceName:        params.ServiceName,
		ServiceDescription: params.ServiceDescription,
		BaseCost:           baseCost,
		Multiplier:         multiplier,
		ActualCharge:       actualCharge,
		UsageData:          usageData,
		ReferenceID:        refID,
		ProjectID:          projectID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			metrics.ChargesTotal.WithLabelValues(params.ServiceName, "insufficient_balance").Inc()
			return nil, ErrInsufficientBalance
		}
		metrics.ChargesTotal.WithLabelValues(params.ServiceName, "error").Inc()
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	metrics.ChargesTotal.WithLabelValues(params.ServiceName, "ok").Inc()
	metrics.ChargedUSD.WithLabelValues(params.ServiceName).Add(actualCharge)

	s.logger.Info("usage recorded",
		"user_id", params.UserID,
		"service", params.ServiceName,
		"actual_charge", receipt.ActualCharge,
		"new_balance", receipt.NewBalance,
	)
	return receipt, nil
}

// GetUsageHistory returns a user's usage records with project metadata.
func (s *UsageService) GetUsageHistory(ctx context.Context, userID string, filter repository.UsageHistoryFilter) ([]*models.UsageRecordWithProject, int, error) {
	records, total, err := s.repos.Usage.GetHistory(ctx, userID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get usage history: %w", err)
	}
	return records, total, nil
}

// GetUsageSummary aggregates per-service spend over the trailing period.
func (s *UsageService) GetUsageSummary(ctx context.Context, userID string, period time.Duration) ([]*models.UsageSummary, error) {
	if period <= 0 {
		period = 30 * 24 * time.Hour
	}
	summaries, err := s.repos.Usage.GetSummary(ctx, userID, time.Now().Add(-period))
	if err != nil {
		return nil, fmt.Errorf("failed to get usage summary: %w", err)
	}
	return summaries, nil
}
