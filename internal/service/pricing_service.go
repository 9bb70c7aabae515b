package service

import (
	"fmt"
	"log/slog"

	"github.com/quillforge/quillforge-api/internal/config"
	"github.com/quillforge/quillforge-api/internal/models"
)

// PricingService turns raw token usage into an itemized charge using the
// model pricing table and per-service markup multipliers.
type PricingService struct {
	table  *config.PricingTable
	logger *slog.Logger
}

// NewPricingService creates a new pricing service.
func NewPricingService(table *config.PricingTable, logger *slog.Logger) *PricingService {
	return &PricingService{
		table:  table,
		logger: logger,
	}
}

// ServiceCost calculates the charge for one service invocation.
// Flat credit-priced models (Winston AI) bill inputTokens against the flat
// rate and ignore outputTokens; token-priced models bill input and output
// separately. Reasoning tokens bill at the reasoning rate when the model
// has one, otherwise at the output rate. An unknown model is an error so
// unpriced usage never silently bills at zero.
func (s *PricingService) ServiceCost(serviceName, modelName string, inputTokens, outputTokens, reasoningTokens int) (*models.CostBreakdown, error) {
	if modelName == "" {
		modelName = config.DefaultModel
	}

	pricing, ok := s.table.GetModel(modelName)
	if !ok {
		return nil, fmt.Errorf("model %q not found in pricing table", modelName)
	}

	multiplier := s.table.GetMultiplier(serviceName)

	breakdown := &models.CostBreakdown{
		ModelName:       modelName,
		Provider:        pricing.Provider,
		InputTokens:     inputTokens,
		OutputTokens:    outputTokens,
		ReasoningTokens: reasoningTokens,
		TotalTokens:     inputTokens + outputTokens + reasoningTokens,
		Multiplier:      multiplier,
	}

	if pricing.FlatPriced() {
		// Flat credit pricing: inputTokens carries the credit units used.
		breakdown.InputCostUSD = float64(inputTokens) / 1000 * pricing.CreditsPer1K
		breakdown.BaseCostUSD = breakdown.InputCostUSD
	} else {
		breakdown.InputCostUSD = float64(inputTokens) / 1000 * pricing.InputPer1K
		breakdown.OutputCostUSD = float64(outputTokens) / 1000 * pricing.OutputPer1K
		if reasoningTokens > 0 {
			rate := pricing.ReasoningPer1K
			if rate == 0 {
				rate = pricing.OutputPer1K
			}
			breakdown.ReasoningCostUSD = float64(reasoningTokens) / 1000 * rate
		}
		breakdown.BaseCostUSD = breakdown.InputCostUSD + breakdown.OutputCostUSD + breakdown.ReasoningCostUSD
	}

	breakdown.ActualChargeUSD = breakdown.BaseCostUSD * multiplier
	return breakdown, nil
}

// EstimateCost estimates a charge before the call happens. Identical math
// to ServiceCost; a separate name keeps call sites honest about intent.
func (s *PricingService) EstimateCost(serviceName, modelName string, estimatedInput, estimatedOutput int) (*models.CostBreakdown, error) {
	return s.ServiceCost(serviceName, modelName, estimatedInput, estimatedOutput, 0)
}

// SupportedModels returns all model names in the pricing table.
func (s *PricingService) SupportedModels() []string {
	models := make([]string, 0, len(s.table.Models))
	for name := range s.table.Models {
		models = append(models, name)
	}
	return models
}
