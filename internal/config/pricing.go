package config

// ModelPricing holds per-1000-token USD rates for one model.
// Token-priced models set InputPer1K/OutputPer1K; flat credit-priced
// providers (Winston AI) set CreditsPer1K instead.
type ModelPricing struct {
	Provider       string  `json:"provider"`
	InputPer1K     float64 `json:"input_per_1k,omitempty"`
	OutputPer1K    float64 `json:"output_per_1k,omitempty"`
	ReasoningPer1K float64 `json:"reasoning_per_1k,omitempty"`
	CreditsPer1K   float64 `json:"credits_per_1k,omitempty"`
}

// FlatPriced reports whether the model bills a flat credit rate per 1K
// tokens instead of split input/output rates.
func (p ModelPricing) FlatPriced() bool {
	return p.CreditsPer1K > 0
}

// DefaultModel is used when a usage event names no model.
const DefaultModel = "gpt-4o"

// DefaultMultiplier applies to services without a specific multiplier.
const DefaultMultiplier = 5.0

// PricingTable holds model rates and per-service markup multipliers.
type PricingTable struct {
	Models      map[string]ModelPricing `json:"models"`
	Multipliers map[string]float64      `json:"multipliers"`
}

// DefaultPricingTable returns the built-in pricing table.
func DefaultPricingTable() *PricingTable {
	return &PricingTable{
		Models: map[string]ModelPricing{
			"gpt-4o":                     {Provider: "openai", InputPer1K: 0.0025, OutputPer1K: 0.010},
			"chatgpt-4o-latest":          {Provider: "openai", InputPer1K: 0.005, OutputPer1K: 0.015},
			"gpt-4o-mini-2024-07-18":     {Provider: "openai", InputPer1K: 0.00015, OutputPer1K: 0.0006},
			"gpt-4.1-mini":               {Provider: "openai", InputPer1K: 0.00015, OutputPer1K: 0.0006},
			"gpt-4":                      {Provider: "openai", InputPer1K: 0.03, OutputPer1K: 0.06},
			"gpt-4-turbo":                {Provider: "openai", InputPer1K: 0.01, OutputPer1K: 0.03},
			"gpt-3.5-turbo":              {Provider: "openai", InputPer1K: 0.0005, OutputPer1K: 0.0015},
			"o1":                         {Provider: "openai", InputPer1K: 0.015, OutputPer1K: 0.060},
			"o1-mini":                    {Provider: "openai", InputPer1K: 0.003, OutputPer1K: 0.012},
			"gpt-4.1-2025-04-14":         {Provider: "openai", InputPer1K: 0.002, OutputPer1K: 0.008},
			"gpt-5":                      {Provider: "openai", InputPer1K: 0.00125, OutputPer1K: 0.010, ReasoningPer1K: 0.010},
			"claude-3-5-sonnet-20241022": {Provider: "anthropic", InputPer1K: 0.003, OutputPer1K: 0.015},
			"claude-3-7-sonnet-20250219": {Provider: "anthropic", InputPer1K: 0.003, OutputPer1K: 0.015},
			"claude-3-opus":              {Provider: "anthropic", InputPer1K: 0.015, OutputPer1K: 0.075},
			"claude-opus-4-20250514":     {Provider: "anthropic", InputPer1K: 0.015, OutputPer1K: 0.075},
			"claude-opus-4-1":            {Provider: "anthropic", InputPer1K: 0.015, OutputPer1K: 0.075},
			"claude-haiku-4-5-20251001":  {Provider: "anthropic", InputPer1K: 0.00025, OutputPer1K: 0.00125},
			"claude-3-sonnet":            {Provider: "anthropic", InputPer1K: 0.003, OutputPer1K: 0.015},
			"claude-3-haiku":             {Provider: "anthropic", InputPer1K: 0.00025, OutputPer1K: 0.00125},
			"winston-ai-plagiarism":      {Provider: "winston-ai", CreditsPer1K: 0.025},
		},
		Multipliers: map[string]float64{
			"category_selection":            5.0,
			"meta_description":              5.0,
			"keyword_research":              5.0,
			"content_analysis":              5.0,
			"title_generation":              5.0,
			"outline_creation":              5.0,
			"outline_generation":            0.2,
			"outline_generation_suggestion": 5.0,
			"outline_generation_claude":     8.0,
			"secondary_keywords_generation": 5.0,
			"secondary_keywords_manual":     5.0,
			"add_custom_source":             5.0,
			"Sources_upload_doc":            5.0,
			"sources_generation":            5.0,
			"primary_keywords":              5.0,
			"primary_related_keywords":      5.0,
			"blog_generation":               5.0,
			"plagiarism_checker":            5.0,
			"outline_generation_streaming":  5.0,
			"text_shortening":               5.0,
			"convert_to_table":              5.0,
			"convert_to_list":               5.0,
			"featured_image_generation":     8.0,
		},
	}
}

// GetModel returns the pricing entry for a model. The second return is
// false when the model is unknown.
func (t *PricingTable) GetModel(model string) (ModelPricing, bool) {
	p, ok := t.Models[model]
	return p, ok
}

// GetMultiplier returns the markup multiplier for a billing service name,
// falling back to DefaultMultiplier for unknown services.
func (t *PricingTable) GetMultiplier(serviceName string) float64 {
	if m, ok := t.Multipliers[serviceName]; ok {
		return m
	}
	return DefaultMultiplier
}

// ModelsByProvider returns the model names for one provider.
func (t *PricingTable) ModelsByProvider(provider string) []string {
	var models []string
	for name, p := range t.Models {
		if p.Provider == provider {
			models = append(models, name)
		}
	}
	return models
}
