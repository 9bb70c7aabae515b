package config

// PermissionThreshold is the minimum balance required for the coarse
// feature-gate check used by the UI before any specific service is chosen.
const PermissionThreshold = 5.0

// ServiceRequirement describes the balance gate for one callable service.
type ServiceRequirement struct {
	// MinBalance is the minimum account balance required before the
	// service may run. Zero means no gate.
	MinBalance float64 `json:"min_balance"`

	// BillingName is the service name used on usage records, when it
	// differs from the request key (e.g. plagiarism_detection bills as
	// plagiarism_checker).
	BillingName string `json:"billing_name"`

	Description string `json:"description,omitempty"`
}

// ServiceCatalog maps request-facing service keys to their balance
// requirements and billing names.
type ServiceCatalog struct {
	Requirements map[string]ServiceRequirement `json:"requirements"`
}

// DefaultServiceCatalog returns the built-in catalog. An S3 override, when
// configured, replaces these entries wholesale.
func DefaultServiceCatalog() *ServiceCatalog {
	return &ServiceCatalog{
		Requirements: map[string]ServiceRequirement{
			"primary_keywords": {
				MinBalance:  0.50,
				BillingName: "primary_keywords",
				Description: "Primary keyword research",
			},
			"primary_related_keywords": {
				MinBalance:  5,
				BillingName: "primary_related_keywords",
				Description: "Related keyword research",
			},
			"secondary_keywords": {
				MinBalance:  5,
				BillingName: "secondary_keywords_generation",
				Description: "AI-powered secondary keyword generation with intent analysis",
			},
			"secondary_keywords_manual": {
				MinBalance:  3,
				BillingName: "secondary_keywords_manual",
				Description: "Manual secondary keyword analysis with intent classification",
			},
			"category_selection": {
				MinBalance:  3,
				BillingName: "category_selection",
				Description: "Category selection service",
			},
			"title_generation": {
				MinBalance:  3,
				BillingName: "title_generation",
				Description: "Title generation service",
			},
			"outline_generation": {
				MinBalance:  3,
				BillingName: "outline_generation",
				Description: "Outline generation service",
			},
			"outline_generation_suggestion": {
				MinBalance:  3,
				BillingName: "outline_generation_suggestion",
				Description: "Advanced outline generation service",
			},
			"outline_generation_claude": {
				MinBalance:  5,
				BillingName: "outline_generation_claude",
				Description: "Premium outline generation using Claude Opus with advanced reasoning",
			},
			"sources_generation": {
				MinBalance:  3,
				BillingName: "sources_generation",
				Description: "High-volume streaming source collection service",
			},
			"Sources_upload_doc": {
				MinBalance:  3,
				BillingName: "Sources_upload_doc",
				Description: "Document upload service",
			},
			"add_custom_source": {
				MinBalance:  3,
				BillingName: "add_custom_source",
				Description: "Custom source addition service",
			},
			"blog_generation": {
				MinBalance:  2,
				BillingName: "blog_generation",
				Description: "AI blog generation",
			},
			"meta_description": {
				MinBalance:  0.001,
				BillingName: "meta_description",
				Description: "AI meta description generation",
			},
			"plagiarism_detection": {
				MinBalance:  1,
				BillingName: "plagiarism_checker",
				Description: "Plagiarism detection using Winston AI",
			},
			"outline_generation_streaming": {
				MinBalance:  3,
				BillingName: "outline_generation_streaming",
				Description: "Real-time streaming outline generation with AI processing",
			},
			"text_shortening": {
				MinBalance:  1.0,
				BillingName: "text_shortening",
				Description: "AI-powered text shortening with SEO preservation and brand voice maintenance",
			},
			"convert_to_table": {
				MinBalance:  1.0,
				BillingName: "convert_to_table",
				Description: "AI-powered convert to table with SEO preservation and brand voice maintenance",
			},
			"convert_to_list": {
				MinBalance:  1.0,
				BillingName: "convert_to_list",
				Description: "AI-powered convert to list with SEO preservation and brand voice maintenance",
			},
		},
	}
}

// Get returns the requirement for a service key, or nil when unknown.
func (c *ServiceCatalog) Get(serviceKey string) *ServiceRequirement {
	if req, ok := c.Requirements[serviceKey]; ok {
		return &req
	}
	return nil
}

// MinBalance returns the minimum balance for a service key, 0 when unknown.
func (c *ServiceCatalog) MinBalance(serviceKey string) float64 {
	if req, ok := c.Requirements[serviceKey]; ok {
		return req.MinBalance
	}
	return 0
}

// BillingName resolves the billing service name for a request key.
// Unknown keys bill under their own name.
func (c *ServiceCatalog) BillingName(serviceKey string) string {
	if req, ok := c.Requirements[serviceKey]; ok && req.BillingName != "" {
		return req.BillingName
	}
	return serviceKey
}
