// Package routes provides route registration for the quillforge-api.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/quillforge/quillforge-api/internal/http/handlers"
	"github.com/quillforge/quillforge-api/internal/http/mw"
	"github.com/quillforge/quillforge-api/internal/version"
)

// NewHumaConfig creates the shared Huma configuration for the API.
// This includes API metadata, security schemes, and tag definitions.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("QuillForge API", version.Get().Short())
	cfg.Info.Description = "Balance-gated usage metering and billing reconciliation for content generation."

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:        "http",
			Scheme:      "bearer",
			Description: "JWT authentication. Include the session token in the Authorization header as `Bearer <token>`.",
		},
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Balance", Description: "Credit balance and service gating", Extensions: map[string]any{"x-displayName": "Balance"}},
		{Name: "Usage", Description: "Usage statistics and billing history", Extensions: map[string]any{"x-displayName": "Usage"}},
		{Name: "Monitoring", Description: "Per-project content and search performance rollups", Extensions: map[string]any{"x-displayName": "Monitoring"}},
		{Name: "Health", Description: "System health and status", Extensions: map[string]any{"x-displayName": "Health"}},
	}

	return cfg
}

// Handlers bundles the handler instances the route table needs.
type Handlers struct {
	Balance    *handlers.BalanceHandler
	Usage      *handlers.UsageHandler
	Monitoring *handlers.MonitoringHandler
	Readyz     *handlers.ReadyzHandler
}

// Register registers all Huma API routes.
func Register(api huma.API, h *Handlers) {
	// =========================================================================
	// Public Routes (no auth required)
	// =========================================================================

	mw.PublicGet(api, "/api/v1/health", handlers.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	// Kubernetes probes (hidden from docs - internal use only)
	mw.HiddenGet(api, "/healthz", handlers.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz.Readyz)

	// =========================================================================
	// Protected Routes (require bearer auth)
	// =========================================================================

	// --- Balance ---
	mw.ProtectedGet(api, "/api/v1/balance", h.Balance.GetBalance,
		mw.WithTags("Balance"),
		mw.WithSummary("Get credit balance"),
		mw.WithOperationID("getBalance"))
	mw.ProtectedGet(api, "/api/v1/balance/validate", h.Balance.ValidateBalance,
		mw.WithTags("Balance"),
		mw.WithSummary("Validate balance for a service"),
		mw.WithDescription("Pre-flight check that the balance covers one invocation of the given service. Insufficient balance is a 200 with valid=false and shortfall details."),
		mw.WithOperationID("validateBalance"))
	mw.ProtectedGet(api, "/api/v1/permissions", h.Balance.CheckPermissions,
		mw.WithTags("Balance"),
		mw.WithSummary("Check feature permissions"),
		mw.WithOperationID("checkPermissions"))
	mw.ProtectedGet(api, "/api/v1/transactions", h.Balance.ListTransactions,
		mw.WithTags("Balance"),
		mw.WithSummary("List credit transactions"),
		mw.WithOperationID("listTransactions"))

	// --- Usage ---
	mw.ProtectedPost(api, "/api/v1/usage", h.Usage.RecordUsage,
		mw.WithTags("Usage"),
		mw.WithSummary("Record service usage"),
		mw.WithDescription("Reports a completed provider call for billing. The call already succeeded upstream, so a billing failure returns recorded=false rather than an error."),
		mw.WithOperationID("recordUsage"))
	mw.ProtectedGet(api, "/api/v1/usage", h.Usage.GetUsage,
		mw.WithTags("Usage"),
		mw.WithSummary("Get usage summary"),
		mw.WithOperationID("getUsage"))
	mw.ProtectedGet(api, "/api/v1/usage/history", h.Usage.GetUsageHistory,
		mw.WithTags("Usage"),
		mw.WithSummary("Get usage history"),
		mw.WithOperationID("getUsageHistory"))

	// --- Monitoring ---
	mw.ProtectedGet(api, "/api/v1/monitoring/stats", h.Monitoring.GetStats,
		mw.WithTags("Monitoring"),
		mw.WithSummary("Get monitoring rollups"),
		mw.WithOperationID("getMonitoringStats"))
}
