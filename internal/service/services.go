// Package service contains the business logic layer.
// Note: Identity and subscription management are handled upstream; the
// UserID in services references the external identity provider's user IDs.
package service

import (
	"log/slog"

	"github.com/quillforge/quillforge-api/internal/config"
	"github.com/quillforge/quillforge-api/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Balance *BalanceService
	Pricing *PricingService
	Usage   *UsageService
	GSC     *GSCService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, catalog *config.CatalogLoader, logger *slog.Logger) (*Services, error) {
	balanceSvc := NewBalanceService(repos, catalog, logger)

	pricingSvc := NewPricingService(config.DefaultPricingTable(), logger)

	usageSvc := NewUsageService(repos, pricingSvc, logger)

	gscSvc := NewGSCService(repos, cfg.GSCBaseURL, cfg.GSCTimeout, logger)

	return &Services{
		Balance: balanceSvc,
		Pricing: pricingSvc,
		Usage:   usageSvc,
		GSC:     gscSvc,
	}, nil
}
