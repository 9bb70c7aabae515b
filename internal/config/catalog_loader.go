package config

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// catalogJSON is the S3 override document shape.
type catalogJSON struct {
	Requirements map[string]ServiceRequirement `json:"requirements"`
}

// CatalogLoader provides S3-backed service catalog overrides with caching.
// When no override object exists the built-in defaults stay active.
type CatalogLoader struct {
	loader *S3Loader

	mu       sync.RWMutex
	catalog  *ServiceCatalog
	defaults *ServiceCatalog
	logger   *slog.Logger
}

// NewCatalogLoader creates a catalog loader around the built-in defaults.
func NewCatalogLoader(cfg S3LoaderConfig) *CatalogLoader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultServiceCatalog()
	return &CatalogLoader{
		loader:   NewS3Loader(cfg),
		catalog:  defaults,
		defaults: defaults,
		logger:   logger,
	}
}

// IsEnabled returns true if S3 is configured.
func (l *CatalogLoader) IsEnabled() bool {
	return l.loader.IsEnabled()
}

// Load performs an initial blocking load of catalog overrides from S3.
// Call this at startup so the first request sees any overrides.
func (l *CatalogLoader) Load(ctx context.Context) {
	if !l.IsEnabled() {
		return
	}
	l.refresh(ctx)
}

// MaybeRefresh checks if the catalog needs refreshing from S3.
func (l *CatalogLoader) MaybeRefresh(ctx context.Context) {
	if !l.loader.NeedsRefresh() {
		return
	}

	// Refresh in background to not block requests
	go l.refresh(context.WithoutCancel(ctx))
}

// refresh fetches the catalog override from S3 and parses it.
func (l *CatalogLoader) refresh(ctx context.Context) {
	result, err := l.loader.Fetch(ctx)
	if err != nil {
		// S3Loader already logged the error
		return
	}
	if result == nil || result.NotChanged {
		return
	}

	var doc catalogJSON
	if err := json.Unmarshal(result.Data, &doc); err != nil {
		l.logger.Error("failed to parse service catalog JSON", "error", err)
		return
	}
	if len(doc.Requirements) == 0 {
		l.logger.Warn("service catalog override is empty, keeping defaults")
		return
	}

	l.mu.Lock()
	l.catalog = &ServiceCatalog{Requirements: doc.Requirements}
	l.mu.Unlock()

	l.logger.Info("service catalog loaded from S3", "service_count", len(doc.Requirements))
}

// Catalog returns the active catalog, refreshing from S3 in the background
// when stale. Falls back to the built-in defaults when no override exists.
func (l *CatalogLoader) Catalog(ctx context.Context) *ServiceCatalog {
	if l.IsEnabled() {
		l.MaybeRefresh(ctx)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.catalog != nil {
		return l.catalog
	}
	return l.defaults
}
