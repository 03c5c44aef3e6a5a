// mapping.go: age-validated access to the persisted URL cache mapping table.
// Caching here is best-effort: write failures are logged, never raised.
package imagepipeline

import (
	"time"

	"github.com/jtoivane/retkikartta/internal/datastore"
	"github.com/jtoivane/retkikartta/internal/observability/metrics"
	"github.com/jtoivane/retkikartta/internal/places"
)

// MappingCache reads and writes URL cache mappings with an expiry window.
type MappingCache struct {
	ds      datastore.Interface
	expiry  time.Duration
	metrics *metrics.ImagePipelineMetrics
}

// NewMappingCache creates a mapping cache with the given expiry window.
// metrics may be nil.
func NewMappingCache(ds datastore.Interface, expiry time.Duration, m *metrics.ImagePipelineMetrics) *MappingCache {
	if expiry <= 0 {
		expiry = 30 * 24 * time.Hour
	}
	return &MappingCache{
		ds:      ds,
		expiry:  expiry,
		metrics: m,
	}
}

// Expiry returns the configured validity window.
func (mc *MappingCache) Expiry() time.Duration {
	return mc.expiry
}

// Lookup resolves originalURL through the mapping table. Non-provider URLs
// pass through unchanged and are never cached or rewritten. For provider URLs
// the mapping is returned only while it is within the expiry window; an
// expired or absent mapping is a miss, not an error.
func (mc *MappingCache) Lookup(originalURL string) (string, bool) {
	if !places.IsProviderImageURL(originalURL) {
		return originalURL, true
	}

	reference := places.ExtractReference(originalURL)
	if reference == "" {
		return "", false
	}

	mapping, err := mc.ds.GetCachedURL(places.CacheKey(reference))
	if err != nil {
		logger.Warn("Mapping lookup failed",
			"url", originalURL,
			"error", err)
		return "", false
	}
	if mapping == nil {
		mc.miss()
		return "", false
	}

	if time.Since(mapping.CreatedAt) >= mc.expiry {
		// Row stays until cleanup; treated as a miss on read.
		mc.miss()
		return "", false
	}

	mc.hit()
	return mapping.CachedURL, true
}

// Store upserts the mapping for a provider URL. No-op for non-provider URLs.
// Failures are logged and swallowed so caching never fails the caller's
// primary operation.
func (mc *MappingCache) Store(originalURL, resolvedURL string) {
	if !places.IsProviderImageURL(originalURL) {
		return
	}

	reference := places.ExtractReference(originalURL)
	if reference == "" {
		return
	}

	mapping := &datastore.URLCacheMapping{
		CacheKey:    places.CacheKey(reference),
		OriginalURL: originalURL,
		CachedURL:   resolvedURL,
		CreatedAt:   time.Now(),
	}
	if err := mc.ds.SaveCachedURL(mapping); err != nil {
		logger.Warn("Failed to store URL cache mapping",
			"url", originalURL,
			"error", err)
	}
}

// CleanupExpired deletes all mappings older than the expiry window and
// returns the number removed. Idempotent.
func (mc *MappingCache) CleanupExpired() (int64, error) {
	count, err := mc.ds.DeleteExpiredCachedURLs(time.Now().Add(-mc.expiry))
	if err != nil {
		return 0, err
	}
	if mc.metrics != nil && count > 0 {
		mc.metrics.AddMappingsCleaned(float64(count))
	}
	logger.Info("Cleaned up expired URL cache mappings", "removed", count)
	return count, nil
}

// Stats returns mapping table counts for observability.
func (mc *MappingCache) Stats() (datastore.MappingStats, error) {
	return mc.ds.CachedURLStats(time.Now().Add(-mc.expiry))
}

func (mc *MappingCache) hit() {
	if mc.metrics != nil {
		mc.metrics.IncrementMappingHits()
	}
}

func (mc *MappingCache) miss() {
	if mc.metrics != nil {
		mc.metrics.IncrementMappingMisses()
	}
}
