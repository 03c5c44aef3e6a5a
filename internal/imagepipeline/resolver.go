// resolver.go: orchestrates a single image resolution request through the
// edge cache, the URL mapping table, the guarded origin fetch and the default
// placeholder fallback. Resolution failures always terminate in a servable
// image, never an error.
package imagepipeline

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jtoivane/retkikartta/internal/observability/metrics"
	"github.com/jtoivane/retkikartta/internal/places"
)

// Cache status markers carried on every terminal response.
const (
	CacheStatusHit  = "HIT"
	CacheStatusMiss = "MISS"
)

// CacheStatusHeader is the response header carrying the cache status marker.
const CacheStatusHeader = "X-Cache-Status"

// Resolution is the terminal outcome of a resolution request. Either
// RedirectURL is set (serve a redirect) or Body/ContentType are (serve bytes).
type Resolution struct {
	StatusCode  int
	RedirectURL string
	Body        []byte
	ContentType string
	CacheStatus string
}

// Resolver orchestrates the image resolution pipeline for single requests.
type Resolver struct {
	edge              *EdgeCache
	mappings          *MappingCache
	guard             *FetchGuard
	placeholderURL    string
	placeholderDomain string
	metrics           *metrics.ImagePipelineMetrics
}

// NewResolver wires the pipeline layers together. metrics may be nil.
func NewResolver(edge *EdgeCache, mappings *MappingCache, guard *FetchGuard, placeholderURL string, m *metrics.ImagePipelineMetrics) *Resolver {
	domain := ""
	if u, err := url.Parse(placeholderURL); err == nil {
		domain = u.Hostname()
	}
	return &Resolver{
		edge:              edge,
		mappings:          mappings,
		guard:             guard,
		placeholderURL:    placeholderURL,
		placeholderDomain: domain,
		metrics:           m,
	}
}

// PlaceholderURL returns the configured default image URL.
func (r *Resolver) PlaceholderURL() string {
	return r.placeholderURL
}

// isPlaceholderURL reports whether targetURL already points at the
// placeholder domain. Such URLs are served as-is, never re-fetched or cached.
func (r *Resolver) isPlaceholderURL(targetURL string) bool {
	if r.placeholderDomain == "" {
		return false
	}
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return u.Hostname() == r.placeholderDomain
}

// Resolve runs the pipeline state machine for one request. requestKey
// identifies the full inbound request for edge caching; targetURL is the
// image URL to resolve. The result is always servable.
func (r *Resolver) Resolve(ctx context.Context, requestKey, targetURL string) Resolution {
	// Already-resolved placeholder URLs short-circuit everything.
	if r.isPlaceholderURL(targetURL) {
		return Resolution{
			StatusCode:  http.StatusFound,
			RedirectURL: targetURL,
			CacheStatus: CacheStatusMiss,
		}
	}

	// Non-provider URLs pass through untouched; no cache entry is created.
	if !places.IsProviderImageURL(targetURL) {
		return Resolution{
			StatusCode:  http.StatusFound,
			RedirectURL: targetURL,
			CacheStatus: CacheStatusMiss,
		}
	}

	// Edge cache first; a hit skips every later layer.
	if cached, found := r.edge.Match(requestKey); found {
		if r.metrics != nil {
			r.metrics.IncrementEdgeCacheHits()
		}
		return Resolution{
			StatusCode:  cached.StatusCode,
			Body:        cached.Body,
			ContentType: cached.ContentType,
			CacheStatus: CacheStatusHit,
		}
	}
	if r.metrics != nil {
		r.metrics.IncrementEdgeCacheMisses()
	}

	// Persisted mapping next. A different resolved URL means bytes already
	// live elsewhere; redirect instead of re-fetching.
	if resolved, ok := r.mappings.Lookup(targetURL); ok && resolved != "" && resolved != targetURL {
		return Resolution{
			StatusCode:  http.StatusFound,
			RedirectURL: resolved,
			CacheStatus: CacheStatusHit,
		}
	}

	// Mapping miss (or self-mapping): guarded origin fetch.
	result := r.guard.Fetch(ctx, targetURL)
	if !result.OK {
		logger.Debug("Origin fetch failed, serving placeholder",
			"url", targetURL,
			"reason", result.Reason)
		return Resolution{
			StatusCode:  http.StatusFound,
			RedirectURL: r.placeholderURL,
			CacheStatus: CacheStatusMiss,
		}
	}

	// The validated provider URL is durable enough to act as its own cache
	// pointer.
	r.mappings.Store(targetURL, targetURL)

	response := &CachedResponse{
		Body:        result.Body,
		ContentType: result.ContentType,
		StatusCode:  http.StatusOK,
	}
	r.edge.PutDeferred(requestKey, response)

	return Resolution{
		StatusCode:  http.StatusOK,
		Body:        result.Body,
		ContentType: result.ContentType,
		CacheStatus: CacheStatusMiss,
	}
}
