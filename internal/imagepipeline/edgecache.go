// edgecache.go: transient response-level cache keyed by the full inbound
// request. Consulted before any persisted lookup, populated asynchronously
// after a successful origin fetch.
package imagepipeline

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedResponse is a fully built response stored in the edge cache.
type CachedResponse struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

// EdgeCache wraps an in-memory TTL cache of complete responses.
type EdgeCache struct {
	cache *cache.Cache
}

// NewEdgeCache creates an edge cache whose entries expire after ttl.
func NewEdgeCache(ttl time.Duration) *EdgeCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &EdgeCache{
		cache: cache.New(ttl, ttl*2),
	}
}

// Match returns the cached response for a request key, if present.
func (e *EdgeCache) Match(requestKey string) (*CachedResponse, bool) {
	value, found := e.cache.Get(requestKey)
	if !found {
		return nil, false
	}
	response, ok := value.(*CachedResponse)
	if !ok {
		return nil, false
	}
	return response, true
}

// Put stores a response under a request key.
func (e *EdgeCache) Put(requestKey string, response *CachedResponse) {
	e.cache.Set(requestKey, response, cache.DefaultExpiration)
}

// PutDeferred schedules the cache write on a detached goroutine so the
// response to the current caller is not delayed by cache population.
func (e *EdgeCache) PutDeferred(requestKey string, response *CachedResponse) {
	go func() {
		e.Put(requestKey, response)
		logger.Debug("Edge cache populated", "key", requestKey)
	}()
}

// Clear drops all cached responses.
func (e *EdgeCache) Clear() {
	e.cache.Flush()
}
