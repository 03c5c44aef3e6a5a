package imagepipeline

import (
	"testing"
	"time"

	"github.com/jtoivane/retkikartta/internal/datastore"
	"github.com/jtoivane/retkikartta/internal/places"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providerURL = "https://maps.googleapis.com/maps/api/place/photo?maxwidth=800&photoreference=MAPREF&key=k"

func TestMappingLookup_NonProviderPassThrough(t *testing.T) {
	mc := NewMappingCache(newMockStore(), 30*24*time.Hour, nil)

	resolved, ok := mc.Lookup("https://example.com/photo.jpg")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/photo.jpg", resolved)
}

func TestMappingLookup_AbsentIsMiss(t *testing.T) {
	mc := NewMappingCache(newMockStore(), 30*24*time.Hour, nil)

	resolved, ok := mc.Lookup(providerURL)
	assert.False(t, ok)
	assert.Empty(t, resolved)
}

func TestMappingLookup_FreshHit(t *testing.T) {
	ds := newMockStore()
	mc := NewMappingCache(ds, 30*24*time.Hour, nil)

	mc.Store(providerURL, "https://cdn.example.com/cached.jpg")

	resolved, ok := mc.Lookup(providerURL)
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/cached.jpg", resolved)
}

func TestMappingLookup_ExpiredIsMissButRowStays(t *testing.T) {
	ds := newMockStore()
	mc := NewMappingCache(ds, 30*24*time.Hour, nil)

	key := places.CacheKey(places.ExtractReference(providerURL))
	require.NoError(t, ds.SaveCachedURL(&datastore.URLCacheMapping{
		CacheKey:    key,
		OriginalURL: providerURL,
		CachedURL:   "https://cdn.example.com/old.jpg",
		CreatedAt:   time.Now().Add(-31 * 24 * time.Hour),
	}))

	_, ok := mc.Lookup(providerURL)
	assert.False(t, ok, "expired mapping must read as a miss")

	row, err := ds.GetCachedURL(key)
	require.NoError(t, err)
	assert.NotNil(t, row, "expiry on read must not delete the row")
}

func TestMappingLookup_StoreErrorIsMiss(t *testing.T) {
	ds := newMockStore()
	ds.lookupErr = assert.AnError
	mc := NewMappingCache(ds, 30*24*time.Hour, nil)

	resolved, ok := mc.Lookup(providerURL)
	assert.False(t, ok, "a read failure must degrade to a miss, not an error")
	assert.Empty(t, resolved)
}

func TestMappingStore_NonProviderIsNoOp(t *testing.T) {
	ds := newMockStore()
	mc := NewMappingCache(ds, 30*24*time.Hour, nil)

	mc.Store("https://example.com/photo.jpg", "https://cdn.example.com/x.jpg")

	assert.Empty(t, ds.mappings)
}

func TestMappingStore_SwallowsWriteErrors(t *testing.T) {
	ds := newMockStore()
	ds.saveErr = assert.AnError
	mc := NewMappingCache(ds, 30*24*time.Hour, nil)

	// Must not panic or surface the error.
	mc.Store(providerURL, "https://cdn.example.com/x.jpg")
}

func TestCleanupExpired(t *testing.T) {
	ds := newMockStore()
	mc := NewMappingCache(ds, 30*24*time.Hour, nil)

	require.NoError(t, ds.SaveCachedURL(&datastore.URLCacheMapping{
		CacheKey:  "gphoto:old",
		CachedURL: "u",
		CreatedAt: time.Now().Add(-45 * 24 * time.Hour),
	}))
	require.NoError(t, ds.SaveCachedURL(&datastore.URLCacheMapping{
		CacheKey:  "gphoto:new",
		CachedURL: "u",
		CreatedAt: time.Now(),
	}))

	removed, err := mc.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = mc.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed, "second cleanup must be a no-op")
}

func TestMappingStats(t *testing.T) {
	ds := newMockStore()
	mc := NewMappingCache(ds, 30*24*time.Hour, nil)

	require.NoError(t, ds.SaveCachedURL(&datastore.URLCacheMapping{
		CacheKey:  "gphoto:valid",
		CachedURL: "u",
		CreatedAt: time.Now(),
	}))
	require.NoError(t, ds.SaveCachedURL(&datastore.URLCacheMapping{
		CacheKey:  "gphoto:expired",
		CachedURL: "u",
		CreatedAt: time.Now().Add(-60 * 24 * time.Hour),
	}))

	stats, err := mc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Expired)
	assert.Equal(t, int64(1), stats.Valid)
}

func TestNewMappingCache_DefaultExpiry(t *testing.T) {
	mc := NewMappingCache(newMockStore(), 0, nil)
	assert.Equal(t, 30*24*time.Hour, mc.Expiry())
}
