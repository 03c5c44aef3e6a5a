package httpcontroller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jtoivane/retkikartta/internal/blobstore"
	"github.com/jtoivane/retkikartta/internal/conf"
	"github.com/jtoivane/retkikartta/internal/datastore"
	"github.com/jtoivane/retkikartta/internal/imagepipeline"
	"github.com/jtoivane/retkikartta/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testProviderURL    = "https://maps.googleapis.com/maps/api/place/photo?maxwidth=800&photoreference=WEBREF&key=k"
	testPlaceholderURL = "https://placehold.co/800x600?text=No+Image"
)

// memDS is an in-memory datastore.Interface for handler tests.
type memDS struct {
	mappings  map[string]*datastore.URLCacheMapping
	failures  map[string]*datastore.FailedImage
	versions  map[uint][]datastore.ImageVersion
	locations map[uint]*datastore.Location
	statsErr  error
	listErr   error
}

func newMemDS() *memDS {
	return &memDS{
		mappings:  make(map[string]*datastore.URLCacheMapping),
		failures:  make(map[string]*datastore.FailedImage),
		versions:  make(map[uint][]datastore.ImageVersion),
		locations: make(map[uint]*datastore.Location),
	}
}

func (m *memDS) Open() error  { return nil }
func (m *memDS) Close() error { return nil }

func (m *memDS) GetCachedURL(cacheKey string) (*datastore.URLCacheMapping, error) {
	mapping, found := m.mappings[cacheKey]
	if !found {
		return nil, nil
	}
	copied := *mapping
	return &copied, nil
}

func (m *memDS) SaveCachedURL(mapping *datastore.URLCacheMapping) error {
	copied := *mapping
	m.mappings[mapping.CacheKey] = &copied
	return nil
}

func (m *memDS) DeleteExpiredCachedURLs(olderThan time.Time) (int64, error) {
	var removed int64
	for key, mapping := range m.mappings {
		if mapping.CreatedAt.Before(olderThan) {
			delete(m.mappings, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memDS) CachedURLStats(expiryCutoff time.Time) (datastore.MappingStats, error) {
	if m.statsErr != nil {
		return datastore.MappingStats{}, m.statsErr
	}
	var stats datastore.MappingStats
	for _, mapping := range m.mappings {
		stats.Total++
		if mapping.CreatedAt.Before(expiryCutoff) {
			stats.Expired++
		}
	}
	stats.Valid = stats.Total - stats.Expired
	return stats, nil
}

func (m *memDS) RecordFailedImage(imageURL, errorMessage string) error {
	if record, found := m.failures[imageURL]; found {
		record.ErrorMessage = errorMessage
		record.RetryCount++
		return nil
	}
	m.failures[imageURL] = &datastore.FailedImage{
		ImageURL: imageURL, ErrorMessage: errorMessage, RetryCount: 1,
	}
	return nil
}

func (m *memDS) GetFailedImage(imageURL string) (*datastore.FailedImage, error) {
	record, found := m.failures[imageURL]
	if !found {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (m *memDS) SaveImageVersion(version *datastore.ImageVersion) error {
	m.versions[version.LocationID] = append(
		[]datastore.ImageVersion{*version}, m.versions[version.LocationID]...)
	return nil
}

func (m *memDS) ListImageVersions(locationID uint) ([]datastore.ImageVersion, error) {
	return append([]datastore.ImageVersion(nil), m.versions[locationID]...), nil
}

func (m *memDS) SaveImageDownload(*datastore.ImageDownload) error { return nil }

func (m *memDS) GetLocation(id uint) (datastore.Location, error) {
	if location, found := m.locations[id]; found {
		return *location, nil
	}
	return datastore.Location{}, fmt.Errorf("location %d not found", id)
}

func (m *memDS) GetAllLocations() ([]datastore.Location, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	locations := make([]datastore.Location, 0, len(m.locations))
	for _, location := range m.locations {
		locations = append(locations, *location)
	}
	return locations, nil
}

func (m *memDS) LocationsNeedingImage(staleBefore time.Time, limit int) ([]datastore.Location, error) {
	var needing []datastore.Location
	for _, location := range m.locations {
		if location.ThumbnailURL == "" || location.UpdatedAt.Before(staleBefore) {
			needing = append(needing, *location)
		}
		if len(needing) == limit {
			break
		}
	}
	return needing, nil
}

func (m *memDS) UpdateLocationThumbnail(locationID uint, thumbnailURL string) error {
	location, found := m.locations[locationID]
	if !found {
		return fmt.Errorf("location %d not found", locationID)
	}
	location.ThumbnailURL = thumbnailURL
	return nil
}

type noPhotos struct{}

func (noPhotos) PhotoURLs(context.Context, string) ([]string, error) { return nil, nil }

func testServerSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.ImageCache.PlaceholderURL = testPlaceholderURL
	settings.ImageCache.ExpiryDays = 30
	settings.ImageCache.EdgeTTLMinutes = 60
	settings.Refresh.BatchSize = 10
	settings.BlobStore.PublicBase = "/image/blob"
	return settings
}

// newTestServer wires a full server over the in-memory store with a disk blob
// backend rooted in a temp dir.
func newTestServer(t *testing.T, ds *memDS) *Server {
	t.Helper()

	settings := testServerSettings()
	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	store, err := blobstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	guard := imagepipeline.NewFetchGuard(ds, metrics.ImagePipeline)
	mappings := imagepipeline.NewMappingCache(ds, 30*24*time.Hour, metrics.ImagePipeline)
	edge := imagepipeline.NewEdgeCache(time.Hour)
	resolver := imagepipeline.NewResolver(edge, mappings, guard, testPlaceholderURL, metrics.ImagePipeline)

	photoSource := func(reference string) string {
		return "https://maps.googleapis.com/maps/api/place/photo?maxwidth=800&photoreference=" + reference + "&key=k"
	}
	blobs := blobstore.NewManager(store, ds, noPhotos{}, guard, settings, photoSource)
	scheduler := imagepipeline.NewScheduler(ds, noPhotos{}, guard, blobs, mappings, settings)

	return New(settings, ds, resolver, mappings, scheduler, blobs, metrics)
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestProxyImage_MissingURLParam(t *testing.T) {
	s := newTestServer(t, newMemDS())

	rec := doRequest(s, http.MethodGet, "/image/proxy")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, false, body["success"])
}

func TestProxyImage_NonProviderPassThrough(t *testing.T) {
	s := newTestServer(t, newMemDS())

	rec := doRequest(s, http.MethodGet, "/image/proxy?url=https%3A%2F%2Fexample.com%2Fbanner.jpg")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/banner.jpg", rec.Header().Get("Location"))
	assert.Equal(t, imagepipeline.CacheStatusMiss, rec.Header().Get(imagepipeline.CacheStatusHeader))
}

func TestProxyImage_MappingHitRedirects(t *testing.T) {
	ds := newMemDS()
	require.NoError(t, ds.SaveCachedURL(&datastore.URLCacheMapping{
		CacheKey:    "gphoto:WEBREF",
		OriginalURL: testProviderURL,
		CachedURL:   "/image/blob/locations/1/WEBREF/v1_1.jpg",
		CreatedAt:   time.Now(),
	}))
	s := newTestServer(t, ds)

	target := "/image/proxy?url=" + url.QueryEscape(testProviderURL)
	rec := doRequest(s, http.MethodGet, target)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/image/blob/locations/1/WEBREF/v1_1.jpg", rec.Header().Get("Location"))
	assert.Equal(t, imagepipeline.CacheStatusHit, rec.Header().Get(imagepipeline.CacheStatusHeader))
}

func TestImageStats(t *testing.T) {
	ds := newMemDS()
	require.NoError(t, ds.SaveCachedURL(&datastore.URLCacheMapping{
		CacheKey: "gphoto:a", CachedURL: "u", CreatedAt: time.Now(),
	}))
	require.NoError(t, ds.SaveCachedURL(&datastore.URLCacheMapping{
		CacheKey: "gphoto:b", CachedURL: "u", CreatedAt: time.Now().Add(-45 * 24 * time.Hour),
	}))
	s := newTestServer(t, ds)

	rec := doRequest(s, http.MethodGet, "/image/stats")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(1), body["expired"])
	assert.Equal(t, float64(1), body["valid"])
}

func TestImageStats_StoreFailure(t *testing.T) {
	ds := newMemDS()
	ds.statsErr = assert.AnError
	s := newTestServer(t, ds)

	rec := doRequest(s, http.MethodGet, "/image/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestImageCleanup(t *testing.T) {
	ds := newMemDS()
	require.NoError(t, ds.SaveCachedURL(&datastore.URLCacheMapping{
		CacheKey: "gphoto:old", CachedURL: "u", CreatedAt: time.Now().Add(-45 * 24 * time.Hour),
	}))
	s := newTestServer(t, ds)

	rec := doRequest(s, http.MethodPost, "/image/cleanup")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["cleanedCount"])
}

func TestRefreshLocation_InvalidID(t *testing.T) {
	s := newTestServer(t, newMemDS())

	rec := doRequest(s, http.MethodPost, "/image/refresh-location?locationId=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/image/refresh-location")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshLocation_NoProviderRefUsesDefault(t *testing.T) {
	ds := newMemDS()
	ds.locations[7] = &datastore.Location{ID: 7, Name: "trailhead"}
	s := newTestServer(t, ds)

	rec := doRequest(s, http.MethodPost, "/image/refresh-location?locationId=7")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, testPlaceholderURL, ds.locations[7].ThumbnailURL)
}

func TestRefreshAll_EmptyDatabase(t *testing.T) {
	s := newTestServer(t, newMemDS())

	rec := doRequest(s, http.MethodPost, "/image/refresh-all")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["total"])
}

func TestRefreshAll_StoreFailureReportsError(t *testing.T) {
	ds := newMemDS()
	ds.listErr = assert.AnError
	s := newTestServer(t, ds)

	rec := doRequest(s, http.MethodPost, "/image/refresh-all")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"], "a persistence failure must not look like an empty run")
}

func TestBatchUpdate_InvalidBatchSize(t *testing.T) {
	s := newTestServer(t, newMemDS())

	rec := doRequest(s, http.MethodPost, "/image/batch-update?batch_size=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/image/batch-update?batch_size=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchUpdate_UsesRefreshStaleWindow(t *testing.T) {
	ds := newMemDS()
	ds.locations[1] = &datastore.Location{
		ID:           1,
		ProviderRef:  "ChIJstale",
		ThumbnailURL: "/image/blob/locations/1/x/v1_1.jpg",
		UpdatedAt:    time.Now().Add(-2 * 24 * time.Hour),
	}
	s := newTestServer(t, ds)
	s.Settings.Refresh.StaleDays = 1

	rec := doRequest(s, http.MethodPost, "/image/batch-update")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, float64(1), body["total"],
		"a thumbnail older than the refresh stale window must be selected even within the mapping expiry window")
}

func TestImageVersions(t *testing.T) {
	ds := newMemDS()
	require.NoError(t, ds.SaveImageVersion(&datastore.ImageVersion{LocationID: 3, Version: 1, URL: "/image/blob/a"}))
	require.NoError(t, ds.SaveImageVersion(&datastore.ImageVersion{LocationID: 3, Version: 2, URL: "/image/blob/b"}))
	s := newTestServer(t, ds)

	rec := doRequest(s, http.MethodGet, "/image/versions?location_id=3")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	versions, ok := body["versions"].([]any)
	require.True(t, ok)
	assert.Len(t, versions, 2)
}

func TestImageVersions_InvalidID(t *testing.T) {
	s := newTestServer(t, newMemDS())

	rec := doRequest(s, http.MethodGet, "/image/versions?location_id=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeBlob(t *testing.T) {
	ds := newMemDS()
	ds.locations[1] = &datastore.Location{ID: 1}
	s := newTestServer(t, ds)

	stored, err := s.BlobManager.StoreImage(context.Background(), 1, "WEBREF", []byte("jpeg bytes"), "image/jpeg", 1)
	require.NoError(t, err)

	rec := doRequest(s, http.MethodGet, "/image/blob/"+stored.Key)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg bytes", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Cache-Control"))
}

func TestServeBlob_NotFound(t *testing.T) {
	s := newTestServer(t, newMemDS())

	rec := doRequest(s, http.MethodGet, "/image/blob/locations/1/none/v1_1.jpg")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, newMemDS())

	rec := doRequest(s, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "image_pipeline")
}
