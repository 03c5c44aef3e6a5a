package imagepipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jtoivane/retkikartta/internal/datastore"
)

// mockStore is an in-memory datastore.Interface for pipeline tests.
type mockStore struct {
	mu        sync.Mutex
	mappings  map[string]*datastore.URLCacheMapping
	failures  map[string]*datastore.FailedImage
	versions  map[uint][]datastore.ImageVersion
	downloads []datastore.ImageDownload
	locations map[uint]*datastore.Location

	lookupErr error
	saveErr   error
	listErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		mappings:  make(map[string]*datastore.URLCacheMapping),
		failures:  make(map[string]*datastore.FailedImage),
		versions:  make(map[uint][]datastore.ImageVersion),
		locations: make(map[uint]*datastore.Location),
	}
}

func (m *mockStore) Open() error  { return nil }
func (m *mockStore) Close() error { return nil }

func (m *mockStore) GetCachedURL(cacheKey string) (*datastore.URLCacheMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	mapping, found := m.mappings[cacheKey]
	if !found {
		return nil, nil
	}
	copied := *mapping
	return &copied, nil
}

func (m *mockStore) SaveCachedURL(mapping *datastore.URLCacheMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *mapping
	m.mappings[mapping.CacheKey] = &copied
	return nil
}

func (m *mockStore) DeleteExpiredCachedURLs(olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for key, mapping := range m.mappings {
		if mapping.CreatedAt.Before(olderThan) {
			delete(m.mappings, key)
			removed++
		}
	}
	return removed, nil
}

func (m *mockStore) CachedURLStats(expiryCutoff time.Time) (datastore.MappingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func (m *mockStore) RecordFailedImage(imageURL, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, found := m.failures[imageURL]; found {
		record.ErrorMessage = errorMessage
		record.FailedAt = time.Now()
		record.RetryCount++
		return nil
	}
	m.failures[imageURL] = &datastore.FailedImage{
		ImageURL:     imageURL,
		ErrorMessage: errorMessage,
		FailedAt:     time.Now(),
		RetryCount:   1,
	}
	return nil
}

func (m *mockStore) GetFailedImage(imageURL string) (*datastore.FailedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, found := m.failures[imageURL]
	if !found {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (m *mockStore) SaveImageVersion(version *datastore.ImageVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[version.LocationID] = append(
		[]datastore.ImageVersion{*version}, m.versions[version.LocationID]...)
	return nil
}

func (m *mockStore) ListImageVersions(locationID uint) ([]datastore.ImageVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]datastore.ImageVersion(nil), m.versions[locationID]...), nil
}

func (m *mockStore) SaveImageDownload(record *datastore.ImageDownload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, *record)
	return nil
}

func (m *mockStore) GetLocation(id uint) (datastore.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	location, found := m.locations[id]
	if !found {
		return datastore.Location{}, fmt.Errorf("location %d not found", id)
	}
	return *location, nil
}

func (m *mockStore) GetAllLocations() ([]datastore.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	locations := make([]datastore.Location, 0, len(m.locations))
	for _, location := range m.locations {
		locations = append(locations, *location)
	}
	return locations, nil
}

func (m *mockStore) LocationsNeedingImage(staleBefore time.Time, limit int) ([]datastore.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func (m *mockStore) UpdateLocationThumbnail(locationID uint, thumbnailURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	location, found := m.locations[locationID]
	if !found {
		return fmt.Errorf("location %d not found", locationID)
	}
	location.ThumbnailURL = thumbnailURL
	location.UpdatedAt = time.Now()
	return nil
}

// thumbnailOf reads a location's current thumbnail pointer.
func (m *mockStore) thumbnailOf(locationID uint) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if location, found := m.locations[locationID]; found {
		return location.ThumbnailURL
	}
	return ""
}

// mockPhotoLister serves canned photo URLs per provider reference.
type mockPhotoLister struct {
	photos map[string][]string
	errs   map[string]error
}

func (m *mockPhotoLister) PhotoURLs(_ context.Context, providerRef string) ([]string, error) {
	if err := m.errs[providerRef]; err != nil {
		return nil, err
	}
	return m.photos[providerRef], nil
}
