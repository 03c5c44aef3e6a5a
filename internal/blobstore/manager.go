// manager.go: versioned image storage on top of a Store backend, with the
// proxy-mode fallback used when no backend is configured.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jtoivane/retkikartta/internal/conf"
	"github.com/jtoivane/retkikartta/internal/datastore"
	"github.com/jtoivane/retkikartta/internal/logging"
)

// Package-level logger specific to the blobstore service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "blobstore.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "blobstore", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize blobstore file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "blobstore")
		closeLogger = func() error { return nil }
	}
}

// blobCacheControl is the long-lived caching hint attached to stored images.
const blobCacheControl = "public, max-age=31536000"

// maxKeyRefLen bounds the provider reference segment of a blob key.
const maxKeyRefLen = 40

// PhotoLister resolves a provider reference to its advertised photo URLs.
type PhotoLister interface {
	PhotoURLs(ctx context.Context, providerRef string) ([]string, error)
}

// ImageFetcher downloads and validates one remote image.
type ImageFetcher interface {
	FetchValidated(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// StoreResult describes a stored (or fallback-resolved) image. Key is empty
// in proxy fallback mode.
type StoreResult struct {
	URL         string `json:"url"`
	Key         string `json:"key,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// BatchResult aggregates the outcome of a batch update run.
type BatchResult struct {
	Total   int      `json:"total"`
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Manager coordinates durable image storage: blob writes, version rows,
// download history and thumbnail pointer updates.
type Manager struct {
	store       Store
	ds          datastore.Interface
	photos      PhotoLister
	fetcher     ImageFetcher
	publicBase  string
	photoSource func(reference string) string
}

// NewManager creates a Manager over the given backend. photoSource builds the
// provider photo URL for a reference and is used to derive proxy fallback
// URLs.
func NewManager(store Store, ds datastore.Interface, photos PhotoLister, fetcher ImageFetcher, settings *conf.Settings, photoSource func(string) string) *Manager {
	publicBase := settings.BlobStore.PublicBase
	if publicBase == "" {
		publicBase = "/image/blob"
	}
	return &Manager{
		store:       store,
		ds:          ds,
		photos:      photos,
		fetcher:     fetcher,
		publicBase:  strings.TrimRight(publicBase, "/"),
		photoSource: photoSource,
	}
}

// Available reports whether a durable backend is configured.
func (m *Manager) Available() bool {
	return m.store.Available()
}

// Get reads a stored blob by key.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, Metadata, error) {
	return m.store.Get(ctx, key)
}

// extensionForContentType maps an image content type to a file extension.
func extensionForContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "image/gif"):
		return ".gif"
	case strings.HasPrefix(contentType, "image/webp"):
		return ".webp"
	default:
		return ".img"
	}
}

// blobKey derives the versioned storage key for an image.
func blobKey(locationID uint, providerRef string, version int, contentType string) string {
	ref := providerRef
	if len(ref) > maxKeyRefLen {
		ref = ref[:maxKeyRefLen]
	}
	return fmt.Sprintf("locations/%d/%s/v%d_%d%s",
		locationID, ref, version, time.Now().Unix(), extensionForContentType(contentType))
}

// StoreImage persists image bytes under a versioned key, updates the
// location's thumbnail pointer and, when version is positive, records an
// image version row and a download history record. When no durable backend is
// configured it degrades to StoreFallback with the same return shape.
func (m *Manager) StoreImage(ctx context.Context, locationID uint, providerRef string, data []byte, contentType string, version int) (*StoreResult, error) {
	if !m.store.Available() {
		return m.StoreFallback(locationID, providerRef)
	}

	key := blobKey(locationID, providerRef, version, contentType)
	meta := Metadata{
		ContentType:  contentType,
		CacheControl: blobCacheControl,
	}

	if err := m.store.Put(ctx, key, data, meta); err != nil {
		return nil, err
	}

	publicURL := m.publicBase + "/" + key
	result := &StoreResult{
		URL:         publicURL,
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
	}

	if err := m.ds.UpdateLocationThumbnail(locationID, publicURL); err != nil {
		logger.Error("Failed to update thumbnail pointer",
			"location_id", locationID,
			"error", err)
	}

	if version > 0 {
		if err := m.ds.SaveImageVersion(&datastore.ImageVersion{
			LocationID: locationID,
			Version:    version,
			URL:        publicURL,
		}); err != nil {
			logger.Error("Failed to save image version",
				"location_id", locationID,
				"version", version,
				"error", err)
		}
	}

	if err := m.ds.SaveImageDownload(&datastore.ImageDownload{
		ProviderRef: providerRef,
		LocationID:  locationID,
		OriginalURL: m.photoSource(providerRef),
		LocalURL:    publicURL,
		FileSize:    int64(len(data)),
		ContentType: contentType,
	}); err != nil {
		logger.Error("Failed to save download history",
			"location_id", locationID,
			"error", err)
	}

	logger.Info("Stored image blob",
		"location_id", locationID,
		"key", key,
		"size", len(data),
		"version", version)

	return result, nil
}

// StoreFallback re-derives a proxy URL for the provider photo and writes only
// the thumbnail pointer. No bytes are persisted; the empty Key marks the
// degraded mode.
func (m *Manager) StoreFallback(locationID uint, providerRef string) (*StoreResult, error) {
	proxyURL := "/image/proxy?url=" + url.QueryEscape(m.photoSource(providerRef))

	if err := m.ds.UpdateLocationThumbnail(locationID, proxyURL); err != nil {
		return nil, err
	}

	logger.Debug("Stored image in proxy fallback mode",
		"location_id", locationID,
		"url", proxyURL)

	return &StoreResult{URL: proxyURL}, nil
}

// ListVersions returns the stored versions for a location, newest first.
func (m *Manager) ListVersions(locationID uint) ([]datastore.ImageVersion, error) {
	return m.ds.ListImageVersions(locationID)
}

// NeedingUpdate returns locations whose thumbnail pointer is missing or older
// than the stale window, oldest first, bounded by limit.
func (m *Manager) NeedingUpdate(staleAfter time.Duration, limit int) ([]datastore.Location, error) {
	return m.ds.LocationsNeedingImage(time.Now().Add(-staleAfter), limit)
}

// nextVersion returns the next unused version number for a location.
func (m *Manager) nextVersion(locationID uint) int {
	versions, err := m.ds.ListImageVersions(locationID)
	if err != nil || len(versions) == 0 {
		return 1
	}
	return versions[0].Version + 1
}

// BatchUpdate downloads and stores a fresh image for up to batchSize
// locations needing one. A failure on one location is recorded and the rest
// of the batch continues.
func (m *Manager) BatchUpdate(ctx context.Context, staleAfter time.Duration, batchSize int) BatchResult {
	var result BatchResult

	locations, err := m.NeedingUpdate(staleAfter, batchSize)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.Total = len(locations)

	for i := range locations {
		if err := m.updateOne(ctx, &locations[i]); err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("location %d: %v", locations[i].ID, err))
			logger.Warn("Batch update failed for location",
				"location_id", locations[i].ID,
				"error", err)
			continue
		}
		result.Success++
	}

	logger.Info("Batch update completed",
		"total", result.Total,
		"success", result.Success,
		"failed", result.Failed)

	return result
}

// updateOne downloads and stores a fresh image for a single location.
func (m *Manager) updateOne(ctx context.Context, location *datastore.Location) error {
	if location.ProviderRef == "" {
		return fmt.Errorf("location has no provider reference")
	}

	photoURLs, err := m.photos.PhotoURLs(ctx, location.ProviderRef)
	if err != nil {
		return err
	}
	if len(photoURLs) == 0 {
		return fmt.Errorf("no photos available")
	}

	data, contentType, err := m.fetcher.FetchValidated(ctx, photoURLs[0])
	if err != nil {
		return err
	}

	version := m.nextVersion(location.ID)
	_, err = m.StoreImage(ctx, location.ID, location.ProviderRef, data, contentType, version)
	return err
}

// Close releases the manager's logger resources.
func (m *Manager) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing blobstore logger: %v", err)
		}
	}
}
