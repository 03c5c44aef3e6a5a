// scheduler.go: batch refresh of location thumbnails. Runs sequentially over
// the batch to respect the upstream provider's implicit rate limits; per-item
// failures are counted, never fatal to the run.
package imagepipeline

import (
	"context"
	"time"

	"github.com/jtoivane/retkikartta/internal/blobstore"
	"github.com/jtoivane/retkikartta/internal/conf"
	"github.com/jtoivane/retkikartta/internal/datastore"
)

// RefreshResult is the outcome of refreshing a single location, with a
// human-readable message for interactive callers.
type RefreshResult struct {
	Success     bool   `json:"success"`
	NewImageURL string `json:"newImageUrl,omitempty"`
	Message     string `json:"message,omitempty"`
}

// RefreshSummary aggregates a full refresh run.
type RefreshSummary struct {
	Total     int `json:"total"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// Scheduler iterates locations and re-resolves their thumbnail images.
type Scheduler struct {
	ds             datastore.Interface
	photos         blobstore.PhotoLister
	guard          *FetchGuard
	blobs          *blobstore.Manager
	mappings       *MappingCache
	placeholderURL string
	interval       time.Duration
	batchSize      int
	delay          time.Duration
	staleAfter     time.Duration
	quit           chan struct{}
}

// NewScheduler creates a batch refresh scheduler from settings.
func NewScheduler(ds datastore.Interface, photos blobstore.PhotoLister, guard *FetchGuard, blobs *blobstore.Manager, mappings *MappingCache, settings *conf.Settings) *Scheduler {
	interval := time.Duration(settings.Refresh.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	batchSize := settings.Refresh.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	staleDays := settings.Refresh.StaleDays
	if staleDays <= 0 {
		staleDays = 30
	}

	return &Scheduler{
		ds:             ds,
		photos:         photos,
		guard:          guard,
		blobs:          blobs,
		mappings:       mappings,
		placeholderURL: settings.ImageCache.PlaceholderURL,
		interval:       interval,
		batchSize:      batchSize,
		delay:          time.Duration(settings.Refresh.DelayMs) * time.Millisecond,
		staleAfter:     time.Duration(staleDays) * 24 * time.Hour,
		quit:           make(chan struct{}),
	}
}

// Start launches the background refresh loop. The loop runs an immediate
// batch update and then ticks on the configured interval until Stop.
func (s *Scheduler) Start() {
	logger.Info("Starting background refresh loop",
		"interval", s.interval,
		"batch_size", s.batchSize)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.refreshStale()

		for {
			select {
			case <-s.quit:
				logger.Info("Stopping background refresh loop")
				return
			case <-ticker.C:
				s.refreshStale()
			}
		}
	}()
}

// Stop terminates the background refresh loop.
func (s *Scheduler) Stop() {
	close(s.quit)
}

// refreshStale runs one bounded batch update over stale locations.
func (s *Scheduler) refreshStale() {
	result := s.blobs.BatchUpdate(context.Background(), s.staleAfter, s.batchSize)
	if result.Total > 0 {
		logger.Info("Stale thumbnail refresh batch completed",
			"total", result.Total,
			"success", result.Success,
			"failed", result.Failed)
	}
}

// RefreshAll re-resolves the thumbnail of every location. Locations without a
// provider reference get the default image directly. Per-item failures are
// caught, logged and counted without aborting the run; only a failure to load
// the location list is returned as an error.
func (s *Scheduler) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	var summary RefreshSummary

	locations, err := s.ds.GetAllLocations()
	if err != nil {
		logger.Error("Failed to load locations for refresh", "error", err)
		return summary, err
	}
	summary.Total = len(locations)

	for i := range locations {
		result := s.RefreshOne(ctx, locations[i].ID, locations[i].ProviderRef)
		if result.Success {
			summary.Refreshed++
		} else {
			summary.Failed++
		}

		if s.delay > 0 && i < len(locations)-1 {
			select {
			case <-ctx.Done():
				return summary, nil
			case <-time.After(s.delay):
			}
		}
	}

	logger.Info("Refresh all completed",
		"total", summary.Total,
		"refreshed", summary.Refreshed,
		"failed", summary.Failed)

	return summary, nil
}

// RefreshOne re-resolves the thumbnail of a single location. On any failure
// the pointer falls back to the default image so the location always renders.
func (s *Scheduler) RefreshOne(ctx context.Context, locationID uint, providerRef string) RefreshResult {
	if providerRef == "" {
		// No reference to resolve; the default image is the intended outcome.
		result := s.fallbackToDefault(locationID, "no provider reference, using default image")
		result.Success = true
		return result
	}

	photoURLs, err := s.photos.PhotoURLs(ctx, providerRef)
	if err != nil {
		logger.Warn("Failed to list photos for refresh",
			"location_id", locationID,
			"error", err)
		return s.fallbackToDefault(locationID, "failed to fetch photo list")
	}
	if len(photoURLs) == 0 {
		return s.fallbackToDefault(locationID, "location has no photos")
	}

	photoURL := photoURLs[0]
	result := s.guard.Fetch(ctx, photoURL)
	if !result.OK {
		logger.Warn("Origin fetch failed during refresh",
			"location_id", locationID,
			"reason", result.Reason)
		return s.fallbackToDefault(locationID, "image fetch failed: "+result.Reason)
	}

	stored, err := s.blobs.StoreImage(ctx, locationID, providerRef, result.Body, result.ContentType, 0)
	if err != nil {
		logger.Warn("Failed to store refreshed image",
			"location_id", locationID,
			"error", err)
		return s.fallbackToDefault(locationID, "failed to store image")
	}

	s.mappings.Store(photoURL, photoURL)

	return RefreshResult{
		Success:     true,
		NewImageURL: stored.URL,
		Message:     "image refreshed",
	}
}

// fallbackToDefault points the location at the placeholder image. The write
// itself is best-effort.
func (s *Scheduler) fallbackToDefault(locationID uint, message string) RefreshResult {
	if err := s.ds.UpdateLocationThumbnail(locationID, s.placeholderURL); err != nil {
		logger.Error("Failed to set placeholder thumbnail",
			"location_id", locationID,
			"error", err)
	}
	return RefreshResult{
		Success:     false,
		NewImageURL: s.placeholderURL,
		Message:     message,
	}
}
