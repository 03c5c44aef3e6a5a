// imagecache.go: persistence operations for the image caching pipeline's
// owned tables: url_cache_mappings, image_versions, image_downloads and
// failed_images.
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetCachedURL retrieves a URL cache mapping by its cache key. Returns
// (nil, nil) when no mapping exists; validity is decided by the caller.
func (ds *DataStore) GetCachedURL(cacheKey string) (*URLCacheMapping, error) {
	var mapping URLCacheMapping
	err := ds.DB.Where("cache_key = ?", cacheKey).First(&mapping).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cached URL for key %s: %w", cacheKey, err)
	}
	return &mapping, nil
}

// SaveCachedURL upserts a URL cache mapping. The unique index on cache_key
// guarantees at most one live mapping per key; a conflicting insert replaces
// the URL columns and refreshes the creation timestamp.
func (ds *DataStore) SaveCachedURL(mapping *URLCacheMapping) error {
	if mapping.CacheKey == "" {
		return fmt.Errorf("cache key cannot be empty")
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}

	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"original_url", "cached_url", "created_at",
		}),
	}).Create(mapping).Error
	if err != nil {
		return fmt.Errorf("saving cached URL for key %s: %w", mapping.CacheKey, err)
	}
	return nil
}

// DeleteExpiredCachedURLs removes all mappings created before olderThan and
// returns the number of rows removed. Safe to run repeatedly and concurrently
// with reads.
func (ds *DataStore) DeleteExpiredCachedURLs(olderThan time.Time) (int64, error) {
	result := ds.DB.Where("created_at < ?", olderThan).Delete(&URLCacheMapping{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting expired cached URLs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CachedURLStats returns total, expired and valid mapping counts relative to
// the given expiry cutoff.
func (ds *DataStore) CachedURLStats(expiryCutoff time.Time) (MappingStats, error) {
	var stats MappingStats

	if err := ds.DB.Model(&URLCacheMapping{}).Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("counting cached URLs: %w", err)
	}
	if err := ds.DB.Model(&URLCacheMapping{}).
		Where("created_at < ?", expiryCutoff).
		Count(&stats.Expired).Error; err != nil {
		return stats, fmt.Errorf("counting expired cached URLs: %w", err)
	}
	stats.Valid = stats.Total - stats.Expired
	return stats, nil
}

// RecordFailedImage upserts a failure record for the given URL. The insert
// and the retry count increment are a single statement so concurrent failures
// for the same URL cannot lose updates.
func (ds *DataStore) RecordFailedImage(imageURL, errorMessage string) error {
	if imageURL == "" {
		return fmt.Errorf("image URL cannot be empty")
	}

	record := FailedImage{
		ImageURL:     imageURL,
		ErrorMessage: errorMessage,
		FailedAt:     time.Now(),
		RetryCount:   1,
	}

	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "image_url"}},
		DoUpdates: clause.Assignments(map[string]any{
			"error_message": errorMessage,
			"failed_at":     record.FailedAt,
			"retry_count":   gorm.Expr("retry_count + 1"),
		}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("recording failed image %s: %w", imageURL, err)
	}
	return nil
}

// GetFailedImage retrieves the failure record for a URL, or (nil, nil) when
// the URL has never failed.
func (ds *DataStore) GetFailedImage(imageURL string) (*FailedImage, error) {
	var record FailedImage
	err := ds.DB.Where("image_url = ?", imageURL).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting failed image %s: %w", imageURL, err)
	}
	return &record, nil
}

// SaveImageVersion inserts a new image version row. Version numbers are never
// reused for a location; the unique index rejects duplicates.
func (ds *DataStore) SaveImageVersion(version *ImageVersion) error {
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now()
	}
	if err := ds.DB.Create(version).Error; err != nil {
		return fmt.Errorf("saving image version %d for location %d: %w",
			version.Version, version.LocationID, err)
	}
	return nil
}

// ListImageVersions returns all stored versions for a location ordered by
// version descending.
func (ds *DataStore) ListImageVersions(locationID uint) ([]ImageVersion, error) {
	var versions []ImageVersion
	err := ds.DB.Where("location_id = ?", locationID).
		Order("version DESC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("listing image versions for location %d: %w", locationID, err)
	}
	return versions, nil
}

// SaveImageDownload appends a download history record.
func (ds *DataStore) SaveImageDownload(record *ImageDownload) error {
	if record.DownloadedAt.IsZero() {
		record.DownloadedAt = time.Now()
	}
	if err := ds.DB.Create(record).Error; err != nil {
		return fmt.Errorf("saving image download record: %w", err)
	}
	return nil
}

// GetLocation retrieves a location by its ID.
func (ds *DataStore) GetLocation(id uint) (Location, error) {
	var location Location
	if err := ds.DB.First(&location, id).Error; err != nil {
		return Location{}, fmt.Errorf("getting location %d: %w", id, err)
	}
	return location, nil
}

// GetAllLocations returns every location.
func (ds *DataStore) GetAllLocations() ([]Location, error) {
	var locations []Location
	if err := ds.DB.Find(&locations).Error; err != nil {
		return nil, fmt.Errorf("getting all locations: %w", err)
	}
	return locations, nil
}

// LocationsNeedingImage returns locations whose thumbnail pointer is empty or
// whose last update is older than staleBefore, oldest first, bounded by limit.
func (ds *DataStore) LocationsNeedingImage(staleBefore time.Time, limit int) ([]Location, error) {
	var locations []Location
	err := ds.DB.
		Where("thumbnail_url IS NULL OR thumbnail_url = '' OR updated_at < ?", staleBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&locations).Error
	if err != nil {
		return nil, fmt.Errorf("getting locations needing image: %w", err)
	}
	return locations, nil
}

// UpdateLocationThumbnail writes the thumbnail pointer for a location.
func (ds *DataStore) UpdateLocationThumbnail(locationID uint, thumbnailURL string) error {
	err := ds.DB.Model(&Location{}).
		Where("id = ?", locationID).
		Updates(map[string]any{
			"thumbnail_url": thumbnailURL,
			"updated_at":    time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("updating thumbnail for location %d: %w", locationID, err)
	}
	return nil
}
