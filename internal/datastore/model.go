// model.go this code defines the data model for the application
package datastore

import "time"

// Location represents a tourism location. The image pipeline only reads the
// provider reference and writes the thumbnail pointer; the rest of the entity
// is owned by the location management service.
type Location struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"index:idx_locations_name"`
	Description  string `gorm:"type:text"`
	Latitude     float64
	Longitude    float64
	ProviderRef  string `gorm:"index:idx_locations_provider_ref"` // places API reference for this location
	ThumbnailURL string
	CreatedAt    time.Time
	UpdatedAt    time.Time `gorm:"index"`
}

// URLCacheMapping maps a cache key derived from a provider photo reference to
// its currently resolved URL. At most one row exists per cache key, enforced
// by upsert on the unique index.
type URLCacheMapping struct {
	ID          uint      `gorm:"primaryKey"`
	CacheKey    string    `gorm:"uniqueIndex;not null"` // deterministic key derived from the photo reference
	OriginalURL string    `gorm:"type:text"`
	CachedURL   string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"index"` // when the mapping was created or last refreshed
}

// ImageVersion records one stored version of a location's image. Version
// numbers are assigned by the caller and never reused for a location.
type ImageVersion struct {
	ID         uint   `gorm:"primaryKey"`
	LocationID uint   `gorm:"uniqueIndex:idx_image_versions_location_version;not null"`
	Version    int    `gorm:"uniqueIndex:idx_image_versions_location_version;not null"`
	URL        string `gorm:"type:text"`
	CreatedAt  time.Time
}

// ImageDownload is an append-only audit record of a successful image download.
type ImageDownload struct {
	ID           uint   `gorm:"primaryKey"`
	ProviderRef  string `gorm:"index"`
	LocationID   uint   `gorm:"index"`
	OriginalURL  string `gorm:"type:text"`
	LocalURL     string `gorm:"type:text"`
	DownloadedAt time.Time
	FileSize     int64
	ContentType  string
}

// FailedImage records failed fetch attempts per URL. The first failure
// inserts the row with RetryCount 1; subsequent failures for the same URL
// overwrite the message and timestamp and increment the count.
type FailedImage struct {
	ID           uint   `gorm:"primaryKey"`
	ImageURL     string `gorm:"uniqueIndex;not null"`
	ErrorMessage string `gorm:"type:text"`
	FailedAt     time.Time
	RetryCount   int `gorm:"default:1"`
}

// MappingStats holds counts over the URL cache mapping table.
type MappingStats struct {
	Total   int64 `json:"total"`
	Expired int64 `json:"expired"`
	Valid   int64 `json:"valid"`
}
