// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"time"

	"github.com/jtoivane/retkikartta/internal/conf"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// operations the image pipeline and its collaborators need.
type Interface interface {
	Open() error
	Close() error

	// URL cache mappings
	GetCachedURL(cacheKey string) (*URLCacheMapping, error)
	SaveCachedURL(mapping *URLCacheMapping) error
	DeleteExpiredCachedURLs(olderThan time.Time) (int64, error)
	CachedURLStats(expiryCutoff time.Time) (MappingStats, error)

	// Failure ledger
	RecordFailedImage(imageURL, errorMessage string) error
	GetFailedImage(imageURL string) (*FailedImage, error)

	// Image versions
	SaveImageVersion(version *ImageVersion) error
	ListImageVersions(locationID uint) ([]ImageVersion, error)

	// Download history
	SaveImageDownload(record *ImageDownload) error

	// Locations (pointer updates only; entity owned by location management)
	GetLocation(id uint) (Location, error)
	GetAllLocations() ([]Location, error)
	LocationsNeedingImage(staleBefore time.Time, limit int) ([]Location, error)
	UpdateLocationThumbnail(locationID uint, thumbnailURL string) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&Location{},
		&URLCacheMapping{},
		&ImageVersion{},
		&ImageDownload{},
		&FailedImage{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		getLogger().Debug("Database connection initialized",
			"type", dbType,
			"connection", connectionInfo)
	}

	return nil
}
