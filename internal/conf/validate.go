// conf/validate.go settings validation
package conf

import (
	"fmt"
	"net/url"
	"strconv"
)

// ValidateSettings checks the loaded settings for inconsistent or unusable
// values and returns an error describing the first problem found.
func ValidateSettings(settings *Settings) error {
	if settings.WebServer.Enabled {
		if _, err := strconv.Atoi(settings.WebServer.Port); err != nil {
			return fmt.Errorf("invalid webserver port %q: %w", settings.WebServer.Port, err)
		}
	}

	if settings.Places.BaseURL != "" {
		if _, err := url.Parse(settings.Places.BaseURL); err != nil {
			return fmt.Errorf("invalid places base URL %q: %w", settings.Places.BaseURL, err)
		}
	}

	if settings.ImageCache.ExpiryDays <= 0 {
		return fmt.Errorf("imagecache.expirydays must be positive, got %d", settings.ImageCache.ExpiryDays)
	}

	if settings.ImageCache.PlaceholderURL == "" {
		return fmt.Errorf("imagecache.placeholderurl must not be empty")
	}

	if settings.Refresh.Enabled {
		if settings.Refresh.BatchSize <= 0 {
			return fmt.Errorf("refresh.batchsize must be positive, got %d", settings.Refresh.BatchSize)
		}
		if settings.Refresh.IntervalHours <= 0 {
			return fmt.Errorf("refresh.intervalhours must be positive, got %d", settings.Refresh.IntervalHours)
		}
	}

	if settings.BlobStore.Enabled && settings.BlobStore.Path == "" {
		return fmt.Errorf("blobstore.path must be set when blobstore is enabled")
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no database output enabled, enable either sqlite or mysql")
	}

	return nil
}
