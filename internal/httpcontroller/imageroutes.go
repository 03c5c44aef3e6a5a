// imageroutes.go: handlers for the image resolution pipeline's HTTP surface.
// Serving-path failures always end in a visible image; administrative
// operations report structured JSON with success flags and partial counts.
package httpcontroller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jtoivane/retkikartta/internal/blobstore"
	"github.com/jtoivane/retkikartta/internal/errors"
	"github.com/jtoivane/retkikartta/internal/imagepipeline"
	"github.com/labstack/echo/v4"
)

// proxyImageHandler resolves a remote image URL through the pipeline and
// serves the result. GET /image/proxy?url=<encoded>
func (s *Server) proxyImageHandler(c echo.Context) error {
	targetURL := c.QueryParam("url")
	if targetURL == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "missing required query parameter: url",
		})
	}

	if s.DS == nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "persistence unavailable",
		})
	}

	requestKey := c.Request().RequestURI
	resolution := s.Resolver.Resolve(c.Request().Context(), requestKey, targetURL)

	c.Response().Header().Set(imagepipeline.CacheStatusHeader, resolution.CacheStatus)

	if resolution.RedirectURL != "" {
		return c.Redirect(resolution.StatusCode, resolution.RedirectURL)
	}
	return c.Blob(resolution.StatusCode, resolution.ContentType, resolution.Body)
}

// imageStatsHandler returns URL cache mapping statistics.
// GET /image/stats
func (s *Server) imageStatsHandler(c echo.Context) error {
	stats, err := s.MappingCache.Stats()
	if err != nil {
		s.Debug("Failed to collect mapping stats: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to collect cache statistics",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"total":   stats.Total,
		"expired": stats.Expired,
		"valid":   stats.Valid,
	})
}

// imageCleanupHandler removes expired URL cache mappings.
// POST /image/cleanup
func (s *Server) imageCleanupHandler(c echo.Context) error {
	count, err := s.MappingCache.CleanupExpired()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "cleanup failed",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"cleanedCount": count,
	})
}

// refreshLocationHandler re-resolves the thumbnail of a single location.
// POST /image/refresh-location?locationId=&googlePlaceId=
func (s *Server) refreshLocationHandler(c echo.Context) error {
	locationIDParam := c.QueryParam("locationId")
	providerRef := c.QueryParam("googlePlaceId")

	locationID, err := strconv.ParseUint(locationIDParam, 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid or missing locationId",
		})
	}

	result := s.Scheduler.RefreshOne(c.Request().Context(), uint(locationID), providerRef)
	return c.JSON(http.StatusOK, result)
}

// refreshAllHandler re-resolves the thumbnail of every location.
// POST /image/refresh-all
func (s *Server) refreshAllHandler(c echo.Context) error {
	summary, err := s.Scheduler.RefreshAll(c.Request().Context())
	if err != nil {
		s.Debug("Failed to refresh all locations: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to load locations",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"total":     summary.Total,
		"refreshed": summary.Refreshed,
		"failed":    summary.Failed,
	})
}

// downloadAllHandler downloads and durably stores an image for every location
// still missing one. POST /image/download-all
func (s *Server) downloadAllHandler(c echo.Context) error {
	// Zero stale window: every location whose pointer predates now is due.
	result := s.BlobManager.BatchUpdate(c.Request().Context(), 0, downloadAllLimit)
	return c.JSON(http.StatusOK, result)
}

// downloadAllLimit bounds a download-all run to keep a single request from
// running unbounded against the provider.
const downloadAllLimit = 1000

// batchUpdateHandler stores fresh images for a bounded batch of locations.
// POST /image/batch-update?batch_size=
func (s *Server) batchUpdateHandler(c echo.Context) error {
	batchSize := s.Settings.Refresh.BatchSize
	if param := c.QueryParam("batch_size"); param != "" {
		parsed, err := strconv.Atoi(param)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "invalid batch_size",
			})
		}
		batchSize = parsed
	}

	staleDays := s.Settings.Refresh.StaleDays
	if staleDays <= 0 {
		staleDays = 30
	}
	staleAfter := time.Duration(staleDays) * 24 * time.Hour
	result := s.BlobManager.BatchUpdate(c.Request().Context(), staleAfter, batchSize)
	return c.JSON(http.StatusOK, result)
}

// imageVersionsHandler lists stored image versions for a location, newest
// first. GET /image/versions?location_id=
func (s *Server) imageVersionsHandler(c echo.Context) error {
	locationIDParam := c.QueryParam("location_id")
	locationID, err := strconv.ParseUint(locationIDParam, 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid or missing location_id",
		})
	}

	versions, err := s.BlobManager.ListVersions(uint(locationID))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to list image versions",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"versions": versions,
	})
}

// serveBlobHandler serves image bytes from durable storage.
// GET /image/blob/<key>
func (s *Server) serveBlobHandler(c echo.Context) error {
	key := c.Param("*")
	if key == "" {
		return c.NoContent(http.StatusNotFound)
	}

	data, meta, err := s.BlobManager.Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		s.Debug("Failed to read blob %s: %v", key, err)
		return c.NoContent(http.StatusInternalServerError)
	}

	if meta.CacheControl != "" {
		c.Response().Header().Set("Cache-Control", meta.CacheControl)
	}
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.Blob(http.StatusOK, contentType, data)
}
