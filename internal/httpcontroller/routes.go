// httpcontroller/routes.go
package httpcontroller

import (
	"github.com/labstack/echo/v4"
)

// initRoutes initializes the routes for the server.
func (s *Server) initRoutes() {
	// Image resolution and administration endpoints.
	s.Echo.GET("/image/proxy", s.proxyImageHandler)
	s.Echo.GET("/image/stats", s.imageStatsHandler)
	s.Echo.POST("/image/cleanup", s.imageCleanupHandler)
	s.Echo.POST("/image/refresh-location", s.refreshLocationHandler)
	s.Echo.POST("/image/refresh-all", s.refreshAllHandler)
	s.Echo.POST("/image/download-all", s.downloadAllHandler)
	s.Echo.POST("/image/batch-update", s.batchUpdateHandler)
	s.Echo.GET("/image/versions", s.imageVersionsHandler)
	s.Echo.GET("/image/blob/*", s.serveBlobHandler)

	// Prometheus metrics.
	if s.Metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}
}
