// internal/httpcontroller/server.go
package httpcontroller

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/jtoivane/retkikartta/internal/blobstore"
	"github.com/jtoivane/retkikartta/internal/conf"
	"github.com/jtoivane/retkikartta/internal/datastore"
	"github.com/jtoivane/retkikartta/internal/imagepipeline"
	"github.com/jtoivane/retkikartta/internal/logging"
	"github.com/jtoivane/retkikartta/internal/observability"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server encapsulates the Echo server and its collaborators.
type Server struct {
	Echo         *echo.Echo
	DS           datastore.Interface
	Settings     *conf.Settings
	Resolver     *imagepipeline.Resolver
	MappingCache *imagepipeline.MappingCache
	Scheduler    *imagepipeline.Scheduler
	BlobManager  *blobstore.Manager
	Metrics      *observability.Metrics

	webLogger      *slog.Logger
	webLoggerClose func() error
}

// New initializes a new HTTP server with the given collaborators.
func New(settings *conf.Settings, ds datastore.Interface, resolver *imagepipeline.Resolver, mappings *imagepipeline.MappingCache, scheduler *imagepipeline.Scheduler, blobs *blobstore.Manager, metrics *observability.Metrics) *Server {
	s := &Server{
		Echo:         echo.New(),
		DS:           ds,
		Settings:     settings,
		Resolver:     resolver,
		MappingCache: mappings,
		Scheduler:    scheduler,
		BlobManager:  blobs,
		Metrics:      metrics,
	}

	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()

	s.initializeServer()
	return s
}

// initializeServer configures and initializes the server.
func (s *Server) initializeServer() {
	s.Echo.HideBanner = true
	s.initLogger()
	s.configureMiddleware()
	s.initRoutes()
}

// initLogger sets up the web request file logger.
func (s *Server) initLogger() {
	var err error
	logFilePath := filepath.Join("logs", "web.log")
	levelVar := new(slog.LevelVar)
	if s.Settings.WebServer.Debug {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	s.webLogger, s.webLoggerClose, err = logging.NewFileLogger(logFilePath, "web", levelVar)
	if err != nil {
		log.Printf("Failed to initialize web file logger at %s: %v", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: levelVar})
		s.webLogger = slog.New(fbHandler).With("service", "web")
		s.webLoggerClose = func() error { return nil }
	}
}

// configureMiddleware sets up the shared middleware stack.
func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 6,
		Skipper: func(c echo.Context) bool {
			// Image bytes are already compressed.
			return c.Path() == "/image/proxy" || c.Path() == "/image/blob/*"
		},
	}))

	if s.Settings.WebServer.Debug {
		s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogURI:    true,
			LogStatus: true,
			LogMethod: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				s.webLogger.Debug("Request",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status)
				return nil
			},
		}))
	}
}

// Start begins listening and serving HTTP requests.
func (s *Server) Start() {
	errChan := make(chan error)

	go func() {
		if err := s.Echo.Start(":" + s.Settings.WebServer.Port); err != nil {
			errChan <- err
		}
	}()

	go handleServerError(errChan)

	fmt.Printf("HTTP server started on port %s\n", s.Settings.WebServer.Port)
}

// Shutdown gracefully stops the server and closes its loggers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.webLoggerClose != nil {
		if err := s.webLoggerClose(); err != nil {
			log.Printf("Error closing web logger: %v", err)
		}
	}
	return s.Echo.Shutdown(ctx)
}

// handleServerError listens for server errors and logs them.
func handleServerError(errChan chan error) {
	for err := range errChan {
		logging.Error("HTTP server error", "error", err)
	}
}

// Debug logs a message when web server debug mode is enabled.
func (s *Server) Debug(format string, v ...any) {
	if s.Settings.WebServer.Debug {
		if len(v) == 0 {
			s.webLogger.Debug(format)
		} else {
			s.webLogger.Debug(fmt.Sprintf(format, v...))
		}
	}
}
