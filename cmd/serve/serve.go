// Package serve implements the serve command: it wires the image pipeline
// together and runs the HTTP server until interrupted.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jtoivane/retkikartta/internal/blobstore"
	"github.com/jtoivane/retkikartta/internal/conf"
	"github.com/jtoivane/retkikartta/internal/datastore"
	"github.com/jtoivane/retkikartta/internal/httpcontroller"
	"github.com/jtoivane/retkikartta/internal/imagepipeline"
	"github.com/jtoivane/retkikartta/internal/logging"
	"github.com/jtoivane/retkikartta/internal/observability"
	"github.com/jtoivane/retkikartta/internal/places"
	"github.com/spf13/cobra"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}
}

func runServer(settings *conf.Settings) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database output enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logging.Error("Failed to close database", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	placesClient, err := places.NewClient(settings)
	if err != nil {
		return fmt.Errorf("failed to create places client: %w", err)
	}
	defer placesClient.Close()

	var store blobstore.Store
	if settings.BlobStore.Enabled {
		diskStore, err := blobstore.NewDiskStore(settings.BlobStore.Path)
		if err != nil {
			return fmt.Errorf("failed to create blob store: %w", err)
		}
		store = diskStore
	} else {
		store = blobstore.NewNullStore()
	}

	guard := imagepipeline.NewFetchGuard(ds, metrics.ImagePipeline)
	mappings := imagepipeline.NewMappingCache(ds,
		time.Duration(settings.ImageCache.ExpiryDays)*24*time.Hour,
		metrics.ImagePipeline)
	edge := imagepipeline.NewEdgeCache(
		time.Duration(settings.ImageCache.EdgeTTLMinutes) * time.Minute)
	resolver := imagepipeline.NewResolver(edge, mappings, guard,
		settings.ImageCache.PlaceholderURL, metrics.ImagePipeline)

	blobs := blobstore.NewManager(store, ds, placesClient, guard, settings,
		placesClient.PhotoSourceURL)
	defer blobs.Close()

	scheduler := imagepipeline.NewScheduler(ds, placesClient, guard, blobs,
		mappings, settings)
	if settings.Refresh.Enabled {
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := httpcontroller.New(settings, ds, resolver, mappings, scheduler,
		blobs, metrics)
	server.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", "error", err)
	}
	imagepipeline.CloseLogger()

	return nil
}
