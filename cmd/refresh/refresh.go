// Package refresh implements the refresh command: a one-shot re-resolution
// of every location's thumbnail image.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/jtoivane/retkikartta/internal/blobstore"
	"github.com/jtoivane/retkikartta/internal/conf"
	"github.com/jtoivane/retkikartta/internal/datastore"
	"github.com/jtoivane/retkikartta/internal/imagepipeline"
	"github.com/jtoivane/retkikartta/internal/observability"
	"github.com/jtoivane/retkikartta/internal/places"
	"github.com/spf13/cobra"
)

// Command creates the refresh command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh thumbnail images for all locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(settings)
		},
	}
}

func runRefresh(settings *conf.Settings) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database output enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = ds.Close() }()

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
	blobs := blobstore.NewManager(store, ds, placesClient, guard, settings,
		placesClient.PhotoSourceURL)
	defer blobs.Close()

	scheduler := imagepipeline.NewScheduler(ds, placesClient, guard, blobs,
		mappings, settings)

	summary, err := scheduler.RefreshAll(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load locations: %w", err)
	}
	fmt.Printf("Refreshed %d of %d locations (%d failed)\n",
		summary.Refreshed, summary.Total, summary.Failed)

	return nil
}
