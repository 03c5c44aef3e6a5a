// Package cleanup implements the cleanup command: one-shot removal of
// expired URL cache mappings.
package cleanup

import (
	"fmt"
	"time"

	"github.com/jtoivane/retkikartta/internal/conf"
	"github.com/jtoivane/retkikartta/internal/datastore"
	"github.com/jtoivane/retkikartta/internal/imagepipeline"
	"github.com/spf13/cobra"
)

// Command creates the cleanup command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired URL cache mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(settings)
		},
	}
}

func runCleanup(settings *conf.Settings) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database output enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = ds.Close() }()

	mappings := imagepipeline.NewMappingCache(ds,
		time.Duration(settings.ImageCache.ExpiryDays)*24*time.Hour, nil)

	count, err := mappings.CleanupExpired()
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Printf("Removed %d expired cache mappings\n", count)
	return nil
}
