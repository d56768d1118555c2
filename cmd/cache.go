package main

import (
	"context"
	"time"

	"github.com/desertthunder/stackr/internal/repositories"
	"github.com/desertthunder/stackr/internal/shared"
	"github.com/urfave/cli/v3"
)

// CachePurge deletes enrichment lookups fetched before the cutoff.
//
// Purged hits are looked up again on the next build that meets them.
func (r *Runner) CachePurge(ctx context.Context, cmd *cli.Command) error {
	age := cmd.Duration("older-than")
	if age <= 0 {
		age = shared.Duration(r.config.Enrichment.MissTTL, 7*24*time.Hour)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}

	cache := repositories.NewEnrichmentCacheRepository(db)
	removed, err := cache.Purge(ctx, time.Now().Add(-age))
	if err != nil {
		return err
	}

	r.logger.Info("enrichment cache purged", "removed", removed, "older_than", age)
	return r.writePlain("✓ Removed %d cached %s older than %s\n", removed, shared.Pluralize(int(removed), "lookup"), age)
}
