// Caching decorator for [Enricher]
package services

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
)

// EnrichmentCache stores lookup results keyed by normalized artist|title.
type EnrichmentCache interface {
	GetMatch(ctx context.Context, key string) (*models.CachedMatch, error) // GetMatch returns nil, nil when nothing is cached.
	PutMatch(ctx context.Context, entry models.CachedMatch) error
}

// CachedEnricher wraps an [Enricher] with an [EnrichmentCache].
//
// Hits are reused indefinitely; misses are retried once they are older than missTTL.
// Lookup errors are never cached.
type CachedEnricher struct {
	inner   Enricher
	cache   EnrichmentCache
	missTTL time.Duration
	logger  *log.Logger
	now     func() time.Time
}

// NewCachedEnricher creates a caching enricher.
func NewCachedEnricher(inner Enricher, cache EnrichmentCache, missTTL time.Duration, logger *log.Logger) *CachedEnricher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CachedEnricher{
		inner:   inner,
		cache:   cache,
		missTTL: missTTL,
		logger:  shared.WithLogger(logger, "component", "enrichment_cache"),
		now:     time.Now,
	}
}

func (c *CachedEnricher) Lookup(ctx context.Context, artist, title string) (*models.Match, error) {
	key := shared.NormalizeTrackKey(artist, title)

	entry, err := c.cache.GetMatch(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	} else if entry != nil {
		if entry.Match != nil {
			return entry.Match, nil
		}
		if c.now().Sub(entry.FetchedAt) < c.missTTL {
			return nil, nil
		}
	}

	match, err := c.inner.Lookup(ctx, artist, title)
	if err != nil {
		return nil, err
	}

	if err := c.cache.PutMatch(ctx, models.CachedMatch{Key: key, Match: match, FetchedAt: c.now()}); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return match, nil
}
