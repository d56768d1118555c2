package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/stackr/internal/models"
)

// EnrichmentCacheRepository implements services.EnrichmentCache on the enrichment_cache table.
//
// A row with matched = 0 records a confirmed miss so callers can skip repeat lookups.
type EnrichmentCacheRepository struct {
	db *sql.DB
}

// NewEnrichmentCacheRepository creates a new EnrichmentCacheRepository with the given database connection
func NewEnrichmentCacheRepository(db *sql.DB) *EnrichmentCacheRepository {
	return &EnrichmentCacheRepository{db: db}
}

// GetMatch returns the cached lookup for key, or nil when nothing is cached.
func (r *EnrichmentCacheRepository) GetMatch(ctx context.Context, key string) (*models.CachedMatch, error) {
	query := `
		SELECT matched, canonical_id, playback_url, fetched_at
		FROM enrichment_cache
		WHERE lookup_key = ?
	`

	var (
		matched     bool
		canonicalID string
		playbackURL string
		fetchedAt   time.Time
	)
	err := r.db.QueryRowContext(ctx, query, key).Scan(&matched, &canonicalID, &playbackURL, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached match: %w", err)
	}

	entry := &models.CachedMatch{Key: key, FetchedAt: fetchedAt}
	if matched {
		entry.Match = &models.Match{CanonicalID: canonicalID, PlaybackURL: playbackURL}
	}
	return entry, nil
}

// PutMatch inserts or replaces the cached lookup for entry.Key.
func (r *EnrichmentCacheRepository) PutMatch(ctx context.Context, entry models.CachedMatch) error {
	query := `
		INSERT INTO enrichment_cache (lookup_key, matched, canonical_id, playback_url, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(lookup_key) DO UPDATE SET
			matched = excluded.matched,
			canonical_id = excluded.canonical_id,
			playback_url = excluded.playback_url,
			fetched_at = excluded.fetched_at
	`

	var canonicalID, playbackURL string
	if entry.Match != nil {
		canonicalID = entry.Match.CanonicalID
		playbackURL = entry.Match.PlaybackURL
	}

	_, err := r.db.ExecContext(ctx, query, entry.Key, entry.Match != nil, canonicalID, playbackURL, entry.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to cache match: %w", err)
	}
	return nil
}

// Purge deletes entries fetched before cutoff and reports how many were removed.
func (r *EnrichmentCacheRepository) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM enrichment_cache WHERE fetched_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge enrichment cache: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
