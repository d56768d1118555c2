// package services defines the source and enrichment capabilities consumed by the stack builder
//
// NTS-style radio catalog, 1001Tracklists-style DJ sets, Spotify search
package services

import (
	"context"

	"github.com/desertthunder/stackr/internal/models"
)

// SourceAdapter finds containers (episodes, DJ sets) for a seed and expands them into tracklists.
type SourceAdapter interface {
	// Name returns a short identifier used in logs (e.g. "nts", "1001tracklists").
	Name() string

	// Kind tags the containers this adapter produces.
	Kind() models.SourceKind

	// Supports reports whether the adapter can answer the seed at all.
	Supports(seed models.Seed) bool

	// MaxContainers caps how many containers a single seed may take from this adapter.
	MaxContainers() int

	// Search returns candidate containers in the source's natural order.
	Search(ctx context.Context, seed models.Seed) ([]models.Container, error)

	// Expand fetches the tracklist of a container previously returned by Search.
	Expand(ctx context.Context, container models.Container) ([]models.RawTrack, error)
}

// Enricher looks up a canonical catalog identifier for a track.
//
// A nil match with a nil error means no confident match exists.
type Enricher interface {
	Lookup(ctx context.Context, artist, title string) (*models.Match, error)
}

// EnricherFunc adapts a function to [Enricher].
type EnricherFunc func(ctx context.Context, artist, title string) (*models.Match, error)

func (f EnricherFunc) Lookup(ctx context.Context, artist, title string) (*models.Match, error) {
	return f(ctx, artist, title)
}
