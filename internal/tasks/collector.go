package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/services"
	"github.com/desertthunder/stackr/internal/shared"
	"golang.org/x/sync/errgroup"
)

// Expansion is the outcome of expanding one container.
type Expansion struct {
	Container models.Container
	Tracks    []models.Track
	Err       error
}

// TrackCollector expands containers into provenance-tagged tracks.
type TrackCollector struct {
	sources map[models.SourceKind]services.SourceAdapter
	opts    StageOpts
}

// NewTrackCollector creates a collector. The first source registered for a kind handles that kind's containers.
func NewTrackCollector(opts StageOpts, sources ...services.SourceAdapter) *TrackCollector {
	byKind := make(map[models.SourceKind]services.SourceAdapter, len(sources))
	for _, src := range sources {
		if _, ok := byKind[src.Kind()]; !ok {
			byKind[src.Kind()] = src
		}
	}
	return &TrackCollector{sources: byKind, opts: opts.withDefaults("collector")}
}

// Collect expands every container, then deduplicates by track key and drops referenced keys.
//
// Output order is container order, then tracklist order.
func (c *TrackCollector) Collect(ctx context.Context, containers []models.Container, referenced map[models.TrackKey]struct{}) ([]models.Track, error) {
	expansions, err := c.Expand(ctx, containers)
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	for _, exp := range expansions {
		tracks = append(tracks, exp.Tracks...)
	}
	return DedupeTracks(tracks, referenced), nil
}

// Expand fetches every container's tracklist concurrently, one [Expansion] per container in input order.
//
// A failed container carries Err and no tracks. The only error returned is the context's.
func (c *TrackCollector) Expand(ctx context.Context, containers []models.Container) ([]Expansion, error) {
	expansions := make([]Expansion, len(containers))

	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	for i, container := range containers {
		g.Go(func() error {
			expansions[i] = Expansion{Container: container}
			if ctx.Err() != nil {
				expansions[i].Err = ctx.Err()
				return nil
			}
			expansions[i].Tracks, expansions[i].Err = c.expandOne(ctx, container)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return expansions, nil
}

func (c *TrackCollector) expandOne(ctx context.Context, container models.Container) ([]models.Track, error) {
	src, ok := c.sources[container.Source]
	if !ok {
		err := fmt.Errorf("%w: no source registered for %s containers", shared.ErrSourceUnavailable, container.Source)
		c.opts.Logger.Warn("cannot expand container", "container", container.ID, "error", err)
		return nil, err
	}

	callCtx, cancel := c.opts.callContext(ctx)
	defer cancel()

	raw, err := src.Expand(callCtx, container)
	if err != nil {
		err = fmt.Errorf("%w: %w", shared.ErrSourceUnavailable, err)
		c.opts.Logger.Warn("tracklist unavailable", "source", src.Name(), "container", container.ID, "error", err)
		return nil, err
	}

	tracks := make([]models.Track, 0, len(raw))
	for i, rt := range raw {
		if rt.Blank() {
			continue
		}
		tracks = append(tracks, models.Track{
			ContainerID: container.ID,
			Artist:      rt.Artist,
			Title:       rt.Title,
			LocalUID:    models.LocalUID(container.ID, i),
			Provenance:  container.SourceSeed,
		})
	}
	return tracks, nil
}

// DedupeTracks keeps the first track for each key and drops keys already referenced, preserving order.
func DedupeTracks(tracks []models.Track, referenced map[models.TrackKey]struct{}) []models.Track {
	out := make([]models.Track, 0, len(tracks))
	keys := make(map[models.TrackKey]struct{}, len(tracks))
	for _, t := range tracks {
		k := t.Key()
		if _, dup := keys[k]; dup {
			continue
		}
		keys[k] = struct{}{}
		if _, ok := referenced[k]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}
