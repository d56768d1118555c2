package tasks

import (
	"context"
	"sync/atomic"

	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/services"
	"golang.org/x/sync/errgroup"
)

// EnrichmentPipeline attaches canonical ids to deduplicated tracks.
type EnrichmentPipeline struct {
	enricher services.Enricher
	opts     StageOpts
}

// NewEnrichmentPipeline creates a pipeline. A nil enricher makes Enrich a passthrough.
func NewEnrichmentPipeline(enricher services.Enricher, opts StageOpts) *EnrichmentPipeline {
	return &EnrichmentPipeline{enricher: enricher, opts: opts.withDefaults("enrichment")}
}

// Enrich returns a copy of tracks, same length and order, with CanonicalID and PlaybackURL set on confident matches.
//
// Misses and lookup errors leave the track as it was. There are no retries.
func (p *EnrichmentPipeline) Enrich(ctx context.Context, tracks []models.Track, progress chan<- ProgressUpdate) ([]models.Track, error) {
	out := make([]models.Track, len(tracks))
	copy(out, tracks)

	if p.enricher == nil || len(out) == 0 {
		return out, ctx.Err()
	}

	total := len(out)
	var done atomic.Int64
	sendProgress(progress, enrichUpdate(0, total, nil))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i := range out {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			p.enrichOne(ctx, &out[i])
			sendProgress(progress, enrichUpdate(int(done.Add(1)), total, &out[i]))
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *EnrichmentPipeline) enrichOne(ctx context.Context, t *models.Track) {
	callCtx, cancel := p.opts.callContext(ctx)
	defer cancel()

	match, err := p.enricher.Lookup(callCtx, t.Artist, t.Title)
	if err != nil {
		p.opts.Logger.Debug("enrichment failed", "artist", t.Artist, "title", t.Title, "error", err)
		return
	}
	if match == nil || match.CanonicalID == "" {
		return
	}
	t.CanonicalID = match.CanonicalID
	t.PlaybackURL = match.PlaybackURL
}

// Refilter runs after enrichment: two raw rows may now share a canonical id, or a canonical key may already be referenced.
func Refilter(tracks []models.Track, referenced map[models.TrackKey]struct{}) []models.Track {
	return DedupeTracks(tracks, referenced)
}

// Matched counts tracks carrying a canonical id.
func Matched(tracks []models.Track) int {
	n := 0
	for _, t := range tracks {
		if t.CanonicalID != "" {
			n++
		}
	}
	return n
}
