package tasks

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/services"
	"github.com/desertthunder/stackr/internal/shared"
	"golang.org/x/sync/errgroup"
)

// StageOpts bounds the fan-out of a pipeline stage.
type StageOpts struct {
	Concurrency int           // concurrent sub-calls, default 4
	Timeout     time.Duration // per sub-call timeout, 0 disables
	Logger      *log.Logger
}

func (o StageOpts) withDefaults(component string) StageOpts {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	o.Logger = shared.WithLogger(o.Logger, "component", component)
	return o
}

func (o StageOpts) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

// Aggregator resolves seeds to unseen containers across all registered sources.
type Aggregator struct {
	sources []services.SourceAdapter
	opts    StageOpts
}

// NewAggregator creates an Aggregator. Sources are consulted in the order given.
func NewAggregator(opts StageOpts, sources ...services.SourceAdapter) *Aggregator {
	return &Aggregator{sources: sources, opts: opts.withDefaults("aggregator")}
}

// Resolve fans out one search per seed and returns the unseen containers in seed order, deduplicated by id.
//
// A failing source contributes nothing for that seed. The only error returned is the context's.
func (a *Aggregator) Resolve(ctx context.Context, seeds []models.Seed, seen map[string]struct{}, maxPerSeed int) ([]models.Container, error) {
	if maxPerSeed <= 0 {
		maxPerSeed = models.DefaultMaxPerSeed
	}

	perSeed := make([][]models.Container, len(seeds))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, seed := range seeds {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			perSeed[i] = a.resolveSeed(ctx, seed, seen, maxPerSeed)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var containers []models.Container
	ids := make(map[string]struct{})
	for _, found := range perSeed {
		for _, c := range found {
			if _, dup := ids[c.ID]; dup {
				continue
			}
			ids[c.ID] = struct{}{}
			containers = append(containers, c)
		}
	}
	return containers, nil
}

// resolveSeed queries every source that supports seed, keeps each source's newest unseen containers up to
// min(maxPerSeed, MaxContainers), then merges them newest first and truncates the seed's result to maxPerSeed.
//
// Ties keep source registration order.
func (a *Aggregator) resolveSeed(ctx context.Context, seed models.Seed, seen map[string]struct{}, maxPerSeed int) []models.Container {
	var out []models.Container

	for _, src := range a.sources {
		if !src.Supports(seed) {
			continue
		}

		callCtx, cancel := a.opts.callContext(ctx)
		found, err := src.Search(callCtx, seed)
		cancel()
		if err != nil {
			a.opts.Logger.Warn("source unavailable",
				"source", src.Name(),
				"seed", seed.Key(),
				"error", fmt.Errorf("%w: %w", shared.ErrSourceUnavailable, err))
			continue
		}

		newestFirst(found)

		limit := maxPerSeed
		if m := src.MaxContainers(); m > 0 && m < limit {
			limit = m
		}

		taken := 0
		for _, c := range found {
			if taken == limit {
				break
			}
			if c.ID == "" {
				continue
			}
			if _, ok := seen[c.ID]; ok {
				continue
			}
			c.Source = src.Kind()
			c.SourceSeed = seed
			out = append(out, c)
			taken++
		}

		a.opts.Logger.Debug("resolved seed", "source", src.Name(), "seed", seed.Key(), "candidates", len(found), "kept", taken)
	}

	newestFirst(out)
	if len(out) > maxPerSeed {
		out = out[:maxPerSeed]
	}
	return out
}

func newestFirst(cs []models.Container) {
	slices.SortStableFunc(cs, func(x, y models.Container) int {
		return y.PublishedAt.Compare(x.PublishedAt)
	})
}
