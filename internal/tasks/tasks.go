package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/services"
	"github.com/desertthunder/stackr/internal/shared"
)

// BuildRequest describes one stack build.
//
// SeenContainers and ReferencedTracks are unioned with the store's snapshot, letting callers exclude content the store never saw.
type BuildRequest struct {
	Seeds            []models.Seed     `json:"seeds"`
	SeenContainers   []string          `json:"seenContainers,omitempty"`
	ReferencedTracks []models.TrackKey `json:"referencedTracks,omitempty"`
	MaxPerSeed       int               `json:"maxPerSeed,omitempty"`
	DryRun           bool              `json:"dryRun,omitempty"`
}

// BuildResult contains all data from a build.
type BuildResult struct {
	Stack      *models.Stack // Assembled stack
	Mutation   Mutation      // Exposure change, applied unless DryRun
	Containers int           // Unseen containers resolved
	Collected  int           // Tracks surviving deduplication before enrichment
	Matched    int           // Tracks with a canonical id
	Committed  bool          // Whether the mutation was written
}

// ExposureStats summarizes the exposure state.
type ExposureStats struct {
	SeenContainers   int `json:"seenContainers"`
	ReferencedTracks int `json:"referencedTracks"`
	Stacks           int `json:"stacks"`
}

// EngineOpts contains the collaborators and limits for [NewStackEngine].
type EngineOpts struct {
	Sources              []services.SourceAdapter
	Enricher             services.Enricher // nil disables enrichment
	Store                models.ExposureStore
	Logger               *log.Logger
	SeedConcurrency      int
	ContainerConcurrency int
	EnrichConcurrency    int
	SourceTimeout        time.Duration
	EnrichTimeout        time.Duration
}

// StackEngine builds stacks and deletes them with reference reclamation.
type StackEngine struct {
	aggregator *Aggregator
	collector  *TrackCollector
	enrichment *EnrichmentPipeline
	assembler  *StackAssembler
	store      models.ExposureStore
	logger     *log.Logger
}

// NewStackEngine creates a new StackEngine with the provided sources, enricher and store.
func NewStackEngine(opts EngineOpts) *StackEngine {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &StackEngine{
		aggregator: NewAggregator(StageOpts{
			Concurrency: opts.SeedConcurrency,
			Timeout:     opts.SourceTimeout,
			Logger:      logger,
		}, opts.Sources...),
		collector: NewTrackCollector(StageOpts{
			Concurrency: opts.ContainerConcurrency,
			Timeout:     opts.SourceTimeout,
			Logger:      logger,
		}, opts.Sources...),
		enrichment: NewEnrichmentPipeline(opts.Enricher, StageOpts{
			Concurrency: opts.EnrichConcurrency,
			Timeout:     opts.EnrichTimeout,
			Logger:      logger,
		}),
		assembler: NewStackAssembler(),
		store:     opts.Store,
		logger:    shared.WithLogger(logger, "component", "engine"),
	}
}

// Build runs the full pipeline: validate, snapshot, resolve, collect, enrich, assemble, commit.
//
// Returns [shared.ErrInvalidSeeds] before touching the store, [shared.ErrNoNewContent] when a stage comes up empty,
// and the context's error on cancellation. Nothing is committed unless every stage succeeds.
func (e *StackEngine) Build(ctx context.Context, req BuildRequest, progress chan<- ProgressUpdate) (*BuildResult, error) {
	if err := ValidateSeeds(req.Seeds); err != nil {
		return nil, err
	}
	if e.store == nil {
		return nil, fmt.Errorf("%w: exposure store not initialized", shared.ErrServiceUnavailable)
	}

	seen, referenced, err := e.snapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, snapshotUpdate(len(seen), len(referenced)))

	sendProgress(progress, resolveUpdate(len(req.Seeds)))
	containers, err := e.aggregator.Resolve(ctx, req.Seeds, seen, req.MaxPerSeed)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, fmt.Errorf("%w: no unseen episodes or sets", shared.ErrNoNewContent)
	}
	sendProgress(progress, resolvedUpdate(containers))

	sendProgress(progress, collectUpdate(len(containers)))
	expansions, err := e.collector.Expand(ctx, containers)
	if err != nil {
		return nil, err
	}

	var raw []models.Track
	for _, exp := range expansions {
		raw = append(raw, exp.Tracks...)
	}
	tracks := DedupeTracks(raw, referenced)
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: every track has already been surfaced", shared.ErrNoNewContent)
	}
	sendProgress(progress, collectedUpdate(len(tracks)))
	collected := len(tracks)

	tracks, err = e.enrichment.Enrich(ctx, tracks, progress)
	if err != nil {
		return nil, err
	}
	tracks = Refilter(tracks, referenced)
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: every matched track has already been surfaced", shared.ErrNoNewContent)
	}

	stack := e.assembler.Assemble(req.Seeds, tracks, containers)
	mutation := e.assembler.Mutation(stack, exhausted(expansions, stack)...)
	sendProgress(progress, assembledUpdate(stack))

	result := &BuildResult{
		Stack:      stack,
		Mutation:   mutation,
		Containers: len(containers),
		Collected:  collected,
		Matched:    Matched(tracks),
	}

	if req.DryRun {
		e.logger.Info("dry run, not committing", "stack", stack.ID, "tracks", len(stack.Tracks))
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.store.CommitStack(ctx, stack, mutation.NewlySeenContainers, mutation.NewlyReferencedTracks); err != nil {
		return nil, fmt.Errorf("failed to commit stack: %w", err)
	}
	result.Committed = true
	sendProgress(progress, commitUpdate(stack))

	e.logger.Info("stack built",
		"stack", stack.ID,
		"name", stack.Name,
		"tracks", len(stack.Tracks),
		"containers", len(stack.ContainersUsed),
		"matched", result.Matched)

	return result, nil
}

// Delete removes a stack and reclaims its track references. Unknown ids report false.
func (e *StackEngine) Delete(ctx context.Context, stackID string) (bool, error) {
	if e.store == nil {
		return false, fmt.Errorf("%w: exposure store not initialized", shared.ErrServiceUnavailable)
	}
	removed, err := e.store.DeleteStack(ctx, stackID)
	if err != nil {
		return false, fmt.Errorf("failed to delete stack: %w", err)
	}
	e.logger.Info("delete stack", "stack", stackID, "removed", removed)
	return removed, nil
}

// History returns the stack history, newest first.
func (e *StackEngine) History(ctx context.Context) ([]models.Stack, error) {
	return e.store.StackHistory(ctx)
}

// Stack returns one stack by id.
func (e *StackEngine) Stack(ctx context.Context, id string) (*models.Stack, error) {
	return e.store.Stack(ctx, id)
}

// Clear resets all exposure state.
func (e *StackEngine) Clear(ctx context.Context) error {
	if err := e.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear exposure state: %w", err)
	}
	e.logger.Info("exposure state cleared")
	return nil
}

// Stats counts the exposure state.
func (e *StackEngine) Stats(ctx context.Context) (*ExposureStats, error) {
	seen, err := e.store.SeenContainers(ctx)
	if err != nil {
		return nil, err
	}
	referenced, err := e.store.ReferencedTracks(ctx)
	if err != nil {
		return nil, err
	}
	history, err := e.store.StackHistory(ctx)
	if err != nil {
		return nil, err
	}
	return &ExposureStats{SeenContainers: len(seen), ReferencedTracks: len(referenced), Stacks: len(history)}, nil
}

// ValidateSeeds rejects an empty seed list and any malformed seed.
func ValidateSeeds(seeds []models.Seed) error {
	if len(seeds) == 0 {
		return shared.ErrInvalidSeeds
	}
	for i, s := range seeds {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: seed %d: %w", shared.ErrInvalidSeeds, i+1, err)
		}
	}
	return nil
}

// snapshot reads the store once and unions in the request's own exclusions.
func (e *StackEngine) snapshot(ctx context.Context, req BuildRequest) (map[string]struct{}, map[models.TrackKey]struct{}, error) {
	storedSeen, err := e.store.SeenContainers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read seen containers: %w", err)
	}
	storedRefs, err := e.store.ReferencedTracks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read referenced tracks: %w", err)
	}

	seen := make(map[string]struct{}, len(storedSeen)+len(req.SeenContainers))
	for id := range storedSeen {
		seen[id] = struct{}{}
	}
	for _, id := range req.SeenContainers {
		seen[id] = struct{}{}
	}

	referenced := make(map[models.TrackKey]struct{}, len(storedRefs)+len(req.ReferencedTracks))
	for k := range storedRefs {
		referenced[k] = struct{}{}
	}
	for _, k := range req.ReferencedTracks {
		referenced[k] = struct{}{}
	}

	return seen, referenced, nil
}

// exhausted lists containers that expanded cleanly but contributed no track to stack.
func exhausted(expansions []Expansion, stack *models.Stack) []models.Container {
	used := make(map[string]struct{}, len(stack.ContainersUsed))
	for _, c := range stack.ContainersUsed {
		used[c.ID] = struct{}{}
	}

	var out []models.Container
	for _, exp := range expansions {
		if exp.Err != nil {
			continue
		}
		if _, ok := used[exp.Container.ID]; !ok {
			out = append(out, exp.Container)
		}
	}
	return out
}
