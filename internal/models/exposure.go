package models

import "context"

// ExposureState is a snapshot of what has already been surfaced.
type ExposureState struct {
	SeenContainers   map[string]struct{}
	ReferencedTracks map[TrackKey]struct{}
	StackHistory     []Stack // newest first
}

// ExposureStore persists exposure state between builds.
//
// CommitStack and DeleteStack must apply all of their changes atomically: no reader may observe history without the matching reference set.
type ExposureStore interface {
	SeenContainers(ctx context.Context) (map[string]struct{}, error)
	ReferencedTracks(ctx context.Context) (map[TrackKey]struct{}, error)
	StackHistory(ctx context.Context) ([]Stack, error)    // StackHistory returns at most [MaxStackHistory] stacks, newest first.
	Stack(ctx context.Context, id string) (*Stack, error) // Stack returns shared.ErrStackNotFound for unknown ids.

	// CommitStack appends stack to history and unions the new ids and keys into the seen and referenced sets.
	CommitStack(ctx context.Context, stack *Stack, newlySeen []string, newlyReferenced []TrackKey) error
	// DeleteStack removes a stack and sweeps the referenced set. Unknown ids report false with no error.
	DeleteStack(ctx context.Context, id string) (bool, error)
	ClearAll(ctx context.Context) error
}

// KeySet builds a set from keys.
func KeySet(keys ...TrackKey) map[TrackKey]struct{} {
	set := make(map[TrackKey]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// IDSet builds a set from container ids.
func IDSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
