package tasks

import (
	"github.com/desertthunder/stackr/internal/models"
)

// ReclaimResult is the exposure state after a stack deletion.
type ReclaimResult struct {
	History    []models.Stack
	Referenced map[models.TrackKey]struct{}
	Removed    bool
}

// Reclaim removes stackID from history and sweeps referenced with a full pass over the remaining stacks.
//
// A key survives iff it was not in the deleted stack or it still appears in another stack.
// Reference counts are never kept, so prior drift in referenced cannot accumulate.
// The inputs are not modified. An unknown id returns the state unchanged with Removed false.
func Reclaim(history []models.Stack, referenced map[models.TrackKey]struct{}, stackID string) ReclaimResult {
	idx := -1
	for i := range history {
		if history[i].ID == stackID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ReclaimResult{History: history, Referenced: referenced, Removed: false}
	}

	deletedKeys := history[idx].Keys()

	remaining := make([]models.Stack, 0, len(history)-1)
	remaining = append(remaining, history[:idx]...)
	remaining = append(remaining, history[idx+1:]...)

	remainingKeys := make(map[models.TrackKey]struct{})
	for i := range remaining {
		for k := range remaining[i].Keys() {
			remainingKeys[k] = struct{}{}
		}
	}

	swept := make(map[models.TrackKey]struct{}, len(referenced))
	for k := range referenced {
		_, deleted := deletedKeys[k]
		_, stillUsed := remainingKeys[k]
		if !deleted || stillUsed {
			swept[k] = struct{}{}
		}
	}

	return ReclaimResult{History: remaining, Referenced: swept, Removed: true}
}

// Evict reclaims the oldest stacks until history holds at most limit entries. History is newest first.
func Evict(history []models.Stack, referenced map[models.TrackKey]struct{}, limit int) ReclaimResult {
	result := ReclaimResult{History: history, Referenced: referenced}
	for limit >= 0 && len(result.History) > limit {
		oldest := result.History[len(result.History)-1]
		next := Reclaim(result.History, result.Referenced, oldest.ID)
		if !next.Removed {
			break
		}
		result.History = next.History
		result.Referenced = next.Referenced
		result.Removed = true
	}
	return result
}

// ApplyCommit returns the exposure state after committing stack: prepended to history, ids and keys unioned in,
// and the oldest stacks evicted past [models.MaxStackHistory].
func ApplyCommit(state models.ExposureState, stack *models.Stack, newlySeen []string, newlyReferenced []models.TrackKey) (models.ExposureState, []string) {
	seen := make(map[string]struct{}, len(state.SeenContainers)+len(newlySeen))
	for id := range state.SeenContainers {
		seen[id] = struct{}{}
	}
	for _, id := range newlySeen {
		seen[id] = struct{}{}
	}

	referenced := make(map[models.TrackKey]struct{}, len(state.ReferencedTracks)+len(newlyReferenced))
	for k := range state.ReferencedTracks {
		referenced[k] = struct{}{}
	}
	for _, k := range newlyReferenced {
		referenced[k] = struct{}{}
	}

	history := make([]models.Stack, 0, len(state.StackHistory)+1)
	history = append(history, *stack)
	history = append(history, state.StackHistory...)

	evicted := Evict(history, referenced, models.MaxStackHistory)

	var evictedIDs []string
	if evicted.Removed {
		kept := make(map[string]struct{}, len(evicted.History))
		for i := range evicted.History {
			kept[evicted.History[i].ID] = struct{}{}
		}
		for i := range history {
			if _, ok := kept[history[i].ID]; !ok {
				evictedIDs = append(evictedIDs, history[i].ID)
			}
		}
	}

	return models.ExposureState{
		SeenContainers:   seen,
		ReferencedTracks: evicted.Referenced,
		StackHistory:     evicted.History,
	}, evictedIDs
}
