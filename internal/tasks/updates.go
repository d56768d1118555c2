package tasks

import (
	"fmt"

	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Snapshot Phase = iota
	Resolve
	Collect
	Enrich
	Assemble
	Commit
	Export
)

func (p Phase) String() string {
	switch p {
	case Snapshot:
		return "snapshot"
	case Resolve:
		return "resolve"
	case Collect:
		return "collect"
	case Enrich:
		return "enrich"
	case Assemble:
		return "assemble"
	case Commit:
		return "commit"
	case Export:
		return "export"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func snapshotUpdate(seen, referenced int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Snapshot,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded exposure state (%d seen, %d referenced)", seen, referenced),
	}
}

func resolveUpdate(seeds int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    0,
		Total:   seeds,
		Message: fmt.Sprintf("Searching sources for %d %s...", seeds, shared.Pluralize(seeds, "seed")),
	}
}

func resolvedUpdate(containers []models.Container) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    len(containers),
		Total:   len(containers),
		Message: fmt.Sprintf("Found %d new %s", len(containers), shared.Pluralize(len(containers), "episode")),
		Data:    containers,
	}
}

func collectUpdate(containers int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Collect,
		Step:    0,
		Total:   containers,
		Message: "Fetching tracklists...",
	}
}

func collectedUpdate(tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Collect,
		Step:    tracks,
		Total:   tracks,
		Message: fmt.Sprintf("Collected %d unheard %s", tracks, shared.Pluralize(tracks, "track")),
	}
}

func enrichUpdate(step, total int, tr *models.Track) ProgressUpdate {
	if tr == nil {
		return ProgressUpdate{
			Phase:   Enrich,
			Step:    step,
			Total:   total,
			Message: "Matching tracks on Spotify...",
		}
	}
	return ProgressUpdate{
		Phase:   Enrich,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, tr.Artist, tr.Title),
	}
}

func assembledUpdate(stack *models.Stack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Assemble,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Assembled %s (%d tracks)", stack.Name, len(stack.Tracks)),
		Data:    stack,
	}
}

func commitUpdate(stack *models.Stack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Commit,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saved stack %s", stack.ID),
	}
}

func exportingUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
