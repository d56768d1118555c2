package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
)

var (
	_ list.Item = stackItem{}
	_ list.Item = trackItem{}
)

// stackItem wraps [models.Stack] to implement [list.Item].
type stackItem struct {
	stack models.Stack
}

func (i stackItem) FilterValue() string { return i.stack.Name }
func (i stackItem) Title() string       { return i.stack.Name }
func (i stackItem) Description() string {
	n := len(i.stack.Tracks)
	return fmt.Sprintf("%d %s • %s", n, shared.Pluralize(n, "track"), i.stack.CreatedAt.Local().Format("Jan 2 2006 15:04"))
}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track     models.Track
	container string
}

func (i trackItem) FilterValue() string { return i.track.Artist + " " + i.track.Title }
func (i trackItem) Title() string {
	if i.track.CanonicalID != "" {
		return i.track.Title + " ♪"
	}
	return i.track.Title
}
func (i trackItem) Description() string {
	parts := []string{i.track.Artist}
	if i.container != "" {
		parts = append(parts, i.container)
	}
	return strings.Join(parts, " • ")
}

func stackItems(stacks []models.Stack) []list.Item {
	items := make([]list.Item, len(stacks))
	for i, s := range stacks {
		items[i] = stackItem{stack: s}
	}
	return items
}

func trackItems(stack models.Stack) []list.Item {
	titles := make(map[string]string, len(stack.ContainersUsed))
	for _, c := range stack.ContainersUsed {
		titles[c.ID] = c.Title
	}

	items := make([]list.Item, len(stack.Tracks))
	for i, t := range stack.Tracks {
		items[i] = trackItem{track: t, container: titles[t.ContainerID]}
	}
	return items
}
