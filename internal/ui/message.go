package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStacksFetched MsgKind = iota
	MsgStackDeleted
)

type stacksFetched struct {
	stacks []models.Stack
	stats  *tasks.ExposureStats
	err    error
}

type stackDeleted struct {
	stack   models.Stack
	removed bool
	err     error
}

// stacksFetchedMsg is the constructor for [MsgStacksFetched]
func stacksFetchedMsg(stacks []models.Stack, stats *tasks.ExposureStats, err error) Msg {
	return Msg{kind: MsgStacksFetched, data: stacksFetched{stacks, stats, err}}
}

// stackDeletedMsg is the constructor for [MsgStackDeleted]
func stackDeletedMsg(stack models.Stack, removed bool, err error) Msg {
	return Msg{kind: MsgStackDeleted, data: stackDeleted{stack, removed, err}}
}
