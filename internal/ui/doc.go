// Package ui implements an interactive terminal browser for stack history using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow:
//  1. [StackListView] : Browse past stacks, newest first, with exposure counts in the title
//  2. [TrackListView] : Inspect a stack's tracks and the episodes they came from
//  3. [ConfirmView] : Confirm deleting a stack, which reclaims its tracks
//  4. [ResultView] : Report the outcome of a deletion
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the [Msg] union type.
// All store access happens inside tea.Cmd closures so the Update loop never blocks.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, d, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
