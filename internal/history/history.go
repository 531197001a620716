// Package history provides the navigation backends a router persists to.
//
// Three backends share one contract:
//
//   - Memory keeps the entry stack and cursor in process.
//   - NewBrowser drives a Platform whose address bar holds the path.
//   - NewHash drives a Platform whose URL fragment holds the path.
//
// Every change of location goes through the same steps: build the target
// entry, ask the active prompt (if any) for confirmation, apply the change
// to the stack and substrate, then notify listeners. Entries carry a short
// random key; URL backends round-trip it through the platform's per-entry
// state slot so back/forward can be mapped to stack positions and a
// refused pop can be undone.
package history

import (
	"context"
	"errors"
)

// Action is the kind of location change.
type Action string

const (
	ActionPush    Action = "PUSH"
	ActionReplace Action = "REPLACE"
	ActionPop     Action = "POP"
)

// ErrBlocked is returned when a prompt refuses a transition.
var ErrBlocked = errors.New("history: transition blocked by prompt")

// Entry is one position of the history stack. Path is the full app path
// including query and hash.
type Entry struct {
	Key   string
	Path  string
	State any
}

// Listener observes committed location changes.
type Listener func(entry Entry, action Action)

// PromptResult is a prompt's answer for a pending transition.
type PromptResult struct {
	block   bool
	message string
}

// Allow lets the transition through.
func Allow() PromptResult { return PromptResult{} }

// Deny refuses the transition.
func Deny() PromptResult { return PromptResult{block: true} }

// Ask defers to the user with message.
func Ask(message string) PromptResult { return PromptResult{message: message} }

// Prompt is consulted before every transition while installed via Block.
type Prompt func(to Entry, action Action) PromptResult

// Confirmer asks the user a yes/no question.
type Confirmer func(ctx context.Context, message string) bool

// History is the contract shared by all backends.
type History interface {
	// Current returns the entry at the cursor.
	Current() Entry
	// Len returns the number of entries known to the backend.
	Len() int
	// Index returns the cursor position.
	Index() int

	// Push confirms, appends after the cursor and notifies.
	Push(ctx context.Context, path string, state any) error
	// Replace confirms, overwrites the cursor entry and notifies.
	Replace(ctx context.Context, path string, state any) error
	// Go moves the cursor by n. Out-of-range moves are no-ops.
	Go(ctx context.Context, n int) error
	// CanGo reports whether Go(n) would move the cursor.
	CanGo(n int) bool

	// Listen subscribes to committed changes.
	Listen(fn Listener) (unlisten func())
	// Block installs the single prompt.
	Block(prompt Prompt) (unblock func())

	// Confirm runs the prompt for a prospective transition without
	// changing anything.
	Confirm(ctx context.Context, to Entry, action Action) bool
	// Apply commits a push or replace without confirmation.
	Apply(action Action, path string, state any) Entry
	// Revert restores the cursor to from after a refused pop, without
	// confirmation or notification.
	Revert(from Entry)
	// Ensure makes the cursor entry show path, pushing or replacing
	// silently when it does not.
	Ensure(path string, push bool)

	// CreateHref renders path the way the substrate shows it.
	CreateHref(path string) string
}
