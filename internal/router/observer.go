package router

import (
	"context"
	"errors"
	"time"

	"github.com/corleone113/waypoint/internal/route"
)

// Trigger is what started a navigation.
type Trigger string

const (
	TriggerInit    Trigger = "init"
	TriggerPush    Trigger = "push"
	TriggerReplace Trigger = "replace"
	TriggerPop     Trigger = "pop"
	TriggerReload  Trigger = "reload"
)

// Outcome is how a navigation ended.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeDuplicated Outcome = "duplicated"
	OutcomeAborted    Outcome = "aborted"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeRedirected Outcome = "redirected"
	OutcomeFailed     Outcome = "failed"
)

// OutcomeOf maps a navigation result to its Outcome.
func OutcomeOf(err error) Outcome {
	var ne *NavigationError
	switch {
	case err == nil:
		return OutcomeCommitted
	case !errors.As(err, &ne):
		return OutcomeFailed
	}
	switch ne.Code {
	case ErrCodeDuplicated:
		return OutcomeDuplicated
	case ErrCodeAborted:
		return OutcomeAborted
	case ErrCodeCancelled:
		return OutcomeCancelled
	default:
		return OutcomeRedirected
	}
}

// Phase names a step of the guard pipeline.
type Phase string

const (
	PhaseLeave       Phase = "leave"
	PhaseBefore      Phase = "before"
	PhaseUpdate      Phase = "update"
	PhaseBeforeEnter Phase = "beforeEnter"
	PhaseAsync       Phase = "async"
	PhaseEnter       Phase = "enter"
	PhaseResolve     Phase = "resolve"
)

// Navigation describes one navigation for observers.
type Navigation struct {
	ID      string
	Seq     int64
	Trigger Trigger
	From    *route.Route
	To      *route.Route
	Started time.Time
}

// GuardRun describes one guard invocation.
type GuardRun struct {
	Phase Phase
	// Name is the record path for record and component guards, or the
	// hook position for global hooks.
	Name    string
	Verdict route.Verdict
}

// Observer receives the lifecycle of every navigation. Implementations
// must not block.
type Observer interface {
	// NavigationStarted may return a derived context; guards of this
	// navigation run under it.
	NavigationStarted(ctx context.Context, nav Navigation) context.Context
	GuardRan(ctx context.Context, nav Navigation, run GuardRun)
	NavigationFinished(ctx context.Context, nav Navigation, outcome Outcome, err error)
}

// BaseObserver implements Observer with no-ops, for embedding.
type BaseObserver struct{}

func (BaseObserver) NavigationStarted(ctx context.Context, _ Navigation) context.Context {
	return ctx
}

func (BaseObserver) GuardRan(context.Context, Navigation, GuardRun) {}

func (BaseObserver) NavigationFinished(context.Context, Navigation, Outcome, error) {}
