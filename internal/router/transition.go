package router

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/corleone113/waypoint/internal/history"
	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/route"
)

// navigation is one run of the pipeline. The router's pending field points
// at the live one; any other is stale.
type navigation struct {
	info Navigation
	// octx is the observer-derived context, still valid after cancel.
	octx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
}

type guardStep struct {
	phase Phase
	name  string
	rec   *route.Record
	view  string
	run   route.Guard
}

type enterCallback struct {
	rec  *route.Record
	view string
	fn   func(instance any)
}

// resolveQueue splits two matched chains at their first divergence.
func resolveQueue(current, next []*route.Record) (updated, deactivated, activated []*route.Record) {
	i := 0
	for ; i < max(len(current), len(next)); i++ {
		if i >= len(current) || i >= len(next) || current[i] != next[i] {
			break
		}
	}
	return next[:i], current[i:], next[i:]
}

func (r *Router) navigate(ctx context.Context, raw location.Location, trigger Trigger, popped *history.Entry) (*route.Route, error) {
	target, err := r.matcher.Match(raw, r.CurrentRoute(), nil)
	if err != nil {
		r.reportError(err)
		return nil, err
	}
	return r.transition(ctx, target, trigger, popped)
}

func (r *Router) begin(ctx context.Context, target *route.Route, trigger Trigger) (*navigation, history.Entry) {
	r.mu.Lock()
	from := r.current
	fromEntry := r.currentEntry
	r.mu.Unlock()

	info := Navigation{
		ID:      r.ids.Generate(),
		Seq:     r.clock.Next(),
		Trigger: trigger,
		From:    from,
		To:      target,
		Started: time.Now(),
	}
	octx := ctx
	for _, o := range r.observers {
		octx = o.NavigationStarted(octx, info)
	}
	nctx, cancel := context.WithCancel(octx)
	nav := &navigation{info: info, octx: octx, ctx: nctx, cancel: cancel}

	r.mu.Lock()
	if r.pending != nil {
		r.pending.cancel()
	}
	r.pending = nav
	r.mu.Unlock()

	r.logger.Debug("navigation started",
		"id", info.ID,
		"trigger", trigger,
		"from", from.FullPath,
		"to", target.FullPath,
	)
	return nav, fromEntry
}

func (r *Router) stale(nav *navigation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nav
}

func (r *Router) transition(ctx context.Context, target *route.Route, trigger Trigger, popped *history.Entry) (*route.Route, error) {
	nav, fromEntry := r.begin(ctx, target, trigger)
	from := nav.info.From

	if route.IsSameRoute(target, from) &&
		len(target.Matched) == len(from.Matched) &&
		target.Leaf() == from.Leaf() {
		if popped != nil {
			r.mu.Lock()
			r.currentEntry = *popped
			r.mu.Unlock()
		}
		r.history.Ensure(from.FullPath, false)
		return nil, r.finish(nav, NewDuplicatedError(from, target))
	}

	if action, ok := promptAction(trigger); ok {
		if !r.history.Confirm(nav.ctx, history.Entry{Path: target.FullPath}, action) {
			return nil, r.finish(nav, NewAbortedError(from, target, "blocked by prompt"))
		}
	}

	updated, deactivated, activated := resolveQueue(from.Matched, target.Matched)

	var queue []guardStep
	queue = append(queue, r.leaveGuards(deactivated)...)
	queue = append(queue, hookSteps(PhaseBefore, "beforeEach", r.beforeHooks.snapshot())...)
	queue = append(queue, r.updateGuards(updated)...)
	queue = append(queue, beforeEnterGuards(activated)...)
	if hasAsync(activated) {
		queue = append(queue, r.asyncStep(activated))
	}

	var callbacks []enterCallback
	if err := r.runQueue(nav, queue, &callbacks); err != nil {
		return nil, r.fail(ctx, nav, fromEntry, popped, err)
	}

	queue = append(r.enterGuards(activated), hookSteps(PhaseResolve, "beforeResolve", r.resolveHooks.snapshot())...)
	if err := r.runQueue(nav, queue, &callbacks); err != nil {
		return nil, r.fail(ctx, nav, fromEntry, popped, err)
	}

	if err := r.commit(nav, trigger); err != nil {
		return nil, r.finish(nav, err)
	}
	r.flushEnter(target, callbacks)
	return target, r.finish(nav, nil)
}

func promptAction(trigger Trigger) (history.Action, bool) {
	switch trigger {
	case TriggerPush:
		return history.ActionPush, true
	case TriggerReplace:
		return history.ActionReplace, true
	}
	return "", false
}

// redirect carries a guard's new target out of runQueue.
type redirect struct {
	to location.Location
}

func (redirect) Error() string { return "redirect" }

func (r *Router) runQueue(nav *navigation, queue []guardStep, callbacks *[]enterCallback) error {
	to, from := nav.info.To, nav.info.From
	for _, step := range queue {
		if r.stale(nav) {
			return NewCancelledError(from, to)
		}

		d := r.callGuard(nav, step)
		for _, o := range r.observers {
			o.GuardRan(nav.octx, nav.info, GuardRun{Phase: step.phase, Name: step.name, Verdict: d.Verdict})
		}

		if r.stale(nav) {
			return NewCancelledError(from, to)
		}

		switch d.Verdict {
		case route.Proceed:
			if d.Callback != nil && step.phase == PhaseEnter {
				*callbacks = append(*callbacks, enterCallback{rec: step.rec, view: step.view, fn: d.Callback})
			}
		case route.Reject:
			return NewAbortedError(from, to, "rejected by "+string(step.phase)+" guard "+step.name)
		case route.Reroute:
			return &redirect{to: d.To}
		default:
			if d.Err == nil {
				return errors.New("navigation guard " + step.name + " failed")
			}
			return d.Err
		}
	}
	return nil
}

func (r *Router) callGuard(nav *navigation, step guardStep) (d route.Decision) {
	defer func() {
		if v := recover(); v != nil {
			d = route.Fail(&GuardPanicError{Guard: step.name, Value: v})
		}
	}()
	return step.run(nav.ctx, nav.info.To, nav.info.From)
}

// fail ends a navigation the pipeline rejected. A redirect starts its
// follow-up navigation after the original is closed. A refused pop is
// undone on the backend.
func (r *Router) fail(ctx context.Context, nav *navigation, fromEntry history.Entry, popped *history.Entry, err error) error {
	from, to := nav.info.From, nav.info.To

	var rd *redirect
	if errors.As(err, &rd) {
		rerr := r.finish(nav, NewRedirectedError(from, to))
		if rd.to.Replace {
			_, _ = r.Replace(ctx, rd.to)
		} else {
			_, _ = r.Push(ctx, rd.to)
		}
		return rerr
	}

	if popped != nil && !IsCancelled(err) {
		r.history.Revert(fromEntry)
	}
	return r.finish(nav, err)
}

// commit persists the URL and swaps the current route. Callbacks run after
// commitMu is released so they may start navigations of their own.
func (r *Router) commit(nav *navigation, trigger Trigger) error {
	target, from := nav.info.To, nav.info.From

	r.commitMu.Lock()
	if r.stale(nav) {
		r.commitMu.Unlock()
		return NewCancelledError(from, target)
	}

	var entry history.Entry
	switch trigger {
	case TriggerPush:
		entry = r.history.Apply(history.ActionPush, target.FullPath, nil)
	case TriggerReplace:
		entry = r.history.Apply(history.ActionReplace, target.FullPath, nil)
	default:
		r.history.Ensure(target.FullPath, false)
		entry = r.history.Current()
	}

	r.mu.Lock()
	r.current = target
	r.currentEntry = entry
	if r.pending == nav {
		r.pending = nil
	}
	listener := r.listener
	var readyCbs []func(*route.Route)
	if !r.ready {
		r.ready = true
		readyCbs = r.readyCbs
		r.readyCbs, r.readyErrCbs = nil, nil
	}
	r.mu.Unlock()
	r.commitMu.Unlock()

	if listener != nil {
		listener(target)
	}
	for _, hook := range r.afterHooks.snapshot() {
		hook(target, from)
	}
	for _, cb := range readyCbs {
		cb(target)
	}
	return nil
}

// finish closes nav, reports err and hands it back.
func (r *Router) finish(nav *navigation, err error) error {
	nav.cancel()

	r.mu.Lock()
	if r.pending == nav {
		r.pending = nil
	}
	var readyErrCbs []func(error)
	if err != nil && !r.ready {
		// A redirect off START is part of getting ready, not a failure.
		if !(IsRedirected(err) && nav.info.From.IsStart()) {
			r.ready = true
			readyErrCbs = r.readyErrCbs
			r.readyCbs, r.readyErrCbs = nil, nil
		}
	}
	r.mu.Unlock()

	outcome := OutcomeOf(err)
	for _, o := range r.observers {
		o.NavigationFinished(nav.octx, nav.info, outcome, err)
	}
	r.logger.Debug("navigation finished",
		"id", nav.info.ID,
		"outcome", outcome,
		"to", nav.info.To.FullPath,
	)

	if err != nil {
		r.reportError(err)
	}
	for _, cb := range readyErrCbs {
		cb(err)
	}
	return err
}

func (r *Router) leaveGuards(deactivated []*route.Record) []guardStep {
	var steps []guardStep
	for _, rec := range deactivated {
		for _, view := range sortedViews(rec) {
			g, ok := r.views.target(rec, view).(LeaveGuard)
			if !ok {
				continue
			}
			steps = append(steps, guardStep{phase: PhaseLeave, name: rec.Path, rec: rec, view: view, run: g.BeforeRouteLeave})
		}
	}
	// Deepest first.
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}

func (r *Router) updateGuards(updated []*route.Record) []guardStep {
	var steps []guardStep
	for _, rec := range updated {
		for _, view := range sortedViews(rec) {
			g, ok := r.views.target(rec, view).(UpdateGuard)
			if !ok {
				continue
			}
			steps = append(steps, guardStep{phase: PhaseUpdate, name: rec.Path, rec: rec, view: view, run: g.BeforeRouteUpdate})
		}
	}
	return steps
}

func (r *Router) enterGuards(activated []*route.Record) []guardStep {
	var steps []guardStep
	for _, rec := range activated {
		for _, view := range sortedViews(rec) {
			g, ok := r.views.component(rec, view).(EnterGuard)
			if !ok {
				continue
			}
			steps = append(steps, guardStep{phase: PhaseEnter, name: rec.Path, rec: rec, view: view, run: g.BeforeRouteEnter})
		}
	}
	return steps
}

func beforeEnterGuards(activated []*route.Record) []guardStep {
	var steps []guardStep
	for _, rec := range activated {
		if rec.BeforeEnter != nil {
			steps = append(steps, guardStep{phase: PhaseBeforeEnter, name: rec.Path, rec: rec, run: rec.BeforeEnter})
		}
	}
	return steps
}

func hookSteps(phase Phase, name string, hooks []route.Guard) []guardStep {
	steps := make([]guardStep, len(hooks))
	for i, g := range hooks {
		steps[i] = guardStep{phase: phase, name: name + "[" + strconv.Itoa(i) + "]", run: g}
	}
	return steps
}

func hasAsync(recs []*route.Record) bool {
	for _, rec := range recs {
		for _, c := range rec.Components {
			if _, ok := c.(AsyncComponent); ok {
				return true
			}
		}
	}
	return false
}

func (r *Router) asyncStep(activated []*route.Record) guardStep {
	return guardStep{
		phase: PhaseAsync,
		name:  "components",
		run: func(ctx context.Context, _, _ *route.Route) route.Decision {
			if err := r.views.resolveAsync(ctx, activated); err != nil {
				return route.Fail(err)
			}
			return route.Next()
		},
	}
}

// flushEnter hands each enter callback its view instance, polling until
// the instance is registered or target is no longer current.
func (r *Router) flushEnter(target *route.Route, callbacks []enterCallback) {
	for _, cb := range callbacks {
		r.pollEnter(target, cb)
	}
}

func (r *Router) pollEnter(target *route.Route, cb enterCallback) {
	if inst := r.views.instance(cb.rec, cb.view); inst != nil {
		cb.fn(inst)
		return
	}
	if r.CurrentRoute() != target {
		return
	}
	time.AfterFunc(r.pollInterval, func() {
		r.pollEnter(target, cb)
	})
}
