package router

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/corleone113/waypoint/internal/route"
)

// LeaveGuard is implemented by components that vet leaving their route.
type LeaveGuard interface {
	BeforeRouteLeave(ctx context.Context, to, from *route.Route) route.Decision
}

// UpdateGuard is implemented by components that stay mounted while their
// route's params, query or hash change.
type UpdateGuard interface {
	BeforeRouteUpdate(ctx context.Context, to, from *route.Route) route.Decision
}

// EnterGuard is implemented by components that vet entering their route.
// The guard runs before any instance exists; a Decision callback receives
// the instance once it is registered.
type EnterGuard interface {
	BeforeRouteEnter(ctx context.Context, to, from *route.Route) route.Decision
}

// AsyncComponent is a component loaded on first activation.
type AsyncComponent func(ctx context.Context) (route.Component, error)

type viewKey struct {
	rec  *route.Record
	view string
}

// views holds resolved async components and registered view instances.
type views struct {
	mu        sync.Mutex
	resolved  map[viewKey]route.Component
	instances map[viewKey]any
}

func newViews() *views {
	return &views{
		resolved:  make(map[viewKey]route.Component),
		instances: make(map[viewKey]any),
	}
}

// component returns the usable definition for a view. Unresolved async
// components yield nil.
func (v *views) component(rec *route.Record, view string) route.Component {
	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok := v.resolved[viewKey{rec, view}]; ok {
		return c
	}
	c := rec.Components[view]
	if _, async := c.(AsyncComponent); async {
		return nil
	}
	return c
}

func (v *views) instance(rec *route.Record, view string) any {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.instances[viewKey{rec, view}]
}

func (v *views) setInstance(rec *route.Record, view string, instance any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if instance == nil {
		delete(v.instances, viewKey{rec, view})
		return
	}
	v.instances[viewKey{rec, view}] = instance
}

// target returns what a component guard is called on: the live instance
// when one is registered, the definition otherwise.
func (v *views) target(rec *route.Record, view string) any {
	if inst := v.instance(rec, view); inst != nil {
		return inst
	}
	return v.component(rec, view)
}

// resolveAsync loads every unresolved async component of recs in
// parallel. The first error wins.
func (v *views) resolveAsync(ctx context.Context, recs []*route.Record) error {
	type job struct {
		key  viewKey
		load AsyncComponent
	}
	var jobs []job
	v.mu.Lock()
	for _, rec := range recs {
		for _, view := range sortedViews(rec) {
			load, ok := rec.Components[view].(AsyncComponent)
			if !ok {
				continue
			}
			key := viewKey{rec, view}
			if _, done := v.resolved[key]; !done {
				jobs = append(jobs, job{key, load})
			}
		}
	}
	v.mu.Unlock()

	if len(jobs) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for _, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := j.load(ctx)
			if err == nil && c == nil {
				err = fmt.Errorf("async component for %s view %q resolved to nil", j.key.rec.Path, j.key.view)
			}
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to resolve async component %s view %q: %w", j.key.rec.Path, j.key.view, err)
				}
				errMu.Unlock()
				return
			}
			v.mu.Lock()
			v.resolved[j.key] = c
			v.mu.Unlock()
		}()
	}
	wg.Wait()
	return firstErr
}

func sortedViews(rec *route.Record) []string {
	names := make([]string, 0, len(rec.Components))
	for name := range rec.Components {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
