// Package router drives navigations between matched routes.
//
// A Router owns the current route and a history backend. Every change of
// location, whether requested through Push/Replace or reported by the
// backend as a pop, runs the same pipeline:
//
//  1. Match the target and short-circuit duplicates.
//  2. Ask the history prompt (push and replace only).
//  3. Run leave, before-each, update and before-enter guards, then resolve
//     async components.
//  4. Run component enter guards and before-resolve hooks.
//  5. Commit: persist the URL, swap the current route, notify, run
//     after-each hooks, fire ready callbacks, flush enter callbacks.
//
// Guards run synchronously in the goroutine that started the navigation
// and may block. A navigation that is superseded while one of its guards
// runs has its context cancelled and ends as Cancelled once the guard
// returns.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/corleone113/waypoint/internal/history"
	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/route"
)

// AfterHook observes a committed navigation.
type AfterHook func(to, from *route.Route)

// Resolved is the result of Resolve.
type Resolved struct {
	Location location.Location
	Route    *route.Route
	Href     string
}

type hookList[F any] struct {
	mu    sync.Mutex
	items []*F
}

func (h *hookList[F]) add(fn F) func() {
	p := &fn
	h.mu.Lock()
	h.items = append(h.items, p)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if i := slices.Index(h.items, p); i >= 0 {
			h.items = slices.Delete(slices.Clone(h.items), i, i+1)
		}
	}
}

func (h *hookList[F]) snapshot() []F {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]F, len(h.items))
	for i, p := range h.items {
		out[i] = *p
	}
	return out
}

// Router is a navigation engine over a route table and a history backend.
//
// Thread-safety: all methods are safe for concurrent use. Overlapping
// navigations are resolved in favour of the one started last.
type Router struct {
	matcher      *route.Matcher
	history      history.History
	mode         Mode
	logger       *slog.Logger
	observers    []Observer
	ids          IDGenerator
	clock        *Clock
	views        *views
	pollInterval time.Duration
	configErrs   []error

	beforeHooks  hookList[route.Guard]
	resolveHooks hookList[route.Guard]
	afterHooks   hookList[AfterHook]
	errorCbs     hookList[func(error)]

	// commitMu serializes the commit step of racing navigations.
	commitMu sync.Mutex

	mu           sync.Mutex
	current      *route.Route
	currentEntry history.Entry
	pending      *navigation
	listener     func(*route.Route)
	started      bool
	unlisten     func()
	ready        bool
	readyCbs     []func(*route.Route)
	readyErrCbs  []func(error)
}

// New builds a Router. Route configuration errors do not fail New; they
// are logged and available from ConfigErrors.
func New(opts ...Option) (*Router, error) {
	cfg := config{
		mode:         ModeHash,
		fallback:     true,
		logger:       slog.Default(),
		ids:          UUIDv7Generator{},
		pollInterval: DefaultEnterPollInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewClock()
	}

	h, mode, err := buildHistory(cfg)
	if err != nil {
		return nil, err
	}

	mopts := []route.MatcherOption{route.WithLogger(cfg.logger)}
	if cfg.compiler != nil {
		mopts = append(mopts, route.WithCompiler(cfg.compiler))
	}
	matcher, errs := route.NewMatcher(cfg.routes, mopts...)

	return &Router{
		matcher:      matcher,
		history:      h,
		mode:         mode,
		logger:       cfg.logger,
		observers:    cfg.observers,
		ids:          cfg.ids,
		clock:        cfg.clock,
		views:        newViews(),
		pollInterval: cfg.pollInterval,
		configErrs:   errs,
		current:      route.Start(),
		currentEntry: h.Current(),
	}, nil
}

func buildHistory(cfg config) (history.History, Mode, error) {
	if cfg.history != nil {
		return cfg.history, cfg.mode, nil
	}
	hopts := []history.Option{history.WithLogger(cfg.logger), history.WithBasename(cfg.base)}

	mode := cfg.mode
	if (mode == ModeHash || mode == ModeHistory) && cfg.platform == nil {
		if !cfg.fallback {
			return nil, "", fmt.Errorf("router: mode %q requires a platform", mode)
		}
		cfg.logger.Warn("no platform for URL mode, falling back to abstract", "mode", mode)
		mode = ModeAbstract
	}

	switch mode {
	case ModeAbstract:
		return history.NewMemory(history.WithLogger(cfg.logger)), mode, nil
	case ModeHistory:
		return history.NewBrowser(cfg.platform, hopts...), mode, nil
	case ModeHash:
		return history.NewHash(cfg.platform, hopts...), mode, nil
	}
	return nil, "", fmt.Errorf("router: unknown mode %q", mode)
}

// Mode returns the backend kind in use.
func (r *Router) Mode() Mode {
	return r.mode
}

// History returns the backend.
func (r *Router) History() history.History {
	return r.history
}

// Matcher returns the route matcher.
func (r *Router) Matcher() *route.Matcher {
	return r.matcher
}

// ConfigErrors returns the errors reported while registering routes.
func (r *Router) ConfigErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.configErrs)
}

// CurrentRoute returns the committed route; START before the first
// navigation.
func (r *Router) CurrentRoute() *route.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Start runs the initial navigation to the backend's current entry and
// begins following pops. Calling it again returns the current route.
func (r *Router) Start(ctx context.Context) (*route.Route, error) {
	r.mu.Lock()
	if r.started {
		defer r.mu.Unlock()
		return r.current, nil
	}
	r.started = true
	r.mu.Unlock()

	rt, err := r.navigate(ctx, location.From(r.history.Current().Path), TriggerInit, nil)

	unlisten := r.history.Listen(r.onHistory)
	r.mu.Lock()
	r.unlisten = unlisten
	r.mu.Unlock()
	return rt, err
}

// Close stops following the backend.
func (r *Router) Close() {
	r.mu.Lock()
	unlisten := r.unlisten
	r.unlisten = nil
	r.mu.Unlock()
	if unlisten != nil {
		unlisten()
	}
}

func (r *Router) onHistory(entry history.Entry, action history.Action) {
	if action != history.ActionPop {
		return
	}
	_, _ = r.navigate(context.Background(), location.From(entry.Path), TriggerPop, &entry)
}

// Push navigates to to, adding a history entry on success.
func (r *Router) Push(ctx context.Context, to location.Location) (*route.Route, error) {
	return r.navigate(ctx, to, TriggerPush, nil)
}

// Replace navigates to to, overwriting the current history entry.
func (r *Router) Replace(ctx context.Context, to location.Location) (*route.Route, error) {
	return r.navigate(ctx, to, TriggerReplace, nil)
}

// Go moves n entries through the history. The resulting pop is navigated
// like any other change; its failures reach observers and OnError, not
// the caller.
func (r *Router) Go(ctx context.Context, n int) error {
	return r.history.Go(ctx, n)
}

// Back is Go(ctx, -1).
func (r *Router) Back(ctx context.Context) error {
	return r.Go(ctx, -1)
}

// Forward is Go(ctx, 1).
func (r *Router) Forward(ctx context.Context) error {
	return r.Go(ctx, 1)
}

// Match resolves raw against the table relative to the current route.
func (r *Router) Match(raw location.Location) (*route.Route, error) {
	return r.matcher.Match(raw, r.CurrentRoute(), nil)
}

// Resolve computes where raw leads without navigating. A nil current
// resolves relative to the current route. Href is what a link to the
// target shows; for a redirect it keeps the original path.
func (r *Router) Resolve(raw location.Location, current *route.Route, appendPath bool) (Resolved, error) {
	if current == nil {
		current = r.CurrentRoute()
	}
	loc, err := location.Normalize(raw, current, appendPath, r.matcher.Compiler())
	if err != nil {
		return Resolved{}, err
	}
	rt, err := r.matcher.Match(loc, current, nil)
	if err != nil {
		return Resolved{}, err
	}
	full := rt.FullPath
	if rt.RedirectedFrom != "" {
		full = rt.RedirectedFrom
	}
	return Resolved{
		Location: loc,
		Route:    rt,
		Href:     r.history.CreateHref(full),
	}, nil
}

// BeforeEach registers a guard run before every navigation's record
// guards.
func (r *Router) BeforeEach(g route.Guard) (unregister func()) {
	return r.beforeHooks.add(g)
}

// BeforeResolve registers a guard run after enter guards and async
// components resolved.
func (r *Router) BeforeResolve(g route.Guard) (unregister func()) {
	return r.resolveHooks.add(g)
}

// AfterEach registers a hook run after every commit.
func (r *Router) AfterEach(h AfterHook) (unregister func()) {
	return r.afterHooks.add(h)
}

// OnError registers a callback for errors raised during navigation that
// are not navigation failures.
func (r *Router) OnError(cb func(error)) (unregister func()) {
	return r.errorCbs.add(cb)
}

// OnReady runs cb once the initial navigation committed, or errCb if it
// failed. Registered after that point, cb runs immediately.
func (r *Router) OnReady(cb func(*route.Route), errCb func(error)) {
	r.mu.Lock()
	if r.ready {
		current := r.current
		r.mu.Unlock()
		if cb != nil {
			cb(current)
		}
		return
	}
	if cb != nil {
		r.readyCbs = append(r.readyCbs, cb)
	}
	if errCb != nil {
		r.readyErrCbs = append(r.readyErrCbs, errCb)
	}
	r.mu.Unlock()
}

// Listen sets the single route-change listener, replacing any previous
// one.
func (r *Router) Listen(cb func(*route.Route)) (unlisten func()) {
	r.mu.Lock()
	r.listener = cb
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.listener = nil
	}
}

// AddRoutes registers more routes. Once started, the current location is
// navigated again so it can pick up a better match.
func (r *Router) AddRoutes(configs ...route.Config) []error {
	errs := r.matcher.AddRoutes(configs)
	r.mu.Lock()
	r.configErrs = append(r.configErrs, errs...)
	started := r.current != route.Start()
	r.mu.Unlock()

	if started {
		_, _ = r.navigate(context.Background(), location.From(r.history.Current().Path), TriggerReload, nil)
	}
	return errs
}

// RegisterInstance records the live instance of view for rec. A nil
// instance unregisters it.
func (r *Router) RegisterInstance(rec *route.Record, view string, instance any) {
	r.views.setInstance(rec, view, instance)
}

// reportError delivers err to OnError callbacks, or logs it when none
// are registered.
func (r *Router) reportError(err error) {
	if IsNavigationFailure(err) {
		r.logger.Debug("navigation failure", "error", err)
		return
	}
	cbs := r.errorCbs.snapshot()
	if len(cbs) == 0 {
		r.logger.Warn("uncaught error during route navigation", "error", err)
		return
	}
	for _, cb := range cbs {
		cb(err)
	}
}
