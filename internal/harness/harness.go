package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/corleone113/waypoint/internal/compiler"
	"github.com/corleone113/waypoint/internal/history"
	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/route"
	"github.com/corleone113/waypoint/internal/router"
	"github.com/corleone113/waypoint/internal/testutil"
)

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger    *slog.Logger
	observers []router.Observer
}

// WithLogger sets the logger for the harness and the router under test.
// Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithObserver attaches an extra router observer, e.g. a journal recorder,
// next to the harness's own trace recorder.
func WithObserver(o router.Observer) Option {
	return func(c *runConfig) {
		c.observers = append(c.observers, o)
	}
}

// Harness drives one router through a scenario.
type Harness struct {
	router   *router.Router
	recorder *traceRecorder
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh router and history backend.
// Navigation ids, history keys and trace sequence numbers come from
// deterministic sources, so identical scenarios produce identical traces.
//
// Execution flow:
// 1. Compile the scenario's route table
// 2. Build the history backend for the scenario's mode
// 3. Install the declared guards and run the initial navigation
// 4. Execute steps, checking each expect clause
// 5. Evaluate assertions against the trace and final state
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	configs, err := compiler.LoadRoutes(scenario.Routes)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}

	h, err := newHarness(scenario, configs, cfg)
	if err != nil {
		return nil, err
	}
	defer h.router.Close()

	if err := installGuards(h.router, scenario.Guards); err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()

	if _, err := h.router.Start(ctx); err != nil {
		h.logger.Info("initial navigation failed", "error", err)
	}

	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	current := h.router.CurrentRoute()
	result.FinalRoute = current.FullPath
	result.FinalName = current.Name
	result.HistoryLength = h.router.History().Len()
	result.HistoryIndex = h.router.History().Index()

	result.Trace = h.recorder.snapshot()
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(scenario *Scenario, configs []route.Config, cfg runConfig) (*Harness, error) {
	rec := &traceRecorder{clock: router.NewClock()}
	keys := testutil.NewIDSource("key")

	start := scenario.Start
	if start == "" {
		start = "/"
	}

	var (
		hist history.History
		mode router.Mode
	)
	hopts := []history.Option{
		history.WithKeys(keys.Keys()),
		history.WithLogger(cfg.logger),
		history.WithBasename(scenario.Base),
	}
	switch scenario.Mode {
	case "", ModeAbstract:
		mode = router.ModeAbstract
		hist = history.NewMemory(append(hopts, history.WithInitialEntries([]string{start}, 0))...)
	case ModeHash:
		mode = router.ModeHash
		hist = history.NewHash(history.NewSimulatedPlatform("/#"+scenario.Base+start), hopts...)
	case ModeHistory:
		mode = router.ModeHistory
		hist = history.NewBrowser(history.NewSimulatedPlatform(basePath(scenario.Base)+start), hopts...)
	default:
		return nil, fmt.Errorf("unknown mode %q", scenario.Mode)
	}

	ropts := []router.Option{
		router.WithRoutes(configs...),
		router.WithHistory(hist),
		router.WithMode(mode),
		router.WithLogger(cfg.logger),
		router.WithIDGenerator(testutil.NewIDSource("nav")),
		router.WithObserver(rec),
	}
	for _, o := range cfg.observers {
		ropts = append(ropts, router.WithObserver(o))
	}

	r, err := router.New(ropts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	if errs := r.ConfigErrors(); len(errs) > 0 {
		return nil, fmt.Errorf("route table rejected: %w", errors.Join(errs...))
	}

	return &Harness{router: r, recorder: rec, logger: cfg.logger}, nil
}

func basePath(base string) string {
	base = strings.TrimRight(base, "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return base
}

// installGuards registers each declared guard in order on its hook.
func installGuards(r *router.Router, guards []GuardSpec) error {
	for i, spec := range guards {
		g, err := buildGuard(spec)
		if err != nil {
			return fmt.Errorf("guards[%d]: %w", i, err)
		}
		switch spec.Hook {
		case HookBeforeEach:
			r.BeforeEach(g)
		case HookBeforeResolve:
			r.BeforeResolve(g)
		default:
			return fmt.Errorf("guards[%d]: unknown hook %q", i, spec.Hook)
		}
	}
	return nil
}

func buildGuard(spec GuardSpec) (route.Guard, error) {
	var decide func() route.Decision
	switch spec.Decision {
	case DecisionNext:
		decide = route.Next
	case DecisionAbort:
		decide = route.Abort
	case DecisionRedirect:
		target := spec.Target
		decide = func() route.Decision { return route.RedirectPath(target) }
	case DecisionError:
		msg := spec.Message
		if msg == "" {
			msg = "guard error"
		}
		decide = func() route.Decision { return route.Fail(errors.New(msg)) }
	default:
		return nil, fmt.Errorf("unknown decision %q", spec.Decision)
	}

	when := spec.When
	return func(_ context.Context, to, _ *route.Route) route.Decision {
		if when != "" {
			if ok, _ := path.Match(when, to.Path); !ok {
				return route.Next()
			}
		}
		return decide()
	}, nil
}

// executeStep performs one navigation call and validates its expect
// clause against the first navigation the call started.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	mark := h.recorder.len()

	var (
		call string
		err  error
	)
	switch {
	case step.Push != "":
		call = "push " + step.Push
		_, err = h.router.Push(ctx, location.From(step.Push))
	case step.Replace != "":
		call = "replace " + step.Replace
		_, err = h.router.Replace(ctx, location.From(step.Replace))
	case step.Go != nil:
		call = fmt.Sprintf("go %d", *step.Go)
		err = h.router.Go(ctx, *step.Go)
	case step.Back:
		call = "back"
		err = h.router.Back(ctx)
	case step.Forward:
		call = "forward"
		err = h.router.Forward(ctx)
	}

	first, navigated := h.recorder.firstFinishSince(mark)
	if err != nil && !navigated {
		result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, call, err))
		return
	}

	h.logger.Info("step completed",
		"step", i,
		"call", call,
		"navigated", navigated,
		"outcome", first.Outcome,
	)

	if step.Expect == nil {
		return
	}
	exp := step.Expect
	if exp.Outcome != "" || exp.Error != "" {
		if !navigated {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected a navigation, none started", i, call))
			return
		}
		if exp.Outcome != "" && exp.Outcome != first.Outcome {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected outcome %s, got %s", i, call, exp.Outcome, first.Outcome))
		}
		if exp.Error != "" && exp.Error != first.ErrorCode {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %q", i, call, exp.Error, first.ErrorCode))
		}
	}
	if exp.Route != "" {
		if got := h.router.CurrentRoute().FullPath; got != exp.Route {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected route %s, got %s", i, call, exp.Route, got))
		}
	}
}

// traceRecorder is the router observer that builds the trace.
type traceRecorder struct {
	clock *router.Clock

	mu     sync.Mutex
	events []TraceEvent
}

var _ router.Observer = (*traceRecorder)(nil)

func (t *traceRecorder) base(kind string, nav router.Navigation) TraceEvent {
	return TraceEvent{
		Seq:          t.clock.Next(),
		Kind:         kind,
		NavigationID: nav.ID,
		Trigger:      string(nav.Trigger),
		From:         nav.From.FullPath,
		To:           nav.To.FullPath,
	}
}

func (t *traceRecorder) add(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

func (t *traceRecorder) NavigationStarted(ctx context.Context, nav router.Navigation) context.Context {
	t.add(t.base(KindStart, nav))
	return ctx
}

func (t *traceRecorder) GuardRan(_ context.Context, nav router.Navigation, run router.GuardRun) {
	ev := t.base(KindGuard, nav)
	ev.Phase = string(run.Phase)
	ev.Guard = run.Name
	ev.Verdict = run.Verdict.String()
	t.add(ev)
}

func (t *traceRecorder) NavigationFinished(_ context.Context, nav router.Navigation, outcome router.Outcome, err error) {
	ev := t.base(KindFinish, nav)
	ev.Outcome = string(outcome)
	var ne *router.NavigationError
	switch {
	case errors.As(err, &ne):
		ev.ErrorCode = string(ne.Code)
	case err != nil:
		ev.Error = err.Error()
	}
	t.add(ev)
}

func (t *traceRecorder) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

func (t *traceRecorder) firstFinishSince(mark int) (TraceEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// The first navigation a step started is the first start event after
	// mark; its finish may follow finishes of nested redirects.
	var id string
	for _, ev := range t.events[mark:] {
		if ev.Kind == KindStart {
			id = ev.NavigationID
			break
		}
	}
	if id == "" {
		return TraceEvent{}, false
	}
	for _, ev := range t.events[mark:] {
		if ev.Kind == KindFinish && ev.NavigationID == id {
			return ev, true
		}
	}
	return TraceEvent{}, false
}

func (t *traceRecorder) snapshot() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}
