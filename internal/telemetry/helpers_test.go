package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/corleone113/waypoint/internal/history"
	"github.com/corleone113/waypoint/internal/route"
	"github.com/corleone113/waypoint/internal/router"
)

// recordingProvider hands out spans that remember what was done to them.
type recordingProvider struct {
	noop.TracerProvider

	mu    sync.Mutex
	spans []*recordedSpan
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{p: p}
}

func (p *recordingProvider) ended() []*recordedSpan {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*recordedSpan
	for _, s := range p.spans {
		if s.isEnded() {
			out = append(out, s)
		}
	}
	return out
}

type recordingTracer struct {
	noop.Tracer
	p *recordingProvider
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordedSpan{
		name:   name,
		parent: trace.SpanFromContext(ctx),
		attrs:  map[string]attribute.Value{},
	}
	for _, kv := range cfg.Attributes() {
		s.attrs[string(kv.Key)] = kv.Value
	}
	t.p.mu.Lock()
	t.p.spans = append(t.p.spans, s)
	t.p.mu.Unlock()
	return trace.ContextWithSpan(ctx, s), s
}

type recordedSpan struct {
	noop.Span

	name   string
	parent trace.Span

	mu     sync.Mutex
	attrs  map[string]attribute.Value
	events []string
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordedSpan) SetAttributes(kvs ...attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kv := range kvs {
		s.attrs[string(kv.Key)] = kv.Value
	}
}

func (s *recordedSpan) AddEvent(name string, opts ...trace.EventOption) {
	cfg := trace.NewEventConfig(opts...)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kv := range cfg.Attributes() {
		if kv.Key == "waypoint.guard.verdict" {
			name += ":" + kv.Value.AsString()
		}
	}
	s.events = append(s.events, name)
}

func (s *recordedSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordedSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

func (s *recordedSpan) IsRecording() bool { return true }

func (s *recordedSpan) isEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *recordedSpan) attr(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs[key].Emit()
}

// newTestRouter builds a started memory-history router with routes for
// each outcome: /a commits, /private aborts, /broken fails.
func newTestRouter(t *testing.T, observers ...router.Observer) *router.Router {
	t.Helper()
	opts := []router.Option{
		router.WithRoutes(
			route.Config{Path: "/", Name: "home"},
			route.Config{Path: "/a", Name: "a"},
			route.Config{Path: "/private", BeforeEnter: func(context.Context, *route.Route, *route.Route) route.Decision {
				return route.Abort()
			}},
			route.Config{Path: "/broken", BeforeEnter: func(context.Context, *route.Route, *route.Route) route.Decision {
				return route.Fail(errBroken)
			}},
		),
		router.WithHistory(history.NewMemory()),
		router.WithIDGenerator(&router.SequenceGenerator{Prefix: "nav"}),
	}
	for _, o := range observers {
		opts = append(opts, router.WithObserver(o))
	}
	r, err := router.New(opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}
