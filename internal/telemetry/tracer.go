package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/corleone113/waypoint/internal/router"
	"github.com/corleone113/waypoint/internal/store"
)

// Default tracer name.
const defaultTracerName = "waypoint"

// Span names.
const (
	SpanNavigate = "waypoint.navigate"
	SpanDispatch = "waypoint.dispatch"
	SpanCommit   = "waypoint.commit"
)

type tracerConfig struct {
	name     string
	provider trace.TracerProvider
}

// TracerOption configures NewTracer.
type TracerOption func(*tracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *tracerConfig) {
		c.name = name
	}
}

// WithTracerProvider uses p instead of the global provider.
func WithTracerProvider(p trace.TracerProvider) TracerOption {
	return func(c *tracerConfig) {
		c.provider = p
	}
}

// Tracer opens one span per navigation. Guard runs are span events.
//
// The span is carried in the context NavigationStarted returns, so guards
// that start their own spans nest under the navigation.
type Tracer struct {
	tracer trace.Tracer
}

var _ router.Observer = (*Tracer)(nil)

// NewTracer resolves a tracer from the configured provider, or from the
// global OpenTelemetry provider when none is set.
func NewTracer(opts ...TracerOption) *Tracer {
	cfg := tracerConfig{name: defaultTracerName}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.provider == nil {
		return &Tracer{tracer: otel.Tracer(cfg.name)}
	}
	return &Tracer{tracer: cfg.provider.Tracer(cfg.name)}
}

func (t *Tracer) NavigationStarted(ctx context.Context, nav router.Navigation) context.Context {
	attrs := []attribute.KeyValue{
		attribute.String("waypoint.navigation_id", nav.ID),
		attribute.Int64("waypoint.seq", nav.Seq),
		attribute.String("waypoint.trigger", string(nav.Trigger)),
	}
	if nav.From != nil {
		attrs = append(attrs, attribute.String("waypoint.from", nav.From.FullPath))
	}
	if nav.To != nil {
		attrs = append(attrs, attribute.String("waypoint.to", nav.To.FullPath))
		if nav.To.Name != "" {
			attrs = append(attrs, attribute.String("waypoint.route_name", nav.To.Name))
		}
	}

	ctx, _ = t.tracer.Start(ctx, SpanNavigate,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(nav.Started),
	)
	return ctx
}

func (t *Tracer) GuardRan(ctx context.Context, _ router.Navigation, run router.GuardRun) {
	trace.SpanFromContext(ctx).AddEvent("guard", trace.WithAttributes(
		attribute.String("waypoint.guard.phase", string(run.Phase)),
		attribute.String("waypoint.guard.name", run.Name),
		attribute.String("waypoint.guard.verdict", run.Verdict.String()),
	))
}

func (t *Tracer) NavigationFinished(ctx context.Context, _ router.Navigation, outcome router.Outcome, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(attribute.String("waypoint.outcome", string(outcome)))

	var ne *router.NavigationError
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.As(err, &ne):
		// Aborts, duplicates and redirects are ordinary results.
		span.SetAttributes(attribute.String("waypoint.error_code", string(ne.Code)))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// Dispatch runs st.Dispatch inside a dispatch span. Actions receive the
// span context.
func (t *Tracer) Dispatch(ctx context.Context, st *store.Store, typ string, payload any, opts ...store.CallOption) (any, error) {
	ctx, span := t.tracer.Start(ctx, SpanDispatch,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("waypoint.action", typ)),
	)
	defer span.End()

	res, err := st.Dispatch(ctx, typ, payload, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// Plugin records every commit as a short span.
func (t *Tracer) Plugin() store.Plugin {
	return func(s *store.Store) {
		s.Subscribe(func(e store.MutationEvent, _ map[string]any) {
			_, span := t.tracer.Start(context.Background(), SpanCommit,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("waypoint.mutation", e.Type),
					attribute.Int64("waypoint.store_version", int64(s.Version())),
				),
			)
			span.End()
		})
	}
}
