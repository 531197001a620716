// Package telemetry exports navigation and store activity to Prometheus
// and OpenTelemetry.
//
// Metrics and Tracer are router observers; pass them to router.New with
// router.WithObserver. Their Plugin methods instrument a store.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/corleone113/waypoint/internal/router"
	"github.com/corleone113/waypoint/internal/store"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "waypoint").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for navigation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures NewMetrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "waypoint",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors. Register one Metrics per registry;
// a second NewMetrics on the same registry panics.
type Metrics struct {
	navigations        *prometheus.CounterVec
	navigationDuration *prometheus.HistogramVec
	pending            prometheus.Gauge
	guardRuns          *prometheus.CounterVec
	commits            *prometheus.CounterVec
	dispatches         *prometheus.CounterVec
}

var _ router.Observer = (*Metrics)(nil)

// NewMetrics creates and registers the collectors:
//   - waypoint_navigations_total{trigger,outcome}
//   - waypoint_navigation_duration_seconds{trigger}
//   - waypoint_navigations_pending
//   - waypoint_guard_runs_total{phase,verdict}
//   - waypoint_store_commits_total{type}
//   - waypoint_store_dispatches_total{type,status}
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of finished navigations",
			ConstLabels: config.ConstLabels,
		}, []string{"trigger", "outcome"}),

		navigationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_duration_seconds",
			Help:        "Navigation duration from start to outcome in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"trigger"}),

		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_pending",
			Help:        "Number of navigations that have started but not finished",
			ConstLabels: config.ConstLabels,
		}),

		guardRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "guard_runs_total",
			Help:        "Total number of guard invocations by phase and verdict",
			ConstLabels: config.ConstLabels,
		}, []string{"phase", "verdict"}),

		commits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "store_commits_total",
			Help:        "Total number of store mutations committed",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "store_dispatches_total",
			Help:        "Total number of store actions dispatched",
			ConstLabels: config.ConstLabels,
		}, []string{"type", "status"}),
	}
}

func (m *Metrics) NavigationStarted(ctx context.Context, _ router.Navigation) context.Context {
	m.pending.Inc()
	return ctx
}

func (m *Metrics) GuardRan(_ context.Context, _ router.Navigation, run router.GuardRun) {
	m.guardRuns.WithLabelValues(string(run.Phase), run.Verdict.String()).Inc()
}

func (m *Metrics) NavigationFinished(_ context.Context, nav router.Navigation, outcome router.Outcome, _ error) {
	m.pending.Dec()
	m.navigations.WithLabelValues(string(nav.Trigger), string(outcome)).Inc()
	if !nav.Started.IsZero() {
		m.navigationDuration.WithLabelValues(string(nav.Trigger)).Observe(time.Since(nav.Started).Seconds())
	}
}

// Plugin counts commits and dispatches.
func (m *Metrics) Plugin() store.Plugin {
	return func(s *store.Store) {
		s.Subscribe(func(e store.MutationEvent, _ map[string]any) {
			m.commits.WithLabelValues(e.Type).Inc()
		})
		s.SubscribeAction(store.ActionSubscriber{
			After: func(e store.ActionEvent, _ map[string]any) {
				m.dispatches.WithLabelValues(e.Type, "success").Inc()
			},
			Error: func(e store.ActionEvent, _ map[string]any, _ error) {
				m.dispatches.WithLabelValues(e.Type, "error").Inc()
			},
		})
	}
}
