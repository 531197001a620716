package router

import (
	"log/slog"
	"time"

	"github.com/corleone113/waypoint/internal/history"
	"github.com/corleone113/waypoint/internal/pathpattern"
	"github.com/corleone113/waypoint/internal/route"
)

// Mode selects the history backend built when none is supplied.
type Mode string

const (
	ModeHash     Mode = "hash"
	ModeHistory  Mode = "history"
	ModeAbstract Mode = "abstract"
)

// DefaultEnterPollInterval is how often an enter callback checks for its
// view instance.
const DefaultEnterPollInterval = 16 * time.Millisecond

type config struct {
	routes       []route.Config
	mode         Mode
	history      history.History
	platform     history.Platform
	base         string
	fallback     bool
	logger       *slog.Logger
	observers    []Observer
	ids          IDGenerator
	clock        *Clock
	compiler     *pathpattern.Compiler
	pollInterval time.Duration
}

// Option configures a Router.
type Option func(*config)

// WithRoutes sets the initial route table.
func WithRoutes(routes ...route.Config) Option {
	return func(c *config) {
		c.routes = append(c.routes, routes...)
	}
}

// WithMode selects the backend. Default: ModeHash.
func WithMode(m Mode) Option {
	return func(c *config) {
		c.mode = m
	}
}

// WithHistory supplies a ready backend; mode, platform and base are
// then ignored.
func WithHistory(h history.History) Option {
	return func(c *config) {
		c.history = h
	}
}

// WithPlatform sets the substrate for ModeHash and ModeHistory.
func WithPlatform(p history.Platform) Option {
	return func(c *config) {
		c.platform = p
	}
}

// WithBase sets the basename URL backends write under.
func WithBase(base string) Option {
	return func(c *config) {
		c.base = base
	}
}

// WithFallback controls whether a URL mode without a platform degrades to
// ModeAbstract (the default) or fails New.
func WithFallback(fallback bool) Option {
	return func(c *config) {
		c.fallback = fallback
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithObserver adds a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, o)
	}
}

// WithIDGenerator replaces the UUIDv7 navigation IDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}

// WithClock sets the sequence clock, e.g. one resumed from a journal.
func WithClock(clk *Clock) Option {
	return func(c *config) {
		c.clock = clk
	}
}

// WithPatternCompiler shares a pattern cache between routers.
func WithPatternCompiler(pc *pathpattern.Compiler) Option {
	return func(c *config) {
		c.compiler = pc
	}
}

// WithEnterPollInterval sets how often enter callbacks poll for their
// view instance.
func WithEnterPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.pollInterval = d
	}
}
