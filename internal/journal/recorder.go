package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/corleone113/waypoint/internal/ir"
	"github.com/corleone113/waypoint/internal/route"
	"github.com/corleone113/waypoint/internal/router"
	"github.com/corleone113/waypoint/internal/store"
)

type recorderConfig struct {
	session string
	start   int64
	logger  *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderConfig)

// WithSession sets the session ID. The default is a fresh UUIDv7.
func WithSession(id string) RecorderOption {
	return func(c *recorderConfig) {
		c.session = id
	}
}

// WithStartSeq continues mutation numbering after seq, e.g. from LastSeq.
func WithStartSeq(seq int64) RecorderOption {
	return func(c *recorderConfig) {
		c.start = seq
	}
}

// WithLogger sets the logger for write failures.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(c *recorderConfig) {
		c.logger = l
	}
}

// Recorder writes router navigations and store commits to a Journal.
// Register it with router.WithObserver and install Plugin on the store.
//
// Write failures are logged and counted; they never fail a navigation or
// a commit.
type Recorder struct {
	router.BaseObserver

	j       *Journal
	session string
	logger  *slog.Logger
	clock   *router.Clock

	mu   sync.Mutex
	errs int
}

// NewRecorder creates a Recorder writing to j.
func NewRecorder(j *Journal, opts ...RecorderOption) *Recorder {
	cfg := recorderConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.session == "" {
		cfg.session = uuid.Must(uuid.NewV7()).String()
	}
	return &Recorder{
		j:       j,
		session: cfg.session,
		logger:  cfg.logger,
		clock:   router.NewClockAt(cfg.start),
	}
}

// Session returns the session ID rows are written under.
func (r *Recorder) Session() string {
	return r.session
}

// Errors returns the number of failed writes.
func (r *Recorder) Errors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}

// NavigationFinished implements router.Observer.
func (r *Recorder) NavigationFinished(ctx context.Context, nav router.Navigation, outcome router.Outcome, err error) {
	rec := NavigationRecord{
		ID:      nav.ID,
		Session: r.session,
		Seq:     nav.Seq,
		Trigger: string(nav.Trigger),
		From:    fullPath(nav.From),
		To:      fullPath(nav.To),
		Outcome: string(outcome),
	}
	var ne *router.NavigationError
	if errors.As(err, &ne) {
		rec.ErrorCode = string(ne.Code)
	}
	if err != nil {
		rec.Message = err.Error()
	}

	if werr := r.j.WriteNavigation(context.WithoutCancel(ctx), rec); werr != nil {
		r.failed("navigation", werr)
	}
}

// Plugin returns a store plugin journaling every commit together with the
// fingerprint of the resulting state.
func (r *Recorder) Plugin() store.Plugin {
	return func(st *store.Store) {
		st.Subscribe(func(m store.MutationEvent, _ map[string]any) {
			r.recordMutation(st, m)
		})
	}
}

func (r *Recorder) recordMutation(st *store.Store, m store.MutationEvent) {
	seq := r.clock.Next()

	hash, err := ir.StateHash(st.Snapshot())
	if err != nil {
		r.failed("mutation", err)
		return
	}
	id, err := ir.MutationID(r.session, seq, m.Type, m.Payload)
	if err != nil {
		r.failed("mutation", err)
		return
	}

	err = r.j.WriteMutation(context.Background(), MutationRecord{
		ID:        id,
		Session:   r.session,
		Seq:       seq,
		Type:      m.Type,
		Payload:   m.Payload,
		StateHash: hash,
	})
	if err != nil {
		r.failed("mutation", err)
	}
}

func (r *Recorder) failed(kind string, err error) {
	r.mu.Lock()
	r.errs++
	r.mu.Unlock()
	r.logger.Error("journal write failed", "kind", kind, "session", r.session, "error", err)
}

func fullPath(rt *route.Route) string {
	if rt == nil {
		return ""
	}
	return rt.FullPath
}
