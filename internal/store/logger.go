package store

import (
	"log/slog"
	"sync"
)

type loggerConfig struct {
	logger    *slog.Logger
	actions   bool
	mutations bool
	filter    func(MutationEvent) bool
}

// LoggerOption configures the Logger plugin.
type LoggerOption func(*loggerConfig)

// LogWith sets the destination logger.
func LogWith(l *slog.Logger) LoggerOption {
	return func(c *loggerConfig) {
		c.logger = l
	}
}

// WithActions toggles logging of dispatches.
func WithActions(on bool) LoggerOption {
	return func(c *loggerConfig) {
		c.actions = on
	}
}

// WithMutations toggles logging of commits. On by default.
func WithMutations(on bool) LoggerOption {
	return func(c *loggerConfig) {
		c.mutations = on
	}
}

// WithFilter skips mutations for which keep returns false.
func WithFilter(keep func(MutationEvent) bool) LoggerOption {
	return func(c *loggerConfig) {
		c.filter = keep
	}
}

// Logger returns a plugin that logs every mutation with the state before
// and after it.
func Logger(opts ...LoggerOption) Plugin {
	cfg := loggerConfig{logger: slog.Default(), mutations: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(s *Store) {
		var mu sync.Mutex
		prev := s.Snapshot()

		if cfg.mutations {
			s.Subscribe(func(m MutationEvent, _ map[string]any) {
				mu.Lock()
				defer mu.Unlock()
				next := s.Snapshot()
				if cfg.filter == nil || cfg.filter(m) {
					cfg.logger.Info("mutation",
						"type", m.Type,
						"payload", m.Payload,
						"prev_state", prev,
						"next_state", next,
					)
				}
				prev = next
			})
		}

		if cfg.actions {
			s.SubscribeAction(ActionSubscriber{
				Before: func(a ActionEvent, _ map[string]any) {
					cfg.logger.Info("action", "type", a.Type, "payload", a.Payload)
				},
				Error: func(a ActionEvent, _ map[string]any, err error) {
					cfg.logger.Warn("action failed", "type", a.Type, "error", err)
				},
			})
		}
	}
}
