package history

import (
	"context"
	"log/slog"
	"sync"
)

type promptSlot struct {
	fn Prompt
}

type listenerSlot struct {
	fn     Listener
	active bool
}

// gate holds the single prompt and the listener list of a backend.
type gate struct {
	logger  *slog.Logger
	confirm Confirmer

	mu        sync.Mutex
	prompt    *promptSlot
	listeners []*listenerSlot
}

func (g *gate) setPrompt(p Prompt) func() {
	slot := &promptSlot{fn: p}
	g.mu.Lock()
	if g.prompt != nil {
		g.logger.Warn("a history supports only one prompt at a time")
	}
	g.prompt = slot
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.prompt == slot {
			g.prompt = nil
		}
	}
}

// confirmTransition asks the active prompt. A message answer is passed to
// the confirmer; without one the transition is allowed.
func (g *gate) confirmTransition(ctx context.Context, to Entry, action Action) bool {
	g.mu.Lock()
	slot := g.prompt
	g.mu.Unlock()
	if slot == nil {
		return true
	}

	result := slot.fn(to, action)
	if result.block {
		return false
	}
	if result.message == "" {
		return true
	}
	if g.confirm == nil {
		g.logger.Warn("a history needs a confirmer to use a prompt message", "message", result.message)
		return true
	}
	return g.confirm(ctx, result.message)
}

func (g *gate) appendListener(fn Listener) func() {
	slot := &listenerSlot{fn: fn, active: true}
	g.mu.Lock()
	g.listeners = append(g.listeners, slot)
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		slot.active = false
		for i, l := range g.listeners {
			if l == slot {
				g.listeners = append(g.listeners[:i:i], g.listeners[i+1:]...)
				break
			}
		}
	}
}

// notify calls every listener that is still subscribed. It must be called
// without holding any backend lock.
func (g *gate) notify(entry Entry, action Action) {
	g.mu.Lock()
	snapshot := append([]*listenerSlot(nil), g.listeners...)
	g.mu.Unlock()

	for _, l := range snapshot {
		g.mu.Lock()
		active := l.active
		g.mu.Unlock()
		if active {
			l.fn(entry, action)
		}
	}
}
