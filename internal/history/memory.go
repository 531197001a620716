package history

import (
	"context"
	"log/slog"
	"sync"
)

type config struct {
	keys     KeyFunc
	confirm  Confirmer
	logger   *slog.Logger
	basename string
	entries  []string
	index    int
}

// Option configures a backend.
type Option func(*config)

// WithKeys replaces the key generator.
func WithKeys(fn KeyFunc) Option {
	return func(c *config) {
		c.keys = fn
	}
}

// WithConfirmer sets how prompt messages are put to the user. URL
// backends default to the platform's ConfirmLeave.
func WithConfirmer(fn Confirmer) Option {
	return func(c *config) {
		c.confirm = fn
	}
}

// WithLogger sets the logger for misuse warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithBasename prefixes every URL a URL backend writes.
func WithBasename(base string) Option {
	return func(c *config) {
		c.basename = base
	}
}

// WithInitialEntries seeds a Memory backend. The cursor starts at index.
func WithInitialEntries(paths []string, index int) Option {
	return func(c *config) {
		c.entries = paths
		c.index = index
	}
}

func newConfig(opts []Option) config {
	c := config{keys: RandomKeys, logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Memory is an in-process history stack.
//
// Thread-safety: Memory is safe for concurrent use. Entries and index are
// always updated together under one lock and listeners never run while
// it is held.
type Memory struct {
	gate gate
	keys KeyFunc

	mu      sync.Mutex
	entries []Entry
	index   int
}

var _ History = (*Memory)(nil)

// NewMemory creates a Memory backend starting at "/" unless seeded with
// WithInitialEntries.
func NewMemory(opts ...Option) *Memory {
	cfg := newConfig(opts)
	m := &Memory{
		gate: gate{logger: cfg.logger, confirm: cfg.confirm},
		keys: cfg.keys,
	}

	paths := cfg.entries
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	for _, p := range paths {
		m.entries = append(m.entries, Entry{Key: m.keys(), Path: p})
	}
	m.index = min(max(cfg.index, 0), len(m.entries)-1)
	return m
}

func (m *Memory) Current() Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index]
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Entries returns a copy of the stack.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

func (m *Memory) Push(ctx context.Context, path string, state any) error {
	if !m.Confirm(ctx, Entry{Path: path, State: state}, ActionPush) {
		return ErrBlocked
	}
	m.Apply(ActionPush, path, state)
	return nil
}

func (m *Memory) Replace(ctx context.Context, path string, state any) error {
	if !m.Confirm(ctx, Entry{Path: path, State: state}, ActionReplace) {
		return ErrBlocked
	}
	m.Apply(ActionReplace, path, state)
	return nil
}

func (m *Memory) CanGo(n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.at(n)
	return ok
}

func (m *Memory) Go(ctx context.Context, n int) error {
	m.mu.Lock()
	target, ok := m.at(n)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if !m.gate.confirmTransition(ctx, target, ActionPop) {
		return ErrBlocked
	}

	// The prompt ran unlocked. Move only if n still leads to the entry it
	// approved.
	m.mu.Lock()
	if now, ok := m.at(n); !ok || now.Key != target.Key {
		m.mu.Unlock()
		return nil
	}
	m.index += n
	m.mu.Unlock()
	m.gate.notify(target, ActionPop)
	return nil
}

// at returns the entry n steps from the index. m.mu must be held.
func (m *Memory) at(n int) (Entry, bool) {
	next := m.index + n
	if n == 0 || next < 0 || next >= len(m.entries) {
		return Entry{}, false
	}
	return m.entries[next], true
}

func (m *Memory) Listen(fn Listener) func() {
	return m.gate.appendListener(fn)
}

func (m *Memory) Block(prompt Prompt) func() {
	return m.gate.setPrompt(prompt)
}

func (m *Memory) Confirm(ctx context.Context, to Entry, action Action) bool {
	return m.gate.confirmTransition(ctx, to, action)
}

func (m *Memory) Apply(action Action, path string, state any) Entry {
	entry := m.write(action, path, state)
	m.gate.notify(entry, action)
	return entry
}

func (m *Memory) write(action Action, path string, state any) Entry {
	entry := Entry{Key: m.keys(), Path: path, State: state}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch action {
	case ActionReplace:
		m.entries[m.index] = entry
	default:
		m.entries = append(m.entries[:m.index+1:m.index+1], entry)
		m.index++
	}
	return entry
}

func (m *Memory) Revert(from Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.Key == from.Key {
			m.index = i
			return
		}
	}
}

func (m *Memory) Ensure(path string, push bool) {
	if m.Current().Path == path {
		return
	}
	if push {
		m.write(ActionPush, path, nil)
	} else {
		m.write(ActionReplace, path, nil)
	}
}

func (m *Memory) CreateHref(path string) string {
	return path
}
