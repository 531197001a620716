// Package store implements a hierarchical state container.
//
// State is a tree of maps, one node per module. Mutations are the only
// sanctioned way to change it: Commit runs every handler registered under
// a type, synchronously and in registration order, inside a commit window.
// Actions are dispatched by type as well; when several modules register
// the same action they run concurrently and Dispatch waits for all.
//
// Handler names of a namespaced module are prefixed with its path, e.g.
// "cart/add". Handlers of other modules share the global tables, so equal
// names across them all fire on one Commit.
//
// Getters are recomputed on read when the state version moved since their
// last evaluation. Every commit, replace and module change bumps the
// version.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

type mutationEntry struct {
	path []string
	fn   MutationFunc
}

type actionEntry struct {
	path      []string
	namespace string
	fn        ActionFunc
}

type getterEntry struct {
	path      []string
	namespace string
	fn        GetterFunc
}

type cachedValue struct {
	version uint64
	value   any
}

// Plugin is called once with the new store.
type Plugin func(*Store)

type config struct {
	strict  bool
	plugins []Plugin
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*config)

// WithStrict enables detection of state changes made outside Commit.
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.strict = strict
	}
}

// WithPlugins installs plugins after the module tree.
func WithPlugins(plugins ...Plugin) Option {
	return func(c *config) {
		c.plugins = append(c.plugins, plugins...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Store is a state tree with registered mutations, actions and getters.
//
// Thread-safety: all methods are safe for concurrent use. Mutation and
// getter functions run with the store locked and must not call store
// methods; actions run unlocked.
type Store struct {
	logger *slog.Logger
	strict bool

	mu         sync.Mutex
	root       *moduleNode
	state      map[string]any
	mutations  map[string][]mutationEntry
	actions    map[string][]actionEntry
	getters    map[string]getterEntry
	namespaces map[string]*moduleNode
	version    uint64
	cache      map[string]cachedValue
	evaluating map[string]bool
	snapshot   any

	subsMu     sync.Mutex
	subs       []*mutationSub
	actionSubs []*actionSub
	watchers   []*watcher
}

// New installs root and its children, then runs plugins.
func New(root *Module, opts ...Option) *Store {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store{
		logger: cfg.logger,
		strict: cfg.strict,
		root:   newModuleNode(root, false),
	}
	s.state = s.root.state
	s.mountLocked(nil, s.root)
	s.resetLocked()

	for _, plugin := range cfg.plugins {
		plugin(s)
	}
	return s
}

// Strict reports whether strict mode is on.
func (s *Store) Strict() bool {
	return s.strict
}

// lock acquires the store and raises any pending strict-mode violation.
func (s *Store) lock() {
	s.mu.Lock()
	if !s.strict || s.snapshot == nil || stateEqual(s.snapshot, s.state) {
		return
	}
	s.snapshot = deepCopy(s.state)
	s.mu.Unlock()
	panic(&AssertionError{Message: "do not mutate store state outside mutation handlers"})
}

// sealLocked ends a commit window.
func (s *Store) sealLocked() {
	s.version++
	if s.strict {
		s.snapshot = deepCopy(s.state)
	}
}

// resetLocked rebuilds the handler tables from the module tree. Module
// state is not touched. Handlers of runtime modules keep their place after
// the static ones because the tree is walked in install order.
func (s *Store) resetLocked() {
	s.mutations = make(map[string][]mutationEntry)
	s.actions = make(map[string][]actionEntry)
	s.getters = make(map[string]getterEntry)
	s.namespaces = make(map[string]*moduleNode)
	s.cache = make(map[string]cachedValue)
	s.evaluating = make(map[string]bool)
	s.installLocked(nil, s.root)
	s.sealLocked()
}

func (s *Store) installLocked(path []string, node *moduleNode) {
	namespace := s.root.namespace(path)

	if node.namespaced {
		if _, dup := s.namespaces[namespace]; dup {
			s.logger.Error("duplicate namespace for the namespaced module", "namespace", namespace, "path", path)
		}
		s.namespaces[namespace] = node
	}

	for _, key := range sortedKeys(node.raw.Mutations) {
		typ := namespace + key
		s.mutations[typ] = append(s.mutations[typ], mutationEntry{path: path, fn: node.raw.Mutations[key]})
	}
	for _, key := range sortedKeys(node.raw.Actions) {
		a := node.raw.Actions[key]
		typ := namespace + key
		if a.Root {
			typ = key
		}
		s.actions[typ] = append(s.actions[typ], actionEntry{path: path, namespace: namespace, fn: a.Handler})
	}
	for _, key := range sortedKeys(node.raw.Getters) {
		typ := namespace + key
		if _, dup := s.getters[typ]; dup {
			s.logger.Error("duplicate getter key", "getter", typ)
			continue
		}
		s.getters[typ] = getterEntry{path: path, namespace: namespace, fn: node.raw.Getters[key]}
	}

	for _, name := range node.order {
		s.installLocked(append(slices.Clone(path), name), node.children[name])
	}
}

// mountLocked places the state of node and its descendants into the state
// tree at path.
func (s *Store) mountLocked(path []string, node *moduleNode) {
	if len(path) > 0 {
		parent := nestedState(s.state, path[:len(path)-1])
		name := path[len(path)-1]
		if parent == nil {
			s.logger.Warn("parent state is missing for module", "path", path)
			return
		}
		if _, exists := parent[name]; exists {
			s.logger.Warn("state field is being overridden by a module with the same name", "field", name, "path", path)
		}
		parent[name] = node.state
	}
	for _, name := range node.order {
		s.mountLocked(append(slices.Clone(path), name), node.children[name])
	}
}

// State returns the root state. Reading it while another goroutine
// commits is a data race; use Snapshot for a stable copy.
func (s *Store) State() map[string]any {
	s.lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a deep copy of the root state.
func (s *Store) Snapshot() map[string]any {
	s.lock()
	defer s.mu.Unlock()
	return deepCopy(s.state).(map[string]any)
}

// Version returns the state version counter.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// SetState always panics: state is replaced with ReplaceState.
func (s *Store) SetState(map[string]any) {
	panic(&AssertionError{Message: "use ReplaceState to explicitly replace store state"})
}

// ReplaceState swaps the whole state tree, e.g. for hydration or time
// travel.
func (s *Store) ReplaceState(state map[string]any) {
	if state == nil {
		state = map[string]any{}
	}
	s.lock()
	s.state = state
	s.sealLocked()
	s.mu.Unlock()

	s.runWatchers()
}

// Commit runs every mutation registered under typ.
func (s *Store) Commit(typ string, payload any, opts ...CallOption) error {
	if o := applyCallOptions(opts); o.root {
		s.logger.Debug("root option has no effect on a store-level commit", "type", typ)
	}

	state, ok := s.commit(typ, payload)
	if !ok {
		s.logger.Error("unknown mutation type", "type", typ)
		return NewUnknownTypeError(KindMutation, typ)
	}

	event := MutationEvent{Type: typ, Payload: payload}
	for _, sub := range s.mutationSubs() {
		s.safeCall("mutation subscriber", func() { sub.fn(event, state) })
	}
	s.runWatchers()
	return nil
}

// commit takes the lock for the length of the commit window.
func (s *Store) commit(typ string, payload any) (map[string]any, bool) {
	s.lock()
	defer s.mu.Unlock()

	entries := s.mutations[typ]
	if len(entries) == 0 {
		return nil, false
	}
	defer s.sealLocked()
	for _, e := range entries {
		local := nestedState(s.state, e.path)
		if local == nil {
			s.logger.Warn("mutation target state is missing", "type", typ, "path", e.path)
			continue
		}
		e.fn(local, payload)
	}
	return s.state, true
}

// Dispatch runs every action registered under typ. With one handler its
// result is returned as is; with several they run concurrently and the
// results come back as []any in registration order. The first error to
// occur is returned.
func (s *Store) Dispatch(ctx context.Context, typ string, payload any, opts ...CallOption) (any, error) {
	if o := applyCallOptions(opts); o.root {
		s.logger.Debug("root option has no effect on a store-level dispatch", "type", typ)
	}

	s.lock()
	entries := slices.Clone(s.actions[typ])
	s.mu.Unlock()

	if len(entries) == 0 {
		err := NewUnknownTypeError(KindAction, typ)
		s.logger.Error("unknown action type", "type", typ)
		return nil, err
	}

	event := ActionEvent{Type: typ, Payload: payload}
	subs := s.actionSubscribers()
	for _, sub := range subs {
		if sub.Before != nil {
			s.safeCall("action subscriber", func() { sub.Before(event, s.State()) })
		}
	}

	result, err := s.runActions(ctx, entries, payload)

	for _, sub := range subs {
		switch {
		case err != nil && sub.Error != nil:
			s.safeCall("action subscriber", func() { sub.Error(event, s.State(), err) })
		case err == nil && sub.After != nil:
			s.safeCall("action subscriber", func() { sub.After(event, s.State()) })
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) runActions(ctx context.Context, entries []actionEntry, payload any) (any, error) {
	if len(entries) == 1 {
		return s.runAction(ctx, entries[0], payload)
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	results := make([]any, len(entries))
	for i, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.runAction(ctx, e, payload)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			results[i] = res
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (s *Store) runAction(ctx context.Context, e actionEntry, payload any) (res any, err error) {
	defer func() {
		if v := recover(); v != nil {
			if ae, ok := v.(*AssertionError); ok {
				panic(ae)
			}
			err = fmt.Errorf("action panicked: %v", v)
		}
	}()
	return e.fn(ctx, s.actionContext(e), payload)
}

func (s *Store) safeCall(what string, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			if ae, ok := v.(*AssertionError); ok {
				panic(ae)
			}
			s.logger.Error(what+" panicked", "panic", v)
		}
	}()
	fn()
}
