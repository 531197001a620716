package store

import "sync"

type watcher struct {
	getter func(state map[string]any, getters Getters) any
	cb     func(newValue, oldValue any)

	mu    sync.Mutex
	value any
}

type watchOptions struct {
	immediate bool
}

// WatchOption modifies Watch.
type WatchOption func(*watchOptions)

// Immediate calls the callback once at registration with a nil old value.
func Immediate() WatchOption {
	return func(o *watchOptions) {
		o.immediate = true
	}
}

// Watch re-evaluates getter after every state change and calls cb when the
// result differs deeply from the previous one. getter runs with the store
// locked. The returned func stops watching.
func (s *Store) Watch(getter func(state map[string]any, getters Getters) any, cb func(newValue, oldValue any), opts ...WatchOption) func() {
	var o watchOptions
	for _, opt := range opts {
		opt(&o)
	}

	w := &watcher{getter: getter, cb: cb}
	initial := s.evaluate(w)
	w.value = initial

	s.subsMu.Lock()
	s.watchers = append(s.watchers, w)
	s.subsMu.Unlock()

	if o.immediate {
		s.safeCall("watcher", func() { cb(initial, nil) })
	}
	return unsubscribeOnce(func() {
		s.subsMu.Lock()
		s.watchers = removeSub(s.watchers, w)
		s.subsMu.Unlock()
	})
}

func (s *Store) evaluate(w *watcher) any {
	s.lock()
	defer s.mu.Unlock()
	return deepCopy(w.getter(s.state, getterView{s: s, locked: true}))
}

func (s *Store) runWatchers() {
	s.subsMu.Lock()
	watchers := append([]*watcher(nil), s.watchers...)
	s.subsMu.Unlock()

	for _, w := range watchers {
		next := s.evaluate(w)
		w.mu.Lock()
		if stateEqual(next, w.value) {
			w.mu.Unlock()
			continue
		}
		prev := w.value
		w.value = next
		w.mu.Unlock()
		s.safeCall("watcher", func() { w.cb(next, prev) })
	}
}
