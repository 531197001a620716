package store

import (
	"slices"
	"strings"
)

// Getters reads derived values by name.
type Getters interface {
	Get(name string) (any, bool)
	Names() []string
}

// getterView resolves names under prefix. A locked view is handed to getter
// functions, which already run with the store locked.
type getterView struct {
	s      *Store
	prefix string
	locked bool
}

func (v getterView) Get(name string) (any, bool) {
	if v.locked {
		return v.s.getterLocked(v.prefix + name)
	}
	v.s.lock()
	defer v.s.mu.Unlock()
	return v.s.getterLocked(v.prefix + name)
}

func (v getterView) Names() []string {
	if !v.locked {
		v.s.lock()
		defer v.s.mu.Unlock()
	}
	var names []string
	for full := range v.s.getters {
		if name, ok := strings.CutPrefix(full, v.prefix); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Getters returns the global getter view.
func (s *Store) Getters() Getters {
	return getterView{s: s}
}

func (s *Store) localGetters(namespace string) Getters {
	return getterView{s: s, prefix: namespace}
}

func (s *Store) getterLocked(name string) (any, bool) {
	e, ok := s.getters[name]
	if !ok {
		return nil, false
	}
	if c, ok := s.cache[name]; ok && c.version == s.version {
		return c.value, true
	}
	if s.evaluating[name] {
		s.logger.Error("getter depends on itself", "getter", name)
		return nil, false
	}
	s.evaluating[name] = true
	defer delete(s.evaluating, name)

	v := e.fn(
		nestedState(s.state, e.path),
		getterView{s: s, prefix: e.namespace, locked: true},
		s.state,
		getterView{s: s, locked: true},
	)
	s.cache[name] = cachedValue{version: s.version, value: v}
	return v, true
}
