package store

import "slices"

type registerOptions struct {
	preserveState bool
}

// RegisterOption modifies RegisterModule.
type RegisterOption func(*registerOptions)

// PreserveState keeps the state already present at the module path, e.g.
// after ReplaceState hydrated it.
func PreserveState() RegisterOption {
	return func(o *registerOptions) {
		o.preserveState = true
	}
}

// RegisterModule installs raw at path. Its handlers are appended to the
// existing tables, so they run after every handler registered before.
func (s *Store) RegisterModule(path []string, raw *Module, opts ...RegisterOption) error {
	if len(path) == 0 {
		return &ModuleError{Path: path, Message: "cannot register the root module"}
	}
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.lock()
	parent := s.root.get(path[:len(path)-1])
	name := path[len(path)-1]
	switch {
	case parent == nil:
		s.mu.Unlock()
		return &ModuleError{Path: path, Message: "parent module is not registered"}
	case parent.children[name] != nil:
		s.mu.Unlock()
		return &ModuleError{Path: path, Message: "module is already registered"}
	}

	node := newModuleNode(raw, true)
	parent.addChild(name, node)
	if !o.preserveState {
		s.mountLocked(slices.Clone(path), node)
	}
	s.installLocked(slices.Clone(path), node)
	s.cache = make(map[string]cachedValue)
	s.sealLocked()
	s.mu.Unlock()

	s.logger.Debug("module registered", "path", path)
	s.runWatchers()
	return nil
}

// UnregisterModule removes a module added with RegisterModule together
// with its state.
func (s *Store) UnregisterModule(path []string) error {
	if len(path) == 0 {
		return &ModuleError{Path: path, Message: "cannot unregister the root module"}
	}

	s.lock()
	parent := s.root.get(path[:len(path)-1])
	name := path[len(path)-1]
	var node *moduleNode
	if parent != nil {
		node = parent.children[name]
	}
	switch {
	case node == nil:
		s.mu.Unlock()
		return &ModuleError{Path: path, Message: "module is not registered"}
	case !node.runtime:
		s.mu.Unlock()
		return &ModuleError{Path: path, Message: "cannot unregister a static module"}
	}

	parent.removeChild(name)
	if parentState := nestedState(s.state, path[:len(path)-1]); parentState != nil {
		delete(parentState, name)
	}
	s.resetLocked()
	s.mu.Unlock()

	s.logger.Debug("module unregistered", "path", path)
	s.runWatchers()
	return nil
}

// HasModule reports whether a module is installed at path.
func (s *Store) HasModule(path []string) bool {
	s.lock()
	defer s.mu.Unlock()
	return s.root.get(path) != nil
}

// HotUpdate swaps the handlers of the installed tree for those of newRoot
// and keeps all state. Child modules that are not installed yet are
// skipped; adding them needs a new Store.
func (s *Store) HotUpdate(newRoot *Module) {
	if newRoot == nil {
		newRoot = &Module{}
	}

	s.lock()
	skipped := s.root.update(newRoot, nil)
	s.resetLocked()
	s.mu.Unlock()

	for _, path := range skipped {
		s.logger.Warn("new module added during hot update, manual reload is needed", "path", path)
	}
	s.runWatchers()
}
