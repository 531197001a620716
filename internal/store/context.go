package store

import "context"

type callOptions struct {
	root bool
}

// CallOption modifies a Commit or Dispatch call.
type CallOption func(*callOptions)

// Root makes a local commit or dispatch address the global type instead of
// the module's namespaced one.
func Root() CallOption {
	return func(o *callOptions) {
		o.root = true
	}
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ActionContext is the module-local view handed to an action.
type ActionContext struct {
	Dispatch    func(ctx context.Context, typ string, payload any, opts ...CallOption) (any, error)
	Commit      func(typ string, payload any, opts ...CallOption) error
	Getters     Getters
	State       func() map[string]any
	RootGetters Getters
	RootState   func() map[string]any
}

func (s *Store) actionContext(e actionEntry) *ActionContext {
	return s.localContext(e.path, e.namespace)
}

func (s *Store) localContext(path []string, namespace string) *ActionContext {
	ac := &ActionContext{
		Getters:     s.localGetters(namespace),
		RootGetters: s.localGetters(""),
		RootState:   s.State,
		State: func() map[string]any {
			s.lock()
			defer s.mu.Unlock()
			return nestedState(s.state, path)
		},
	}
	if namespace == "" {
		ac.Commit = s.Commit
		ac.Dispatch = s.Dispatch
		return ac
	}

	ac.Commit = func(typ string, payload any, opts ...CallOption) error {
		if !applyCallOptions(opts).root {
			typ = namespace + typ
		}
		return s.Commit(typ, payload)
	}
	ac.Dispatch = func(ctx context.Context, typ string, payload any, opts ...CallOption) (any, error) {
		if !applyCallOptions(opts).root {
			typ = namespace + typ
		}
		return s.Dispatch(ctx, typ, payload)
	}
	return ac
}
