package store

import (
	"context"
	"slices"
	"strings"
)

// MutationFunc changes a module's local state. It runs with the store
// locked and must not call back into the store.
type MutationFunc func(state map[string]any, payload any)

// GetterFunc derives a value. getters is the module-local view and
// rootGetters the global one.
type GetterFunc func(state map[string]any, getters Getters, rootState map[string]any, rootGetters Getters) any

// ActionFunc performs work and commits mutations through ac.
type ActionFunc func(ctx context.Context, ac *ActionContext, payload any) (any, error)

// Action is a registered action. A Root action of a namespaced module is
// registered under its bare name.
type Action struct {
	Handler ActionFunc
	Root    bool
}

// Act wraps fn as a non-root Action.
func Act(fn ActionFunc) Action {
	return Action{Handler: fn}
}

// Module is one node of the store definition.
type Module struct {
	Namespaced bool
	// State builds the module's initial state. A factory keeps state
	// separate when one definition is registered more than once.
	State     func() map[string]any
	Getters   map[string]GetterFunc
	Mutations map[string]MutationFunc
	Actions   map[string]Action
	Modules   map[string]*Module
}

// moduleNode is the installed form of a Module.
type moduleNode struct {
	raw        *Module
	runtime    bool
	namespaced bool
	state      map[string]any
	children   map[string]*moduleNode
	// order lists children in install order: static ones by name, then
	// runtime ones as they were registered.
	order []string
}

func newModuleNode(raw *Module, runtime bool) *moduleNode {
	if raw == nil {
		raw = &Module{}
	}
	n := &moduleNode{
		raw:        raw,
		runtime:    runtime,
		namespaced: raw.Namespaced,
		children:   make(map[string]*moduleNode),
	}
	if raw.State != nil {
		n.state = raw.State()
	}
	if n.state == nil {
		n.state = map[string]any{}
	}
	for _, name := range sortedKeys(raw.Modules) {
		n.addChild(name, newModuleNode(raw.Modules[name], runtime))
	}
	return n
}

func (n *moduleNode) addChild(name string, child *moduleNode) {
	n.children[name] = child
	n.order = append(n.order, name)
}

func (n *moduleNode) removeChild(name string) {
	delete(n.children, name)
	n.order = slices.DeleteFunc(n.order, func(c string) bool { return c == name })
}

// update swaps handler tables in place, keeping state. New children are
// not added; it reports their paths.
func (n *moduleNode) update(raw *Module, path []string) (skipped [][]string) {
	n.namespaced = raw.Namespaced
	n.raw = &Module{
		Namespaced: raw.Namespaced,
		State:      n.raw.State,
		Getters:    raw.Getters,
		Mutations:  raw.Mutations,
		Actions:    raw.Actions,
		Modules:    n.raw.Modules,
	}
	for _, name := range sortedKeys(raw.Modules) {
		child := n.children[name]
		childPath := append(slices.Clone(path), name)
		if child == nil {
			skipped = append(skipped, childPath)
			continue
		}
		skipped = append(skipped, child.update(raw.Modules[name], childPath)...)
	}
	return skipped
}

func (n *moduleNode) get(path []string) *moduleNode {
	cur := n
	for _, name := range path {
		if cur = cur.children[name]; cur == nil {
			return nil
		}
	}
	return cur
}

// namespace returns the handler prefix for path, e.g. "cart/items/".
func (n *moduleNode) namespace(path []string) string {
	var b strings.Builder
	cur := n
	for _, name := range path {
		cur = cur.children[name]
		if cur == nil {
			break
		}
		if cur.namespaced {
			b.WriteString(name)
			b.WriteByte('/')
		}
	}
	return b.String()
}

// nestedState walks the state tree along path.
func nestedState(state map[string]any, path []string) map[string]any {
	cur := state
	for _, name := range path {
		next, ok := cur[name].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
