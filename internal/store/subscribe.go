package store

import (
	"slices"
	"sync"
)

// MutationEvent describes a committed mutation.
type MutationEvent struct {
	Type    string
	Payload any
}

// ActionEvent describes a dispatched action.
type ActionEvent struct {
	Type    string
	Payload any
}

// ActionSubscriber observes dispatches. Any field may be nil.
type ActionSubscriber struct {
	Before func(ActionEvent, map[string]any)
	After  func(ActionEvent, map[string]any)
	Error  func(ActionEvent, map[string]any, error)
}

type mutationSub struct {
	fn func(MutationEvent, map[string]any)
}

type actionSub struct {
	ActionSubscriber
}

type subscribeOptions struct {
	prepend bool
}

// SubscribeOption modifies a subscription.
type SubscribeOption func(*subscribeOptions)

// Prepend places the subscriber before those already registered.
func Prepend() SubscribeOption {
	return func(o *subscribeOptions) {
		o.prepend = true
	}
}

// Subscribe calls fn after every mutation with the post-mutation state.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func(MutationEvent, map[string]any), opts ...SubscribeOption) func() {
	sub := &mutationSub{fn: fn}
	s.subsMu.Lock()
	s.subs = addSub(s.subs, sub, opts)
	s.subsMu.Unlock()

	return unsubscribeOnce(func() {
		s.subsMu.Lock()
		s.subs = removeSub(s.subs, sub)
		s.subsMu.Unlock()
	})
}

// SubscribeAction observes every dispatch.
func (s *Store) SubscribeAction(sub ActionSubscriber, opts ...SubscribeOption) func() {
	as := &actionSub{ActionSubscriber: sub}
	s.subsMu.Lock()
	s.actionSubs = addSub(s.actionSubs, as, opts)
	s.subsMu.Unlock()

	return unsubscribeOnce(func() {
		s.subsMu.Lock()
		s.actionSubs = removeSub(s.actionSubs, as)
		s.subsMu.Unlock()
	})
}

func (s *Store) mutationSubs() []*mutationSub {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return slices.Clone(s.subs)
}

func (s *Store) actionSubscribers() []*actionSub {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return slices.Clone(s.actionSubs)
}

func addSub[T any](subs []*T, sub *T, opts []SubscribeOption) []*T {
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.prepend {
		return slices.Insert(subs, 0, sub)
	}
	return append(subs, sub)
}

func removeSub[T any](subs []*T, sub *T) []*T {
	i := slices.Index(subs, sub)
	if i < 0 {
		return subs
	}
	return slices.Delete(slices.Clone(subs), i, i+1)
}

func unsubscribeOnce(fn func()) func() {
	var once sync.Once
	return func() { once.Do(fn) }
}
