package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calls struct {
	mu  sync.Mutex
	got []string
}

func (c *calls) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, s)
}

func (c *calls) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

func counter(namespaced bool) *Module {
	return &Module{
		Namespaced: namespaced,
		State:      func() map[string]any { return map[string]any{"count": 0} },
		Mutations: map[string]MutationFunc{
			"inc": func(state map[string]any, payload any) {
				state["count"] = state["count"].(int) + payload.(int)
			},
		},
		Getters: map[string]GetterFunc{
			"double": func(state map[string]any, _ Getters, _ map[string]any, _ Getters) any {
				return state["count"].(int) * 2
			},
		},
		Actions: map[string]Action{
			"incLater": Act(func(_ context.Context, ac *ActionContext, payload any) (any, error) {
				return nil, ac.Commit("inc", payload)
			}),
		},
	}
}

func TestCommit_RunsEveryHandlerInOrder(t *testing.T) {
	var c calls
	record := func(name string) MutationFunc {
		return func(map[string]any, any) { c.add(name) }
	}
	s := New(&Module{
		Mutations: map[string]MutationFunc{"touch": record("root")},
		Modules: map[string]*Module{
			"b": {Mutations: map[string]MutationFunc{"touch": record("b")}},
			"a": {Mutations: map[string]MutationFunc{"touch": record("a")}},
		},
	})

	require.NoError(t, s.Commit("touch", nil))
	assert.Equal(t, []string{"root", "a", "b"}, c.list())
}

func TestCommit_UnknownType(t *testing.T) {
	s := New(counter(false))
	before := s.Version()

	err := s.Commit("nope", 1)

	require.Error(t, err)
	assert.True(t, IsUnknownType(err))
	assert.Equal(t, before, s.Version())
	assert.Equal(t, 0, s.State()["count"])
}

func TestCommit_LocalState(t *testing.T) {
	s := New(&Module{Modules: map[string]*Module{"counter": counter(false)}})

	require.NoError(t, s.Commit("inc", 3))

	assert.Equal(t, 3, s.State()["counter"].(map[string]any)["count"])
}

func TestNamespaces_IsolateHandlers(t *testing.T) {
	s := New(&Module{
		Modules: map[string]*Module{
			"left":  counter(true),
			"right": counter(true),
		},
	})

	require.NoError(t, s.Commit("left/inc", 2))
	assert.True(t, IsUnknownType(s.Commit("inc", 1)))

	st := s.Snapshot()
	assert.Equal(t, 2, st["left"].(map[string]any)["count"])
	assert.Equal(t, 0, st["right"].(map[string]any)["count"])

	v, ok := s.Getters().Get("left/double")
	require.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestNamespaces_NestedPrefix(t *testing.T) {
	s := New(&Module{
		Modules: map[string]*Module{
			"shop": {
				Namespaced: true,
				Modules: map[string]*Module{
					"plain": {Modules: map[string]*Module{"cart": counter(true)}},
				},
			},
		},
	})

	require.NoError(t, s.Commit("shop/cart/inc", 1))
	names := s.Getters().Names()
	assert.Equal(t, []string{"shop/cart/double"}, names)
}

func TestActionContext_LocalAndRoot(t *testing.T) {
	var c calls
	s := New(&Module{
		Mutations: map[string]MutationFunc{
			"log": func(_ map[string]any, payload any) { c.add(payload.(string)) },
		},
		Modules: map[string]*Module{
			"cart": {
				Namespaced: true,
				State:      func() map[string]any { return map[string]any{"items": []any{}} },
				Mutations: map[string]MutationFunc{
					"add": func(state map[string]any, payload any) {
						state["items"] = append(state["items"].([]any), payload)
					},
				},
				Getters: map[string]GetterFunc{
					"size": func(state map[string]any, _ Getters, _ map[string]any, _ Getters) any {
						return len(state["items"].([]any))
					},
				},
				Actions: map[string]Action{
					"checkout": Act(func(_ context.Context, ac *ActionContext, payload any) (any, error) {
						if err := ac.Commit("add", payload); err != nil {
							return nil, err
						}
						if err := ac.Commit("log", "added", Root()); err != nil {
							return nil, err
						}
						size, _ := ac.Getters.Get("size")
						rootSize, _ := ac.RootGetters.Get("cart/size")
						return []any{size, rootSize, len(ac.State()["items"].([]any))}, nil
					}),
					"global": {
						Root: true,
						Handler: func(context.Context, *ActionContext, any) (any, error) {
							return "root", nil
						},
					},
				},
			},
		},
	})

	res, err := s.Dispatch(context.Background(), "cart/checkout", "apple")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 1, 1}, res)
	assert.Equal(t, []string{"added"}, c.list())

	res, err = s.Dispatch(context.Background(), "global", nil)
	require.NoError(t, err)
	assert.Equal(t, "root", res)

	_, err = s.Dispatch(context.Background(), "cart/global", nil)
	assert.True(t, IsUnknownType(err))
}

func TestDispatch_SingleHandlerResult(t *testing.T) {
	s := New(counter(false))

	res, err := s.Dispatch(context.Background(), "incLater", 5)

	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 5, s.State()["count"])
}

func TestDispatch_ManyHandlersRunConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	handler := func(v int) Action {
		return Act(func(context.Context, *ActionContext, any) (any, error) {
			started.Done()
			started.Wait()
			return v, nil
		})
	}
	s := New(&Module{
		Modules: map[string]*Module{
			"a": {Actions: map[string]Action{"load": handler(1)}},
			"b": {Actions: map[string]Action{"load": handler(2)}},
		},
	})

	res, err := s.Dispatch(context.Background(), "load", nil)

	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, res)
}

func TestDispatch_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	s := New(&Module{
		Modules: map[string]*Module{
			"a": {Actions: map[string]Action{"load": Act(func(context.Context, *ActionContext, any) (any, error) {
				return 1, nil
			})}},
			"b": {Actions: map[string]Action{"load": Act(func(context.Context, *ActionContext, any) (any, error) {
				return nil, boom
			})}},
		},
	})

	res, err := s.Dispatch(context.Background(), "load", nil)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
}

func TestDispatch_PanicBecomesError(t *testing.T) {
	s := New(&Module{Actions: map[string]Action{
		"bad": Act(func(context.Context, *ActionContext, any) (any, error) {
			panic("nope")
		}),
	}})

	_, err := s.Dispatch(context.Background(), "bad", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestDispatch_UnknownType(t *testing.T) {
	s := New(nil)
	_, err := s.Dispatch(context.Background(), "missing", nil)
	assert.True(t, IsUnknownType(err))
	var ue *UnknownTypeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, KindAction, ue.Kind)
}

func TestSubscribe_OrderPrependAndUnsubscribe(t *testing.T) {
	var c calls
	s := New(counter(false))

	unsubA := s.Subscribe(func(m MutationEvent, state map[string]any) {
		c.add("a " + m.Type)
	})
	s.Subscribe(func(MutationEvent, map[string]any) { c.add("first") }, Prepend())
	s.Subscribe(func(_ MutationEvent, state map[string]any) {
		assert.Equal(t, 1, state["count"])
	})

	require.NoError(t, s.Commit("inc", 1))
	assert.Equal(t, []string{"first", "a inc"}, c.list())

	unsubA()
	unsubA()
	require.NoError(t, s.Commit("inc", 0))
	assert.Equal(t, []string{"first", "a inc", "first"}, c.list())
}

func TestSubscribeAction_BeforeAfterError(t *testing.T) {
	var c calls
	s := New(&Module{
		State: func() map[string]any { return map[string]any{} },
		Actions: map[string]Action{
			"ok": Act(func(context.Context, *ActionContext, any) (any, error) {
				c.add("run")
				return nil, nil
			}),
			"fail": Act(func(context.Context, *ActionContext, any) (any, error) {
				return nil, errors.New("bad")
			}),
		},
	})
	s.SubscribeAction(ActionSubscriber{
		Before: func(a ActionEvent, _ map[string]any) { c.add("before " + a.Type) },
		After:  func(a ActionEvent, _ map[string]any) { c.add("after " + a.Type) },
		Error:  func(a ActionEvent, _ map[string]any, err error) { c.add("error " + a.Type + " " + err.Error()) },
	})

	_, err := s.Dispatch(context.Background(), "ok", nil)
	require.NoError(t, err)
	_, err = s.Dispatch(context.Background(), "fail", nil)
	require.Error(t, err)

	assert.Equal(t, []string{
		"before ok", "run", "after ok",
		"before fail", "error fail bad",
	}, c.list())
}

func TestGetters_CachedByVersion(t *testing.T) {
	evals := 0
	s := New(&Module{
		State: func() map[string]any { return map[string]any{"n": 1} },
		Mutations: map[string]MutationFunc{
			"set": func(state map[string]any, payload any) { state["n"] = payload },
		},
		Getters: map[string]GetterFunc{
			"n": func(state map[string]any, _ Getters, _ map[string]any, _ Getters) any {
				evals++
				return state["n"]
			},
			"plusOne": func(_ map[string]any, getters Getters, _ map[string]any, _ Getters) any {
				n, _ := getters.Get("n")
				return n.(int) + 1
			},
		},
	})

	v, _ := s.Getters().Get("plusOne")
	assert.Equal(t, 2, v)
	v, _ = s.Getters().Get("n")
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, evals)

	require.NoError(t, s.Commit("set", 10))
	v, _ = s.Getters().Get("plusOne")
	assert.Equal(t, 11, v)
	assert.Equal(t, 2, evals)

	_, ok := s.Getters().Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"n", "plusOne"}, s.Getters().Names())
}

func TestGetters_SelfReference(t *testing.T) {
	s := New(&Module{Getters: map[string]GetterFunc{
		"loop": func(_ map[string]any, getters Getters, _ map[string]any, _ Getters) any {
			v, ok := getters.Get("loop")
			return []any{v, ok}
		},
	}})

	v, ok := s.Getters().Get("loop")
	require.True(t, ok)
	assert.Equal(t, []any{nil, false}, v)
}

func TestStrict_MutationOutsideCommitPanics(t *testing.T) {
	s := New(counter(false), WithStrict(true))
	require.NoError(t, s.Commit("inc", 1))

	s.State()["count"] = 99

	assert.PanicsWithError(t, "store: do not mutate store state outside mutation handlers", func() {
		_ = s.Commit("inc", 1)
	})
	// The violation is reported once.
	require.NoError(t, s.Commit("inc", 1))
	assert.Equal(t, 100, s.State()["count"])
}

func TestStrict_OffAllowsDirectWrites(t *testing.T) {
	s := New(counter(false))
	s.State()["count"] = 7
	require.NoError(t, s.Commit("inc", 1))
	assert.Equal(t, 8, s.State()["count"])
}

func TestSetState_Panics(t *testing.T) {
	s := New(nil)
	assert.Panics(t, func() { s.SetState(map[string]any{}) })
}

func TestReplaceState(t *testing.T) {
	s := New(counter(false), WithStrict(true))
	v, _ := s.Getters().Get("double")
	assert.Equal(t, 0, v)
	before := s.Version()

	s.ReplaceState(map[string]any{"count": 21})

	assert.Greater(t, s.Version(), before)
	v, _ = s.Getters().Get("double")
	assert.Equal(t, 42, v)
	require.NoError(t, s.Commit("inc", 1))
	assert.Equal(t, 22, s.State()["count"])
}

func TestSnapshot_IsIndependent(t *testing.T) {
	s := New(&Module{State: func() map[string]any {
		return map[string]any{"list": []any{map[string]any{"a": 1}}}
	}})

	snap := s.Snapshot()
	snap["list"].([]any)[0].(map[string]any)["a"] = 2

	assert.Equal(t, 1, s.State()["list"].([]any)[0].(map[string]any)["a"])
}

func TestWatch(t *testing.T) {
	s := New(&Module{
		State: func() map[string]any { return map[string]any{"a": 1, "b": 1} },
		Mutations: map[string]MutationFunc{
			"a": func(state map[string]any, payload any) { state["a"] = payload },
			"b": func(state map[string]any, payload any) { state["b"] = payload },
		},
	})

	var got [][2]any
	stop := s.Watch(func(state map[string]any, _ Getters) any {
		return state["a"]
	}, func(newValue, oldValue any) {
		got = append(got, [2]any{newValue, oldValue})
	}, Immediate())

	require.NoError(t, s.Commit("b", 5))
	require.NoError(t, s.Commit("a", 2))
	require.NoError(t, s.Commit("a", 2))
	stop()
	require.NoError(t, s.Commit("a", 3))

	assert.Equal(t, [][2]any{{1, nil}, {2, 1}}, got)
}

func TestWatch_DeepComparison(t *testing.T) {
	s := New(&Module{
		State: func() map[string]any { return map[string]any{"items": []any{}} },
		Mutations: map[string]MutationFunc{
			"push": func(state map[string]any, payload any) {
				state["items"] = append(state["items"].([]any), payload)
			},
			"noop": func(map[string]any, any) {},
		},
	})

	changes := 0
	s.Watch(func(state map[string]any, _ Getters) any {
		return state["items"]
	}, func(any, any) { changes++ })

	require.NoError(t, s.Commit("push", "x"))
	require.NoError(t, s.Commit("noop", nil))
	assert.Equal(t, 1, changes)
}

func TestRegisterModule(t *testing.T) {
	s := New(&Module{State: func() map[string]any { return map[string]any{} }})

	require.NoError(t, s.RegisterModule([]string{"counter"}, counter(true)))
	assert.True(t, s.HasModule([]string{"counter"}))

	require.NoError(t, s.Commit("counter/inc", 4))
	v, ok := s.Getters().Get("counter/double")
	require.True(t, ok)
	assert.Equal(t, 8, v)

	require.NoError(t, s.UnregisterModule([]string{"counter"}))
	assert.False(t, s.HasModule([]string{"counter"}))
	assert.NotContains(t, s.State(), "counter")
	assert.True(t, IsUnknownType(s.Commit("counter/inc", 1)))
	_, ok = s.Getters().Get("counter/double")
	assert.False(t, ok)
}

func TestRegisterModule_Errors(t *testing.T) {
	s := New(&Module{Modules: map[string]*Module{"static": counter(true)}})

	var me *ModuleError
	assert.ErrorAs(t, s.RegisterModule(nil, counter(false)), &me)
	assert.ErrorAs(t, s.RegisterModule([]string{"missing", "child"}, counter(false)), &me)
	assert.ErrorAs(t, s.RegisterModule([]string{"static"}, counter(false)), &me)
	assert.ErrorAs(t, s.UnregisterModule([]string{"static"}), &me)
	assert.ErrorAs(t, s.UnregisterModule([]string{"ghost"}), &me)
	assert.True(t, s.HasModule([]string{"static"}))
}

func TestRegisterModule_Nested(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.RegisterModule([]string{"shop"}, &Module{Namespaced: true}))
	require.NoError(t, s.RegisterModule([]string{"shop", "cart"}, counter(true)))

	require.NoError(t, s.Commit("shop/cart/inc", 1))
	assert.Equal(t, 1, s.State()["shop"].(map[string]any)["cart"].(map[string]any)["count"])
}

func TestRegisterModule_PreserveState(t *testing.T) {
	s := New(nil)
	s.ReplaceState(map[string]any{"counter": map[string]any{"count": 40}})

	require.NoError(t, s.RegisterModule([]string{"counter"}, counter(true), PreserveState()))
	require.NoError(t, s.Commit("counter/inc", 2))

	assert.Equal(t, 42, s.State()["counter"].(map[string]any)["count"])
}

func TestHotUpdate_SwapsHandlersKeepsState(t *testing.T) {
	s := New(&Module{Modules: map[string]*Module{"counter": counter(true)}})
	require.NoError(t, s.Commit("counter/inc", 2))

	next := counter(true)
	next.Mutations["inc"] = func(state map[string]any, payload any) {
		state["count"] = state["count"].(int) * payload.(int)
	}
	s.HotUpdate(&Module{Modules: map[string]*Module{
		"counter": next,
		"fresh":   counter(true),
	}})

	require.NoError(t, s.Commit("counter/inc", 10))
	assert.Equal(t, 20, s.State()["counter"].(map[string]any)["count"])
	assert.False(t, s.HasModule([]string{"fresh"}))
}

func TestHotUpdate_NamespaceChange(t *testing.T) {
	s := New(&Module{Modules: map[string]*Module{"counter": counter(false)}})
	require.NoError(t, s.Commit("inc", 1))

	s.HotUpdate(&Module{Modules: map[string]*Module{"counter": counter(true)}})

	assert.True(t, IsUnknownType(s.Commit("inc", 1)))
	require.NoError(t, s.Commit("counter/inc", 1))
	assert.Equal(t, 2, s.State()["counter"].(map[string]any)["count"])
}

func TestPlugins_RunAtConstruction(t *testing.T) {
	var seen *Store
	s := New(nil, WithPlugins(func(st *Store) { seen = st }))
	assert.Same(t, s, seen)
}

func TestModuleState_FactoryPerRegistration(t *testing.T) {
	shared := counter(true)
	s := New(&Module{Modules: map[string]*Module{"a": shared, "b": shared}})

	require.NoError(t, s.Commit("a/inc", 1))

	st := s.Snapshot()
	assert.Equal(t, 1, st["a"].(map[string]any)["count"])
	assert.Equal(t, 0, st["b"].(map[string]any)["count"])
}
