package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tagged is a non-namespaced module whose "inc" handler records tag.
func tagged(c *calls, tag string) *Module {
	return &Module{
		Mutations: map[string]MutationFunc{
			"inc": func(map[string]any, any) { c.add(tag) },
		},
	}
}

func TestRegisterModule_HandlersRunAfterExisting(t *testing.T) {
	c := &calls{}
	s := New(&Module{Modules: map[string]*Module{"z": tagged(c, "z")}})

	require.NoError(t, s.RegisterModule([]string{"a"}, tagged(c, "a")))
	require.NoError(t, s.RegisterModule([]string{"m"}, tagged(c, "m")))
	require.NoError(t, s.Commit("inc", nil))

	assert.Equal(t, []string{"z", "a", "m"}, c.list())
}

func TestRegisterModule_NestedRuntimeChildAppends(t *testing.T) {
	c := &calls{}
	s := New(&Module{Modules: map[string]*Module{
		"b": tagged(c, "b"),
		"y": tagged(c, "y"),
	}})

	require.NoError(t, s.RegisterModule([]string{"b", "a"}, tagged(c, "b/a")))
	require.NoError(t, s.Commit("inc", nil))

	assert.Equal(t, []string{"b", "y", "b/a"}, c.list())
}

func TestRegisterModule_OrderSurvivesRebuild(t *testing.T) {
	c := &calls{}
	s := New(&Module{Modules: map[string]*Module{"z": tagged(c, "z")}})
	require.NoError(t, s.RegisterModule([]string{"c"}, tagged(c, "c")))
	require.NoError(t, s.RegisterModule([]string{"a"}, tagged(c, "a")))
	require.NoError(t, s.RegisterModule([]string{"b"}, tagged(c, "b")))

	require.NoError(t, s.UnregisterModule([]string{"a"}))
	require.NoError(t, s.Commit("inc", nil))

	assert.Equal(t, []string{"z", "c", "b"}, c.list())
}

func TestRegisterModule_ReregisterGoesLast(t *testing.T) {
	c := &calls{}
	s := New(nil)
	require.NoError(t, s.RegisterModule([]string{"a"}, tagged(c, "a")))
	require.NoError(t, s.RegisterModule([]string{"b"}, tagged(c, "b")))
	require.NoError(t, s.UnregisterModule([]string{"a"}))
	require.NoError(t, s.RegisterModule([]string{"a"}, tagged(c, "a")))

	require.NoError(t, s.Commit("inc", nil))
	assert.Equal(t, []string{"b", "a"}, c.list())
}

func TestRegisterModule_GettersSeeNewModule(t *testing.T) {
	s := New(&Module{Modules: map[string]*Module{"one": counter(true)}})
	_, ok := s.Getters().Get("two/double")
	assert.False(t, ok)

	require.NoError(t, s.RegisterModule([]string{"two"}, counter(true)))
	require.NoError(t, s.Commit("two/inc", 3))

	v, ok := s.Getters().Get("two/double")
	require.True(t, ok)
	assert.Equal(t, 6, v)
}
