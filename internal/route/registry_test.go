package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PathNormalization(t *testing.T) {
	reg := NewRegistry(nil, nil)
	errs := reg.Add([]Config{
		{Path: "/parent/", Children: []Config{
			{Path: "child/"},
			{Path: "/absolute"},
		}},
		{Path: "/strict/", Strict: true},
	})
	require.Empty(t, errs)

	paths := reg.Paths()
	assert.Equal(t, []string{"/parent/child", "/absolute", "/parent", "/strict/"}, paths)

	rec, ok := reg.ByPath("/parent/child")
	require.True(t, ok)
	require.NotNil(t, rec.Parent)
	assert.Equal(t, "/parent", rec.Parent.Path)
}

func TestRegistry_DuplicateNameFirstWins(t *testing.T) {
	reg := NewRegistry(nil, nil)
	errs := reg.Add([]Config{
		{Path: "/one", Name: "dup"},
		{Path: "/two", Name: "dup"},
	})
	require.Len(t, errs, 1)
	assert.True(t, HasCode(errs[0], ErrCodeDuplicateName))

	rec, ok := reg.ByName("dup")
	require.True(t, ok)
	assert.Equal(t, "/one", rec.Path)
	_, ok = reg.ByPath("/two")
	assert.True(t, ok, "the second record is still registered by path")
}

func TestRegistry_DuplicateParam(t *testing.T) {
	reg := NewRegistry(nil, nil)
	errs := reg.Add([]Config{{Path: "/:id/x/:id"}})
	require.Len(t, errs, 1)
	assert.True(t, HasCode(errs[0], ErrCodeDuplicateParam))
}

func TestRegistry_AliasEqualToPath(t *testing.T) {
	reg := NewRegistry(nil, nil)
	errs := reg.Add([]Config{{Path: "/a", Alias: []string{"/a", "/b"}}})
	require.Len(t, errs, 1)
	assert.True(t, HasCode(errs[0], ErrCodeAliasIsPath))

	rec, ok := reg.ByPath("/b")
	require.True(t, ok)
	assert.True(t, rec.IsAlias())
	assert.Equal(t, "/a", rec.MatchAs)
}

func TestRegistry_UnmatchedAlias(t *testing.T) {
	reg := NewRegistry(nil, nil)
	errs := reg.Add([]Config{{Path: "/users/:id", Alias: []string{"/me"}}})
	require.Len(t, errs, 1)
	assert.True(t, HasCode(errs[0], ErrCodeUnmatchedAlias))
}

func TestRegistry_InvalidRedirect(t *testing.T) {
	reg := NewRegistry(nil, nil)
	errs := reg.Add([]Config{{Path: "/r", Redirect: &Redirect{}}})
	require.Len(t, errs, 1)
	assert.True(t, IsConfigurationError(errs[0]))
	assert.True(t, HasCode(errs[0], ErrCodeInvalidRedirect))
}

func TestRegistry_FirstPathWins(t *testing.T) {
	reg := NewRegistry(nil, nil)
	require.Empty(t, reg.Add([]Config{
		{Path: "/same", Name: "first"},
		{Path: "/same", Name: "second"},
	}))

	rec, _ := reg.ByPath("/same")
	assert.Equal(t, "first", rec.Name)
	assert.Len(t, reg.Records(), 2)
	assert.Equal(t, 1, reg.Records()[1].Index())
}

func TestRegistry_MultipleWildcardsStayLast(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.Add([]Config{{Path: "*"}, {Path: "/a"}})
	reg.Add([]Config{{Path: "/b"}})
	assert.Equal(t, []string{"/a", "/b", "*"}, reg.Paths())
}
