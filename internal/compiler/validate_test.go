package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/route"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_ValidTable(t *testing.T) {
	errs := Validate([]route.Config{
		{Path: "/", Name: "home", Component: "Home"},
		{Path: "/users/:id", Name: "user", Component: "User", Children: []route.Config{
			{Path: "posts", Component: "UserPosts"},
		}},
		{Path: "/me", Redirect: &route.Redirect{To: &location.Location{Name: "user", Params: map[string]string{"id": "0"}}}},
		{Path: "/people/:id", Redirect: route.RedirectTo("/users/:id")},
		{Path: "/about", Alias: []string{"/info"}, Component: "About"},
		{Path: "*", Component: "NotFound"},
	})
	assert.Empty(t, errs)
}

func TestValidate_Codes(t *testing.T) {
	tests := []struct {
		name    string
		configs []route.Config
		code    string
		field   string
	}{
		{
			name: "duplicate name",
			configs: []route.Config{
				{Path: "/a", Name: "dup"},
				{Path: "/b", Name: "dup"},
			},
			code:  ErrDuplicateName,
			field: "name",
		},
		{
			name:    "duplicate param",
			configs: []route.Config{{Path: "/a/:id/b/:id"}},
			code:    ErrDuplicateParam,
			field:   "path",
		},
		{
			name:    "alias is path",
			configs: []route.Config{{Path: "/a", Alias: []string{"/a"}}},
			code:    ErrAliasIsPath,
			field:   "alias",
		},
		{
			name:    "unmatched alias",
			configs: []route.Config{{Path: "/users/:id", Alias: []string{"/u"}}},
			code:    ErrUnmatchedAlias,
			field:   "alias",
		},
		{
			name:    "invalid redirect",
			configs: []route.Config{{Path: "/a", Redirect: &route.Redirect{}}},
			code:    ErrInvalidRedirect,
			field:   "redirect",
		},
		{
			name:    "invalid pattern",
			configs: []route.Config{{Path: "/:id([)"}},
			code:    ErrInvalidPattern,
			field:   "path",
		},
		{
			name:    "unknown named redirect",
			configs: []route.Config{{Path: "/a", Redirect: route.RedirectToName("missing")}},
			code:    ErrUnknownRedirectTarget,
			field:   "redirect",
		},
		{
			name: "unknown path redirect",
			configs: []route.Config{
				{Path: "/a", Redirect: route.RedirectTo("/nowhere")},
				{Path: "*", Component: "NotFound"},
			},
			code:  ErrUnknownRedirectTarget,
			field: "redirect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.configs)
			require.Len(t, errs, 1, "got %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.NotEmpty(t, errs[0].Message)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	errs := Validate([]route.Config{
		{Path: "/a", Name: "dup"},
		{Path: "/b", Name: "dup"},
		{Path: "/c", Redirect: route.RedirectToName("missing")},
		{Path: "/d", Alias: []string{"/d"}},
	})
	assert.ElementsMatch(t, []string{ErrDuplicateName, ErrUnknownRedirectTarget, ErrAliasIsPath}, codes(errs))
}

func TestValidate_RelativeRedirectResolvesAgainstParent(t *testing.T) {
	errs := Validate([]route.Config{
		{Path: "/settings", Component: "Settings", Children: []route.Config{
			{Path: "", Redirect: route.RedirectTo("profile")},
			{Path: "profile", Component: "Profile"},
		}},
	})
	assert.Empty(t, errs)
}

func TestValidate_FuncRedirectNotChecked(t *testing.T) {
	errs := Validate([]route.Config{
		{Path: "/dyn", Redirect: &route.Redirect{Func: func(*route.Route) location.Location {
			return location.Location{Path: "/nowhere"}
		}}},
	})
	assert.Empty(t, errs)
}

func TestValidationError_Error(t *testing.T) {
	e := ValidationError{Field: "name", Message: "duplicate named route definition", Code: ErrDuplicateName, Path: "/b", Name: "dup"}
	assert.Equal(t, "[E101] /b (dup): name: duplicate named route definition", e.Error())

	e = ValidationError{Field: "path", Message: "bad", Code: ErrInvalidPattern, Path: "/x"}
	assert.Equal(t, "[E106] /x: path: bad", e.Error())
}

func TestFromConfigError_Unclassified(t *testing.T) {
	ve := fromConfigError(errors.New("boom"))
	assert.Equal(t, ErrUnknownConfiguration, ve.Code)
	assert.Equal(t, "boom", ve.Message)
}
