// Package compiler turns CUE route tables into route configurations and
// checks them before they reach a router.
//
// A route file declares a top-level list:
//
//	routes: [
//		{path: "/", name: "home", component: "Home"},
//		{path: "/users/:id", name: "user", component: "User", meta: {auth: true},
//			children: [{path: "posts", component: "UserPosts"}]},
//		{path: "/me", redirect: {name: "user", params: {id: "0"}}},
//		{path: "/people/:id", redirect: "/users/:id"},
//		{path: "/about", alias: ["/info", "/company"], component: "About"},
//		{path: "*", component: "NotFound"},
//	]
//
// Components are names; resolving them to views is up to the caller.
package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/route"
)

var routeFields = []string{
	"path", "name", "component", "components", "redirect", "alias",
	"children", "meta", "props", "caseSensitive", "strict",
}

// CompileRoutes reads the top-level routes list of v.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`routes: [{path: "/"}]`)
//	configs, err := CompileRoutes(v)
func CompileRoutes(v cue.Value) ([]route.Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	// Conflicts nested below the root do not surface through Err.
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	routesVal := v.LookupPath(cue.ParsePath("routes"))
	if !routesVal.Exists() {
		return nil, &CompileError{
			Field:   "routes",
			Message: "routes list is required",
			Pos:     v.Pos(),
		}
	}
	return compileList(routesVal, "routes")
}

func compileList(v cue.Value, field string) ([]route.Config, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "must be a list of routes",
			Pos:     v.Pos(),
		}
	}

	var configs []route.Config
	for i := 0; iter.Next(); i++ {
		cfg, err := CompileRoute(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// CompileRoute parses a single route struct. field names it in errors.
func CompileRoute(v cue.Value, field string) (route.Config, error) {
	var cfg route.Config
	if err := v.Err(); err != nil {
		return cfg, formatCUEError(err)
	}

	fields, err := v.Fields()
	if err != nil {
		return cfg, &CompileError{Field: field, Message: "route must be a struct", Pos: v.Pos()}
	}
	for fields.Next() {
		if !slices.Contains(routeFields, fields.Selector().Unquoted()) {
			return cfg, &CompileError{
				Field:   field + "." + fields.Selector().String(),
				Message: "unknown route field",
				Pos:     fields.Value().Pos(),
			}
		}
	}

	path, ok, err := optionalString(v, "path", field)
	if err != nil {
		return cfg, err
	}
	if !ok {
		return cfg, &CompileError{Field: field + ".path", Message: "path is required", Pos: v.Pos()}
	}
	cfg.Path = path

	if cfg.Name, _, err = optionalString(v, "name", field); err != nil {
		return cfg, err
	}

	if c, ok, err := optionalString(v, "component", field); err != nil {
		return cfg, err
	} else if ok {
		cfg.Component = c
	}

	if cfg.Components, err = compileComponents(v, field); err != nil {
		return cfg, err
	}
	if cfg.Redirect, err = compileRedirect(v, field); err != nil {
		return cfg, err
	}
	if cfg.Alias, err = compileAlias(v, field); err != nil {
		return cfg, err
	}
	if cfg.Meta, err = compileMeta(v, field); err != nil {
		return cfg, err
	}
	if cfg.Props, err = compileProps(v, field); err != nil {
		return cfg, err
	}
	if cfg.CaseSensitive, err = optionalBool(v, "caseSensitive", field); err != nil {
		return cfg, err
	}
	if cfg.Strict, err = optionalBool(v, "strict", field); err != nil {
		return cfg, err
	}

	if childrenVal := v.LookupPath(cue.ParsePath("children")); childrenVal.Exists() {
		if cfg.Children, err = compileList(childrenVal, field+".children"); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func compileComponents(v cue.Value, field string) (map[string]route.Component, error) {
	compVal := v.LookupPath(cue.ParsePath("components"))
	if !compVal.Exists() {
		return nil, nil
	}
	iter, err := compVal.Fields()
	if err != nil {
		return nil, &CompileError{Field: field + ".components", Message: "must map view names to component names", Pos: compVal.Pos()}
	}
	components := make(map[string]route.Component)
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field + ".components." + iter.Selector().Unquoted(),
				Message: "component must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		components[iter.Selector().Unquoted()] = name
	}
	return components, nil
}

// compileRedirect accepts a path string or {name, path, params, query, hash}.
func compileRedirect(v cue.Value, field string) (*route.Redirect, error) {
	redirVal := v.LookupPath(cue.ParsePath("redirect"))
	if !redirVal.Exists() {
		return nil, nil
	}
	field += ".redirect"

	if s, err := redirVal.String(); err == nil {
		return route.RedirectTo(s), nil
	}
	if redirVal.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: field, Message: "redirect must be a path or a location struct", Pos: redirVal.Pos()}
	}

	var target struct {
		Name   string            `json:"name"`
		Path   string            `json:"path"`
		Hash   string            `json:"hash"`
		Params map[string]string `json:"params"`
		Query  map[string]string `json:"query"`
	}
	if err := redirVal.Decode(&target); err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: redirVal.Pos()}
	}
	if (target.Name == "") == (target.Path == "") {
		return nil, &CompileError{Field: field, Message: "redirect must set exactly one of name or path", Pos: redirVal.Pos()}
	}

	loc := &location.Location{
		Name:   target.Name,
		Path:   target.Path,
		Hash:   target.Hash,
		Params: target.Params,
	}
	if len(target.Query) > 0 {
		loc.Query = make(location.Query, len(target.Query))
		for k, val := range target.Query {
			loc.Query[k] = []string{val}
		}
	}
	return &route.Redirect{To: loc}, nil
}

// compileAlias accepts a string or a list of strings.
func compileAlias(v cue.Value, field string) ([]string, error) {
	aliasVal := v.LookupPath(cue.ParsePath("alias"))
	if !aliasVal.Exists() {
		return nil, nil
	}
	if s, err := aliasVal.String(); err == nil {
		return []string{s}, nil
	}
	var aliases []string
	if err := aliasVal.Decode(&aliases); err != nil {
		return nil, &CompileError{Field: field + ".alias", Message: "alias must be a string or a list of strings", Pos: aliasVal.Pos()}
	}
	return aliases, nil
}

func compileMeta(v cue.Value, field string) (map[string]any, error) {
	metaVal := v.LookupPath(cue.ParsePath("meta"))
	if !metaVal.Exists() {
		return nil, nil
	}
	var meta map[string]any
	if err := metaVal.Decode(&meta); err != nil {
		return nil, &CompileError{Field: field + ".meta", Message: err.Error(), Pos: metaVal.Pos()}
	}
	return meta, nil
}

// compileProps accepts true (props for the default view) or a struct of
// view name to true or a static props struct.
func compileProps(v cue.Value, field string) (map[string]any, error) {
	propsVal := v.LookupPath(cue.ParsePath("props"))
	if !propsVal.Exists() {
		return nil, nil
	}
	field += ".props"

	if b, err := propsVal.Bool(); err == nil {
		return map[string]any{route.DefaultView: b}, nil
	}
	iter, err := propsVal.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "props must be a bool or a struct", Pos: propsVal.Pos()}
	}
	props := make(map[string]any)
	for iter.Next() {
		view := iter.Selector().Unquoted()
		if b, err := iter.Value().Bool(); err == nil {
			props[view] = b
			continue
		}
		var static map[string]any
		if err := iter.Value().Decode(&static); err != nil {
			return nil, &CompileError{Field: field + "." + view, Message: "view props must be a bool or a struct", Pos: iter.Value().Pos()}
		}
		props[view] = static
	}
	return props, nil
}

func optionalString(v cue.Value, name, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, &CompileError{Field: field + "." + name, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, true, nil
}

func optionalBool(v cue.Value, name, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, &CompileError{Field: field + "." + name, Message: "must be a bool", Pos: fv.Pos()}
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
