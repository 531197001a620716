package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/route"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Mode   string
	Base   string
	Name   string
	Params map[string]string
	Query  map[string]string
	Hash   string
}

// ResolveResult describes where a location leads.
type ResolveResult struct {
	Name           string              `json:"name,omitempty"`
	Path           string              `json:"path"`
	FullPath       string              `json:"fullPath"`
	Hash           string              `json:"hash,omitempty"`
	Params         map[string]string   `json:"params,omitempty"`
	Query          map[string][]string `json:"query,omitempty"`
	Matched        []string            `json:"matched"`
	Meta           map[string]any      `json:"meta,omitempty"`
	RedirectedFrom string              `json:"redirectedFrom,omitempty"`
	Href           string              `json:"href"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <routes> [location]",
		Short: "Show which route a location resolves to",
		Long: `Resolve a location against a route table without navigating.

The location is a path with optional query and hash, or a named route
given with --name and --param. Redirects are followed; the href keeps
the original path the way a link would.

Example:
  waypoint resolve ./routes.cue "/users/42?tab=posts#top"
  waypoint resolve ./routes.cue --name user --param id=42
  waypoint resolve ./routes.cue /about --mode history --base /app`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 2 {
				target = args[1]
			}
			return runResolve(opts, args[0], target, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "hash", "history mode used to build hrefs (abstract|hash|history)")
	cmd.Flags().StringVar(&opts.Base, "base", "", "base path for URL modes")
	cmd.Flags().StringVar(&opts.Name, "name", "", "resolve a named route instead of a path")
	cmd.Flags().StringToStringVar(&opts.Params, "param", nil, "route params for --name (key=value)")
	cmd.Flags().StringToStringVar(&opts.Query, "query", nil, "extra query values (key=value)")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "hash for --name")

	return cmd
}

func runResolve(opts *ResolveOptions, path, target string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	raw, err := resolveTarget(opts, target)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid location", err)
	}
	mode, err := parseMode(opts.Mode)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	loaded, err := LoadRoutes(path)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load routes", err)
	}

	r, err := buildRouter(loaded.Configs, mode, opts.Base, newLogger(opts.RootOptions, formatter.GetErrWriter()))
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to build router", err)
	}
	defer r.Close()
	for _, cfgErr := range r.ConfigErrors() {
		formatter.Warn("%v", cfgErr)
	}

	resolved, err := r.Resolve(raw, nil, false)
	if err != nil {
		_ = formatter.Error(ErrCodeResolveFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "resolve failed", err)
	}
	result := newResolveResult(resolved.Route, resolved.Href)

	if len(result.Matched) == 0 {
		msg := fmt.Sprintf("no route matches %s", result.FullPath)
		if formatter.JSON() {
			if err := formatter.encode(CLIResponse{
				Status: "error",
				Data:   result,
				Error:  &CLIError{Code: ErrCodeNoMatch, Message: msg},
			}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %s\n", msg)
		}
		return NewExitError(ExitFailure, msg)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputResolveText(formatter, result)
	return nil
}

func resolveTarget(opts *ResolveOptions, target string) (location.Location, error) {
	var raw location.Location
	switch {
	case opts.Name != "" && target != "":
		return raw, fmt.Errorf("give either a location or --name, not both")
	case opts.Name != "":
		raw = location.Location{Name: opts.Name, Params: opts.Params, Hash: opts.Hash}
	case target != "":
		raw = location.From(target)
	default:
		return raw, fmt.Errorf("a location or --name is required")
	}
	if len(opts.Query) > 0 {
		if raw.Query == nil {
			raw.Query = location.Query{}
		}
		for k, v := range opts.Query {
			raw.Query[k] = []string{v}
		}
	}
	return raw, nil
}

func newResolveResult(rt *route.Route, href string) ResolveResult {
	result := ResolveResult{
		Name:           rt.Name,
		Path:           rt.Path,
		FullPath:       rt.FullPath,
		Hash:           rt.Hash,
		Meta:           rt.Meta,
		RedirectedFrom: rt.RedirectedFrom,
		Href:           href,
		Matched:        []string{},
	}
	if len(rt.Params) > 0 {
		result.Params = rt.Params
	}
	if len(rt.Query) > 0 {
		result.Query = rt.Query
	}
	for _, rec := range rt.Matched {
		result.Matched = append(result.Matched, rec.Path)
	}
	return result
}

func outputResolveText(f *OutputFormatter, r ResolveResult) {
	fmt.Fprintf(f.Writer, "✓ %s\n", r.FullPath)
	if r.Name != "" {
		fmt.Fprintf(f.Writer, "  name:     %s\n", r.Name)
	}
	fmt.Fprintf(f.Writer, "  path:     %s\n", r.Path)
	fmt.Fprintf(f.Writer, "  href:     %s\n", r.Href)
	if r.RedirectedFrom != "" {
		fmt.Fprintf(f.Writer, "  redirect: %s\n", r.RedirectedFrom)
	}
	if len(r.Params) > 0 {
		fmt.Fprintf(f.Writer, "  params:   %s\n", formatPairs(r.Params))
	}
	if len(r.Query) > 0 {
		flat := make(map[string]string, len(r.Query))
		for k, vs := range r.Query {
			flat[k] = strings.Join(vs, ",")
		}
		fmt.Fprintf(f.Writer, "  query:    %s\n", formatPairs(flat))
	}
	fmt.Fprintf(f.Writer, "  matched:  %s\n", strings.Join(r.Matched, " > "))
	if len(r.Meta) > 0 {
		keys := make([]string, 0, len(r.Meta))
		for k := range r.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, r.Meta[k])
		}
		fmt.Fprintf(f.Writer, "  meta:     %s\n", strings.Join(parts, " "))
	}
}

func formatPairs(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, " ")
}
