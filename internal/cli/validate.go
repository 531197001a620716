package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corleone113/waypoint/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat redirect loops as failures
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Routes   int                        `json:"routes"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <routes>",
		Short: "Validate a route table",
		Long: `Validate a CUE route table without starting a router.

Reports every registration problem (duplicate names, repeated params,
bad aliases, malformed redirects and patterns) plus redirects that
lead nowhere. Redirect loops are reported as warnings.

Exit codes:
  0 - Route table is valid
  1 - Validation errors (or redirect loops with --strict)
  2 - Command error (routes not found, CUE does not load)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on redirect loops")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadRoutes(path)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load routes", err)
	}
	formatter.VerboseLog("Loaded %d top-level route(s) from %d CUE file(s)", len(loaded.Configs), loaded.FileCount)

	result := ValidationResult{
		Routes:   len(loaded.Configs),
		Errors:   compiler.Validate(loaded.Configs),
		Warnings: compiler.AnalyzeRedirects(loaded.Configs),
	}
	result.Valid = len(result.Errors) == 0 && !(opts.Strict && len(result.Warnings) > 0)

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		for _, w := range result.Warnings {
			resp.Warnings = append(resp.Warnings, w.Message)
		}
		if !result.Valid {
			resp.Status = "error"
			if len(result.Errors) > 0 {
				resp.Error = &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message}
			} else {
				resp.Error = &CLIError{Code: ErrCodeGeneric, Message: result.Warnings[0].Message}
			}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s) and %d warning(s)",
			len(result.Errors), len(result.Warnings)))
	}
	return nil
}

func outputValidateText(f *OutputFormatter, result ValidationResult) {
	for _, w := range result.Warnings {
		f.Warn("%s", w.Message)
	}

	if len(result.Errors) == 0 {
		if result.Valid {
			fmt.Fprintf(f.Writer, "✓ %d route(s) valid\n", result.Routes)
		} else {
			fmt.Fprintln(f.Writer, "✗ Redirect loops found (--strict)")
		}
		return
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	fmt.Fprintln(f.Writer)
	for _, err := range result.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", err.Error())
	}
}
