package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/corleone113/waypoint/internal/harness"
	"github.com/corleone113/waypoint/internal/journal"
	"github.com/corleone113/waypoint/internal/router"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update  bool   // regenerate golden files
	Filter  string // scenario filter (glob pattern)
	Journal string // optional journal database for navigations

	// RunID names this invocation in journal sessions. Defaults to a UUIDv7.
	RunID string
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name       string   `json:"name"`
	File       string   `json:"file"`
	Pass       bool     `json:"pass"`
	FinalRoute string   `json:"final_route,omitempty"`
	Session    string   `json:"session,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run navigation scenarios",
		Long: `Run YAML navigation scenarios against real routers.

Each scenario names its route table, declares guards, drives the
router through push/replace/go steps and asserts on the resulting
trace. When <scenarios-dir>/golden/<file>.golden exists the trace is
also compared byte for byte against it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  waypoint test ./scenarios
  waypoint test ./scenarios --filter "auth-*"
  waypoint test ./scenarios --update
  waypoint test ./scenarios --journal ./runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record navigations to a SQLite journal")

	return cmd
}

// scenarioRunner carries what every scenario of one invocation shares.
type scenarioRunner struct {
	opts    *TestOptions
	w       io.Writer
	text    bool
	journal *journal.Journal
	runID   string
	logOut  io.Writer
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		msg := fmt.Sprintf("scenarios directory not found: %s", scenariosDir)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		_ = formatter.Error(ErrCodeScanError, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	runner := &scenarioRunner{
		opts:   opts,
		w:      formatter.Writer,
		text:   !formatter.JSON(),
		runID:  opts.RunID,
		logOut: formatter.GetErrWriter(),
	}
	if runner.runID == "" {
		runner.runID = uuid.Must(uuid.NewV7()).String()
	}
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		runner.journal = j
		formatter.VerboseLog("Recording navigations to %s (run %s)", opts.Journal, runner.runID)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	if len(scenarioFiles) == 0 {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	for _, file := range scenarioFiles {
		sr := runner.run(file)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// findScenarioFiles finds all YAML scenario files in a directory.
// Golden files live next to scenarios and are skipped by extension.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

func (r *scenarioRunner) fail(sr ScenarioResult, errs ...string) ScenarioResult {
	sr.Pass = false
	sr.Errors = append(sr.Errors, errs...)
	if r.text {
		fmt.Fprintf(r.w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(r.w, "  %s\n", e)
		}
	}
	return sr
}

func (r *scenarioRunner) pass(sr ScenarioResult, note string) ScenarioResult {
	sr.Pass = true
	if r.text {
		fmt.Fprintf(r.w, "✓ %s%s\n", sr.Name, note)
	}
	return sr
}

// run executes a single scenario and returns the result.
func (r *scenarioRunner) run(file string) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return r.fail(sr, fmt.Sprintf("failed to load scenario: %v", err))
	}
	sr.Name = scenario.Name

	hopts := []harness.Option{harness.WithLogger(newLogger(r.opts.RootOptions, r.logOut))}
	var rec *journal.Recorder
	if r.journal != nil {
		sr.Session = scenario.Name + "@" + r.runID
		rec = journal.NewRecorder(r.journal, journal.WithSession(sr.Session))
		hopts = append(hopts, harness.WithObserver(&sessionScope{rec: rec}))
	}

	result, err := harness.Run(scenario, hopts...)
	if err != nil {
		return r.fail(sr, fmt.Sprintf("execution failed: %v", err))
	}
	sr.FinalRoute = result.FinalRoute
	if rec != nil && rec.Errors() > 0 {
		result.AddError(fmt.Sprintf("%d navigation(s) could not be journaled", rec.Errors()))
	}

	goldenPath := goldenFilePath(file)
	if r.opts.Update {
		if err := updateGoldenFile(goldenPath, scenario.Name, result); err != nil {
			return r.fail(sr, fmt.Sprintf("[%s] failed to update golden file: %v", ErrCodeWriteFailed, err))
		}
		if !result.Pass {
			return r.fail(sr, result.Errors...)
		}
		return r.pass(sr, " (golden updated)")
	}

	if _, err := os.Stat(goldenPath); err == nil {
		match, err := compareWithGolden(goldenPath, scenario.Name, result)
		if err != nil {
			return r.fail(sr, fmt.Sprintf("golden comparison failed: %v", err))
		}
		if !match {
			result.AddError("trace does not match golden file (run with --update to regenerate)")
		}
	}

	if !result.Pass {
		return r.fail(sr, result.Errors...)
	}
	return r.pass(sr, "")
}

// sessionScope prefixes navigation ids with the recorder session.
// Scenario routers number navigations from nav-1, so bare ids would
// collide across scenarios and runs sharing one journal.
type sessionScope struct {
	router.BaseObserver
	rec *journal.Recorder
}

func (s *sessionScope) NavigationFinished(ctx context.Context, nav router.Navigation, outcome router.Outcome, err error) {
	nav.ID = s.rec.Session() + "/" + nav.ID
	s.rec.NavigationFinished(ctx, nav, outcome, err)
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// updateGoldenFile writes the current trace as the golden file.
func updateGoldenFile(goldenPath, scenarioName string, result *harness.Result) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	data, err := harness.MarshalTrace(scenarioName, result)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	if err := os.WriteFile(goldenPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden compares the result trace against the golden file.
func compareWithGolden(goldenPath, scenarioName string, result *harness.Result) (bool, error) {
	goldenData, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	currentData, err := harness.MarshalTrace(scenarioName, result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal current trace: %w", err)
	}
	return bytes.Equal(bytes.TrimSpace(goldenData), currentData), nil
}

func outputTestJSON(f *OutputFormatter, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeScenario,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := f.encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputTestText(f *OutputFormatter, result TestResult) error {
	fmt.Fprintln(f.Writer)
	fmt.Fprintf(f.Writer, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(f.Writer, "✓ All scenarios passed")
	return nil
}
