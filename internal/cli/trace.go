package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corleone113/waypoint/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Outcome  string // optional - filter navigations to one outcome
}

// TraceEvent represents a single entry in a session timeline.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"` // "navigation" or "mutation"
	ID        string `json:"id"`
	Trigger   string `json:"trigger,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
	Mutation  string `json:"mutation,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	StateHash string `json:"state_hash,omitempty"`
}

// TraceResult holds the complete trace output for one session.
type TraceResult struct {
	Session  string       `json:"session"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for a session.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Navigations int            `json:"navigations"`
	Mutations   int            `json:"mutations"`
	Outcomes    map[string]int `json:"outcomes"`
	FinalRoute  string         `json:"final_route,omitempty"`
	FinalState  string         `json:"final_state,omitempty"`
}

// SessionSummary is one line of the session listing.
type SessionSummary struct {
	Session     string `json:"session"`
	Navigations int    `json:"navigations"`
	Mutations   int    `json:"mutations"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a navigation journal",
		Long: `Inspect the navigations and store commits recorded in a journal.

Without --session, lists the recorded sessions. With --session, shows
the session timeline in sequence order:
- Navigations: trigger, from and to paths, outcome and failure code
- Mutations: commit type, payload and resulting state hash
- Stats: counts per outcome, the last committed route and state hash

Examples:
  waypoint trace --db ./runs.db
  waypoint trace --db ./runs.db --session browse@0190...
  waypoint trace --db ./runs.db --session s1 --outcome aborted --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only show navigations with this outcome")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(opts.Database); err != nil {
		msg := fmt.Sprintf("journal not found: %s", opts.Database)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	j, err := journal.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.Session == "" {
		summaries, err := listSessions(ctx, j)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		if formatter.JSON() {
			return formatter.Success(summaries)
		}
		outputSessionsText(formatter.Writer, summaries)
		return nil
	}

	navs, err := j.ReadNavigations(ctx, opts.Session)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read navigations", err)
	}
	muts, err := j.ReadMutations(ctx, opts.Session)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read mutations", err)
	}

	result := TraceResult{
		Session:  opts.Session,
		Timeline: buildTimeline(navs, muts, opts.Outcome),
		Stats:    buildStats(navs, muts),
	}
	result.Stats.TotalEvents = len(result.Timeline)

	if len(navs) == 0 && len(muts) == 0 {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "No events found for session: %s\n", opts.Session)
		return nil
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func listSessions(ctx context.Context, j *journal.Journal) ([]SessionSummary, error) {
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	navs, err := j.ReadNavigations(ctx, "")
	if err != nil {
		return nil, err
	}
	muts, err := j.ReadMutations(ctx, "")
	if err != nil {
		return nil, err
	}

	counts := make(map[string]*SessionSummary, len(sessions))
	summaries := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		summaries[i].Session = s
		counts[s] = &summaries[i]
	}
	for _, n := range navs {
		if c, ok := counts[n.Session]; ok {
			c.Navigations++
		}
	}
	for _, m := range muts {
		if c, ok := counts[m.Session]; ok {
			c.Mutations++
		}
	}
	return summaries, nil
}

// buildTimeline merges both logs into one sequence-ordered list.
// Navigations and mutations of a session share one seq space.
func buildTimeline(navs []journal.NavigationRecord, muts []journal.MutationRecord, outcomeFilter string) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(navs)+len(muts))
	for _, n := range navs {
		if outcomeFilter != "" && n.Outcome != outcomeFilter {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:       n.Seq,
			Type:      "navigation",
			ID:        n.ID,
			Trigger:   n.Trigger,
			From:      n.From,
			To:        n.To,
			Outcome:   n.Outcome,
			ErrorCode: n.ErrorCode,
			Message:   n.Message,
		})
	}
	if outcomeFilter == "" {
		for _, m := range muts {
			timeline = append(timeline, TraceEvent{
				Seq:       m.Seq,
				Type:      "mutation",
				ID:        m.ID,
				Mutation:  m.Type,
				Payload:   m.Payload,
				StateHash: m.StateHash,
			})
		}
	}
	sort.SliceStable(timeline, func(a, b int) bool {
		if timeline[a].Seq != timeline[b].Seq {
			return timeline[a].Seq < timeline[b].Seq
		}
		return timeline[a].ID < timeline[b].ID
	})
	return timeline
}

func buildStats(navs []journal.NavigationRecord, muts []journal.MutationRecord) TraceStats {
	stats := TraceStats{
		Navigations: len(navs),
		Mutations:   len(muts),
		Outcomes:    map[string]int{},
	}
	for _, n := range navs {
		stats.Outcomes[n.Outcome]++
		if n.Outcome == "committed" {
			stats.FinalRoute = n.To
		}
	}
	if len(muts) > 0 {
		stats.FinalState = muts[len(muts)-1].StateHash
	}
	return stats
}

func outputSessionsText(w io.Writer, summaries []SessionSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return
	}
	fmt.Fprintf(w, "%d session(s)\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(w, "  %s  %d navigation(s), %d mutation(s)\n", s.Session, s.Navigations, s.Mutations)
	}
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Session: %s\n", result.Session)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Navigations:  %d\n", result.Stats.Navigations)
	fmt.Fprintf(w, "  Mutations:    %d\n", result.Stats.Mutations)
	if len(result.Stats.Outcomes) > 0 {
		fmt.Fprintf(w, "  Outcomes:     %s\n", formatArgs(countsToMap(result.Stats.Outcomes)))
	}
	if result.Stats.FinalRoute != "" {
		fmt.Fprintf(w, "  Final Route:  %s\n", result.Stats.FinalRoute)
	}
	if result.Stats.FinalState != "" {
		fmt.Fprintf(w, "  Final State:  %s\n", truncateID(result.Stats.FinalState))
	}
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	switch event.Type {
	case "navigation":
		fmt.Fprintf(w, "  [%d] NAV %s %s → %s (%s)\n", event.Seq, event.Trigger, event.From, event.To, event.Outcome)
		if event.ErrorCode != "" {
			fmt.Fprintf(w, "       Error: %s %s\n", event.ErrorCode, event.Message)
		} else if event.Message != "" {
			fmt.Fprintf(w, "       Error: %s\n", event.Message)
		}
	case "mutation":
		fmt.Fprintf(w, "  [%d] MUT %s %s\n", event.Seq, event.Mutation, formatValue(event.Payload))
		if verbose {
			fmt.Fprintf(w, "       State: %s\n", truncateID(event.StateHash))
		}
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
	}
}

func countsToMap(counts map[string]int) map[string]any {
	m := make(map[string]any, len(counts))
	for k, v := range counts {
		m[k] = v
	}
	return m
}

// formatArgs formats a map for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
