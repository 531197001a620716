package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corleone113/waypoint/internal/journal"
)

// seedJournal writes a small session: two navigations around one commit,
// then an aborted navigation. A second session holds one navigation.
func seedJournal(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	navs := []journal.NavigationRecord{
		{ID: "nav-1", Session: "s1", Seq: 1, Trigger: "init", From: "/", To: "/", Outcome: "committed"},
		{ID: "nav-2", Session: "s1", Seq: 3, Trigger: "push", From: "/", To: "/users/1", Outcome: "committed"},
		{ID: "nav-3", Session: "s1", Seq: 4, Trigger: "push", From: "/users/1", To: "/private", Outcome: "aborted",
			ErrorCode: "ABORTED", Message: "navigation aborted"},
		{ID: "nav-4", Session: "s2", Seq: 1, Trigger: "init", From: "/", To: "/", Outcome: "committed"},
	}
	for _, n := range navs {
		require.NoError(t, j.WriteNavigation(ctx, n))
	}
	require.NoError(t, j.WriteMutation(ctx, journal.MutationRecord{
		ID: "mut-1", Session: "s1", Seq: 2, Type: "cart/add",
		Payload: map[string]any{"item": "widget", "qty": 2}, StateHash: "sha256:0123456789abcdef0123",
	}))
	return dbPath
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--session", "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", "/nonexistent/path/runs.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open journal")
	assert.Contains(t, out, "journal not found")
}

func TestTraceListSessions(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 session(s)")
	assert.Contains(t, out, "s1  3 navigation(s), 1 mutation(s)")
	assert.Contains(t, out, "s2  1 navigation(s), 0 mutation(s)")
}

func TestTraceListSessionsJSON(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []SessionSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []SessionSummary{
		{Session: "s1", Navigations: 3, Mutations: 1},
		{Session: "s2", Navigations: 1, Mutations: 0},
	}, resp.Data)
}

func TestTraceEmptySession(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--session", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "No events found for session: missing")
}

func TestTraceSession(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for Session: s1")
	assert.Contains(t, out, "[1] NAV init / → / (committed)")
	assert.Contains(t, out, "[2] MUT cart/add {item=widget, qty=2}")
	assert.Contains(t, out, "[3] NAV push / → /users/1 (committed)")
	assert.Contains(t, out, "Error: ABORTED navigation aborted")
	assert.Contains(t, out, "Outcomes:     {aborted=1, committed=2}")
	assert.Contains(t, out, "Final Route:  /users/1")
	assert.Contains(t, out, "Final State:  sha256:0...cdef0123")
}

func TestTraceSessionJSON(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--session", "s1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	result := resp.Data
	require.Len(t, result.Timeline, 4)
	var seqs []int64
	for _, ev := range result.Timeline {
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, seqs)
	assert.Equal(t, "mutation", result.Timeline[1].Type)
	assert.Equal(t, 4, result.Stats.TotalEvents)
	assert.Equal(t, 3, result.Stats.Navigations)
	assert.Equal(t, 1, result.Stats.Mutations)
	assert.Equal(t, map[string]int{"committed": 2, "aborted": 1}, result.Stats.Outcomes)
}

func TestTraceOutcomeFilter(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--session", "s1", "--outcome", "aborted")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, "/private", resp.Data.Timeline[0].To)
	assert.Equal(t, "ABORTED", resp.Data.Timeline[0].ErrorCode)
	// Stats still cover the whole session.
	assert.Equal(t, 3, resp.Data.Stats.Navigations)
}

func TestTraceHelpText(t *testing.T) {
	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--session")
	assert.Contains(t, out, "--outcome")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "01234567...89abcdef", truncateID("0123456789abcdef0123456789abcdef"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", formatValue(nil))
	assert.Equal(t, "text", formatValue("text"))
	assert.Equal(t, "42", formatValue(42))
	assert.Equal(t, "[1, two]", formatValue([]any{1, "two"}))
	assert.Equal(t, "{a={b=true}, c=1}", formatValue(map[string]any{"c": 1, "a": map[string]any{"b": true}}))
}
