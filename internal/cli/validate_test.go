package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidRoutes(t *testing.T) {
	path := writeRoutes(t, sampleRoutes)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 4 route(s) valid")
}

func TestValidateValidRoutesJSON(t *testing.T) {
	path := writeRoutes(t, sampleRoutes)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["valid"])
	assert.EqualValues(t, 4, data["routes"])
}

func TestValidateRoutesDirectory(t *testing.T) {
	path := writeRoutes(t, sampleRoutes)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), filepath.Dir(path))
	require.NoError(t, err)
	assert.Contains(t, out, "route(s) valid")
}

func TestValidateNonExistentPath(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/routes.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateMalformedCUE(t *testing.T) {
	path := writeRoutes(t, `routes: [{path: "/"`)

	_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateMissingPathField(t *testing.T) {
	path := writeRoutes(t, `routes: [{name: "home", component: "Home"}]`)

	_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "path is required")
}

func TestValidateRegistrationErrors(t *testing.T) {
	path := writeRoutes(t, `
routes: [
	{path: "/a", name: "dup", component: "A"},
	{path: "/b", name: "dup", component: "B"},
	{path: "/c", redirect: {name: "missing"}},
]
`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E101")
	assert.Contains(t, out, "E107")
}

func TestValidateRegistrationErrorsJSON(t *testing.T) {
	path := writeRoutes(t, `
routes: [
	{path: "/a", name: "dup", component: "A"},
	{path: "/b", name: "dup", component: "B"},
]
`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E101", resp.Error.Code)
}

const loopRoutes = `
routes: [
	{path: "/", component: "Home"},
	{path: "/a", redirect: "/b"},
	{path: "/b", redirect: "/a"},
]
`

func TestValidateRedirectLoopWarns(t *testing.T) {
	path := writeRoutes(t, loopRoutes)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "⚠ Redirect loop detected")
	assert.Contains(t, out, "✓ 3 route(s) valid")
}

func TestValidateRedirectLoopStrict(t *testing.T) {
	path := writeRoutes(t, loopRoutes)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "--strict", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Redirect loops found (--strict)")
}

func TestValidateRedirectLoopJSONWarnings(t *testing.T) {
	path := writeRoutes(t, loopRoutes)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "Redirect loop detected")
}
