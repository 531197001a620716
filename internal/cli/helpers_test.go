package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const sampleRoutes = `
routes: [
	{path: "/", name: "home", component: "Home"},
	{path: "/users/:id", name: "user", component: "User", meta: {auth: true},
		children: [{path: "posts", name: "user-posts", component: "UserPosts"}]},
	{path: "/old-home", redirect: "/"},
	{path: "/about", alias: "/info", component: "About"},
]
`

// writeRoutes writes content as routes.cue in a fresh temp dir and
// returns the file path.
func writeRoutes(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
