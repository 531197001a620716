package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corleone113/waypoint/internal/router"
)

func TestLoadRoutesFile(t *testing.T) {
	result, err := LoadRoutes(writeRoutes(t, sampleRoutes))
	require.NoError(t, err)
	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Configs, 4)
	assert.Equal(t, "home", result.Configs[0].Name)
	require.Len(t, result.Configs[1].Children, 1)
}

func TestLoadRoutesDirectoryCountsFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routes.cue"), []byte("package app\n"+sampleRoutes), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.cue"), []byte("package app\n#Page: {path: string, ...}\n"), 0644))

	result, err := LoadRoutes(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FileCount)
}

func TestLoadRoutesErrorCodes(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		code    string
		message string
	}{
		{"missing path", func(*testing.T) string { return "/nonexistent/routes.cue" }, ErrCodeNotFound, "routes not found"},
		{"empty directory", func(t *testing.T) string { return t.TempDir() }, ErrCodeNoFiles, "no CUE files found"},
		{"syntax error", func(t *testing.T) string { return writeRoutes(t, `routes: [`) }, ErrCodeLoadFailed, ""},
		{"conflict", func(t *testing.T) string { return writeRoutes(t, "x: 1\nx: 2\nroutes: []") }, ErrCodeBuildFailed, ""},
		{"no routes list", func(t *testing.T) string { return writeRoutes(t, `pages: []`) }, ErrCodeGeneric, "routes list is required"},
		{"bad field", func(t *testing.T) string { return writeRoutes(t, `routes: [{path: "/", colour: "red"}]`) }, ErrCodeGeneric, "unknown route field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRoutes(tt.path(t))
			require.Error(t, err)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.code, le.Code)
			assert.Equal(t, tt.code, loadErrorCode(err))
			if tt.message != "" {
				assert.Contains(t, le.Error(), tt.message)
			}
		})
	}
}

func TestLoadErrorCodeFallback(t *testing.T) {
	assert.Equal(t, ErrCodeGeneric, loadErrorCode(errors.New("boom")))
}

func TestParseMode(t *testing.T) {
	for _, m := range []router.Mode{router.ModeAbstract, router.ModeHash, router.ModeHistory} {
		got, err := parseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := parseMode("pushstate")
	assert.Error(t, err)
}
