package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/corleone113/waypoint/internal/compiler"
	"github.com/corleone113/waypoint/internal/route"
)

// LoadResult contains the route table loaded from a file or directory.
type LoadResult struct {
	Configs   []route.Config
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred while loading routes.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
// Route table validation codes (E100-E199) come from the compiler.
// Navigation and journal codes are E200 and up.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeResolveFailed = "E200" // Location could not be resolved
	ErrCodeNoMatch       = "E201" // No route matches the location
	ErrCodeScenario      = "E202" // Scenario failed or could not run
	ErrCodeJournal       = "E203" // Journal could not be opened or read
)

// LoadRoutes loads and compiles the routes list of a CUE file or package
// directory. The returned error is always a *LoadError.
func LoadRoutes(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("routes not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing routes: %v", err)}
	}

	fileCount := 1
	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(cueFiles) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		fileCount = len(cueFiles)
	}

	value, err := compiler.LoadInstance(path)
	switch {
	case errors.Is(err, compiler.ErrLoadFailed):
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	case errors.Is(err, compiler.ErrBuildFailed):
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
	case err != nil:
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	configs, err := compiler.CompileRoutes(value)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{Configs: configs, FileCount: fileCount}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := ErrCodeGeneric
		if compileErr.Field == "cue" {
			code = ErrCodeBuildFailed
		}
		return &LoadError{
			Code:    code,
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// loadErrorCode extracts the code of a LoadRoutes error.
func loadErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}
