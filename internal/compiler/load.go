package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/parser"

	"github.com/corleone113/waypoint/internal/route"
)

var (
	// ErrLoadFailed wraps CUE package loading errors.
	ErrLoadFailed = errors.New("loading CUE files")
	// ErrBuildFailed wraps CUE evaluation errors.
	ErrBuildFailed = errors.New("building CUE value")
)

// LoadInstance loads and builds the CUE package in path. path may also
// name a single .cue file. A directory whose files carry no package clause
// is loaded as the anonymous package.
func LoadInstance(path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, err
	}

	cfg := &load.Config{Dir: path}
	args := []string{"."}
	if info.IsDir() {
		cfg.Package = packageName(path)
	} else {
		cfg.Dir = filepath.Dir(path)
		args = []string{filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("%w: no CUE instances loaded", ErrLoadFailed)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("%w: %v", ErrLoadFailed, inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Validate(); err != nil {
		return cue.Value{}, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	return value, nil
}

// LoadRoutes is LoadInstance followed by CompileRoutes.
func LoadRoutes(path string) ([]route.Config, error) {
	v, err := LoadInstance(path)
	if err != nil {
		return nil, err
	}
	return CompileRoutes(v)
}

// packageName returns the first package clause found among the .cue files
// directly in dir, or "_" when none has one. Files that fail to parse are
// skipped; load reports them.
func packageName(dir string) string {
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return "_"
	}
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		f, err := parser.ParseFile(file, src, parser.PackageClauseOnly)
		if err != nil {
			continue
		}
		if name := f.PackageName(); name != "" {
			return name
		}
	}
	return "_"
}
