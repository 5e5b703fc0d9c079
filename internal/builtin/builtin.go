// Package builtin provides the stock callables that declarative manifests
// can reference by symbol: a project path guard, a file census, and an
// echo body useful for wiring checks.
package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/plugind/internal/manifest"
	"github.com/fyrsmithlabs/plugind/internal/plugin"
)

// Census summarizes a project tree.
type Census struct {
	Files int   `json:"files"`
	Dirs  int   `json:"dirs"`
	Bytes int64 `json:"bytes"`
}

// Bind registers every builtin symbol on the binder.
func Bind(b *manifest.Binder) {
	b.BindHandler("project.require-path", RequireProjectPath)
	b.BindExec("project.census", ProjectCensus)
	b.BindExec("context.echo", ContextEcho)
	b.BindCondition("project.has-path", HasProjectPath)
	b.BindCondition("action.is-apply", IsApplyAction)
}

// RequireProjectPath fails the hook unless the run context points at an
// existing directory. Typically bound pre-execute and marked critical.
func RequireProjectPath(ctx context.Context, pctx plugin.Context) error {
	path := pctx.ProjectPath()
	if path == "" {
		return fmt.Errorf("%w: run context has no project path", plugin.ErrExecution)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: project path %q: %v", plugin.ErrExecution, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: project path %q is not a directory", plugin.ErrExecution, path)
	}
	return nil
}

// ProjectCensus walks the project tree and returns file, directory, and
// byte counts. Unreadable entries are skipped, not fatal.
func ProjectCensus(ctx context.Context, pctx plugin.Context) (any, error) {
	root := pctx.ProjectPath()
	if root == "" {
		return nil, fmt.Errorf("%w: run context has no project path", plugin.ErrExecution)
	}

	var census Census
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			if path != root {
				census.Dirs++
			}
			return nil
		}
		census.Files++
		if info, ierr := d.Info(); ierr == nil {
			census.Bytes += info.Size()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: census of %q: %v", plugin.ErrExecution, root, err)
	}
	return census, nil
}

// ContextEcho returns the run context minus the private store. It exists so
// a freshly wired deployment can verify end to end plumbing.
func ContextEcho(ctx context.Context, pctx plugin.Context) (any, error) {
	out := make(map[string]any, len(pctx))
	for k, v := range pctx {
		if k == plugin.KeyStore {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// HasProjectPath reports whether the run context carries a project path.
func HasProjectPath(pctx plugin.Context) bool {
	return pctx.ProjectPath() != ""
}

// IsApplyAction reports whether the run's action discriminator is "apply".
func IsApplyAction(pctx plugin.Context) bool {
	return pctx.Action() == "apply"
}
