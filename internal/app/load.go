package app

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/config"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/pipeline"
	"github.com/specialistvlad/gobblego/internal/session"
)

// loader picks the definition format. A file is matched on its extension.
// A directory must hold files of exactly one format.
func (a *App) loader() (config.Loader, error) {
	path := a.config.DefinitionPath
	info, err := os.Stat(path)
	if err != nil {
		return nil, builderr.Wrap(builderr.InvalidConfig, fmt.Errorf("build definition: %w", err))
	}

	if !info.IsDir() {
		ext := strings.ToLower(filepath.Ext(path))
		for _, l := range a.loaders {
			if slices.Contains(l.Extensions(), ext) {
				return l, nil
			}
		}
		return nil, builderr.New(builderr.InvalidConfig, "unsupported build definition %s", filepath.Base(path))
	}

	var found []config.Loader
	for _, l := range a.loaders {
		files, err := fsutil.FindFilesByExtension(path, l.Extensions()...)
		if err != nil {
			return nil, builderr.Wrap(builderr.InvalidConfig, err)
		}
		if len(files) > 0 {
			found = append(found, l)
		}
	}
	switch len(found) {
	case 0:
		return nil, builderr.New(builderr.InvalidConfig, "no build definition found in %s", path)
	case 1:
		return found[0], nil
	}
	return nil, builderr.New(builderr.InvalidConfig, "%s mixes build definition formats", path)
}

// definitionFile reports whether rel, a path under the definition root, is
// read by the definition loader.
func (a *App) definitionFile(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	for _, l := range a.loaders {
		if slices.Contains(l.Extensions(), ext) {
			return true
		}
	}
	return false
}

// loadDefinition reads the build definition with env and --var values.
func (a *App) loadDefinition(ctx context.Context) (*config.Model, error) {
	l, err := a.loader()
	if err != nil {
		return nil, err
	}

	vars := make(config.Vars, len(a.config.Vars)+1)
	maps.Copy(vars, a.config.Vars)
	vars["env"] = a.config.Env

	model, err := l.Load(ctx, vars, a.config.DefinitionPath)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Build definition loaded.", "path", a.config.DefinitionPath, "nodes", len(model.Nodes))
	return model, nil
}

// assemble loads the definition and builds its graph on sess.
func (a *App) assemble(ctx context.Context, sess *session.Session) (*pipeline.Pipeline, error) {
	model, err := a.loadDefinition(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.Assemble(ctx, sess, model, a.registry, pipeline.Options{
		Debounce: a.config.Debounce,
		Ignore:   ignored(a.config),
	})
}

// ignored keeps source watchers away from gobble's own directories when
// they live inside a source tree.
func ignored(cfg *Config) []string {
	patterns := []string{".git", "*.swp", "*~", ".DS_Store", filepath.Base(cfg.TmpDir)}
	if cfg.Dest != "" {
		patterns = append(patterns, filepath.Base(cfg.Dest))
	}
	return patterns
}
