package graph

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/metrics"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/internal/sourcemap"
)

// cacheEntry locates the cached result for one input file.
type cacheEntry struct {
	dest    string
	path    string
	mapPath string
}

func (t *Transform) computeFiles(ctx context.Context) (string, error) {
	inDir, err := t.inputs[0].Ready(ctx)
	if err != nil {
		return "", err
	}
	if err := aborted(ctx); err != nil {
		return "", err
	}

	changes, commit, err := t.changes.resolve(inDir)
	if err != nil {
		return "", t.fail(builderr.TransformationFailed, err, inDir, "", "")
	}
	n, outDir, err := t.nextGeneration()
	if err != nil {
		return "", t.fail(builderr.TransformationFailed, err, inDir, "", "")
	}

	start := time.Now()
	t.emitInfo(t.info(TransformStart, inDir))

	produced, err := t.transformFiles(ctx, inDir, outDir, changes)
	if err == nil {
		err = aborted(ctx)
	}
	t.settle(ctx, n, outDir, err)
	metrics.ObserveTransform("file", metrics.Status(err, builderr.IsAborted(err)), time.Since(start))
	if err != nil {
		return "", err
	}

	commit()
	t.ownMu.Lock()
	t.produced = produced
	t.ownMu.Unlock()

	t.emitInfo(t.complete(TransformComplete, start))
	return outDir, nil
}

// transformFiles fills outDir from inDir, running the plugin only for
// accepted files that changed or have no cached result.
func (t *Transform) transformFiles(ctx context.Context, inDir, outDir string, changes []checksum.Change) (map[string]struct{}, error) {
	dirty := make(map[string]bool, len(changes))
	for _, c := range changes {
		dirty[c.File] = true
		if c.Kind == checksum.Removed {
			t.evict(c.File)
		}
	}

	files, err := fsutil.ListFiles(inDir)
	if err != nil {
		return nil, t.fail(builderr.TransformationFailed, err, inDir, outDir, "")
	}

	produced := make(map[string]struct{}, len(files))
	for _, rel := range files {
		if err := aborted(ctx); err != nil {
			return nil, err
		}

		src := filepath.Join(inDir, rel)
		ok, matched := acceptance(t.accept, rel)
		if !ok {
			if err := fsutil.SymlinkOrCopy(src, filepath.Join(outDir, rel)); err != nil {
				return nil, t.fail(builderr.TransformationFailed, err, inDir, outDir, rel)
			}
			continue
		}

		dest := destName(rel, matched, t.ext)
		produced[dest] = struct{}{}

		if !dirty[rel] {
			if entry, hit := t.cache.Get(rel); hit && entry.dest == dest && fsutil.Exists(entry.path) {
				if err := linkEntry(entry, outDir); err != nil {
					return nil, t.fail(builderr.TransformationFailed, err, inDir, outDir, rel)
				}
				if entry.mapPath != "" {
					produced[dest+".map"] = struct{}{}
				}
				metrics.FileSkipped()
				continue
			}
		}

		var entry cacheEntry
		err := t.sess.Gate().Do(ctx, func(ctx context.Context) error {
			var err error
			entry, err = t.transformFile(ctx, inDir, outDir, rel, dest)
			return err
		})
		if err != nil {
			// A superseded computation shares the cache path with the one
			// that replaced it, so only a real failure may evict.
			if builderr.IsAborted(err) || ctx.Err() != nil {
				return nil, builderr.ErrAborted
			}
			t.evict(rel)
			return nil, t.fail(builderr.TransformationFailed, err, inDir, outDir, rel)
		}
		if err := linkEntry(entry, outDir); err != nil {
			return nil, t.fail(builderr.TransformationFailed, err, inDir, outDir, rel)
		}
		if entry.mapPath != "" {
			produced[dest+".map"] = struct{}{}
		}
		t.cache.Add(rel, entry)
	}
	return produced, nil
}

// transformFile runs the plugin on one file and writes the result, plus its
// source map, into the node's cache directory.
func (t *Transform) transformFile(ctx context.Context, inDir, outDir, rel, dest string) (cacheEntry, error) {
	src := filepath.Join(inDir, rel)
	data, err := os.ReadFile(src)
	if err != nil {
		return cacheEntry{}, err
	}
	original := string(data)

	res, err := t.plugin.File(ctx, original, t.opts, &registry.File{
		Name: rel,
		Src:  src,
		Dest: filepath.Join(outDir, dest),
		Log:  t.pluginLog,
	})
	if err != nil {
		return cacheEntry{}, err
	}
	if err := aborted(ctx); err != nil {
		return cacheEntry{}, err
	}

	slashDest := filepath.ToSlash(dest)
	code, m, err := sourcemap.Process(res.Code, res.Map, filepath.ToSlash(rel), slashDest, original, path.Base(slashDest)+".map")
	if err != nil {
		return cacheEntry{}, err
	}

	entry := cacheEntry{dest: dest, path: filepath.Join(t.sess.CacheDir(t.id), dest)}
	if err := os.MkdirAll(filepath.Dir(entry.path), 0o755); err != nil {
		return cacheEntry{}, err
	}
	if err := os.WriteFile(entry.path, []byte(code), 0o644); err != nil {
		return cacheEntry{}, err
	}

	mapPath := entry.path + ".map"
	if m == nil {
		_ = os.Remove(mapPath)
		return entry, nil
	}
	encoded, err := m.Marshal()
	if err != nil {
		return cacheEntry{}, err
	}
	if err := os.WriteFile(mapPath, encoded, 0o644); err != nil {
		return cacheEntry{}, err
	}
	entry.mapPath = mapPath
	return entry, nil
}

func linkEntry(entry cacheEntry, outDir string) error {
	if err := fsutil.SymlinkOrCopy(entry.path, filepath.Join(outDir, entry.dest)); err != nil {
		return err
	}
	if entry.mapPath == "" {
		return nil
	}
	return fsutil.SymlinkOrCopy(entry.mapPath, filepath.Join(outDir, entry.dest+".map"))
}

// evict forgets the cached result for rel and removes its files.
func (t *Transform) evict(rel string) {
	entry, ok := t.cache.Peek(rel)
	if !ok {
		return
	}
	t.cache.Remove(rel)
	_ = os.Remove(entry.path)
	if entry.mapPath != "" {
		_ = os.Remove(entry.mapPath)
	}
}
