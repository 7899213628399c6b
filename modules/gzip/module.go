// Package gzip provides the "gzip" plugin, which writes a compressed .gz
// sibling next to every matching file.
package gzip

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/specialistvlad/gobblego/internal/fsutil"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/modules/internal/glob"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// DefaultPatterns are the files compressed when no patterns are given.
var DefaultPatterns = []string{"*.html", "*.css", "*.js", "*.json", "*.svg", "*.txt", "*.xml"}

// Compress links every file of d.InputDir into d.OutputDir and adds a
// compressed copy of each file matching the "patterns" option.
func Compress(ctx context.Context, d *registry.Dir) error {
	patterns := d.Options.Strings("patterns")
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	set, err := glob.Compile(patterns)
	if err != nil {
		return err
	}
	level := d.Options.Int("level", gzip.DefaultCompression)
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return fmt.Errorf("gzip level %d out of range", level)
	}

	files, err := fsutil.ListFiles(d.InputDir)
	if err != nil {
		return err
	}
	compressed := 0
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(d.InputDir, rel)
		dst := filepath.Join(d.OutputDir, rel)
		if err := fsutil.SymlinkOrCopy(src, dst); err != nil {
			return err
		}
		if !set.Match(filepath.ToSlash(rel)) {
			continue
		}
		if err := compressFile(src, dst+".gz", level); err != nil {
			return fmt.Errorf("compressing %s: %w", rel, err)
		}
		compressed++
	}
	d.Log(fmt.Sprintf("compressed %d of %d files", compressed, len(files)))
	return nil
}

func compressFile(src, dst string, level int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	zw, err := gzip.NewWriterLevel(out, level)
	if err != nil {
		out.Close()
		return err
	}
	zw.Name = filepath.Base(src)
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Register registers the plugin.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Plugin{
		Name:     "gzip",
		Dir:      Compress,
		Defaults: registry.Options{"level": gzip.BestCompression},
		Keys:     []string{"patterns", "level"},
	})
}
