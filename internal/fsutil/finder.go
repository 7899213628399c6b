// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension searches the given path for all files ending with one
// of the specified extensions. A path naming a single matching file is
// returned as is. A missing path yields no files.
func FindFilesByExtension(rootPath string, extensions ...string) ([]string, error) {
	if len(extensions) == 0 {
		panic("at least one extension is required")
	}

	hasExt := func(name string) bool {
		for _, ext := range extensions {
			if strings.HasSuffix(name, ext) {
				return true
			}
		}
		return false
	}

	info, err := os.Stat(rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error accessing path %s: %w", rootPath, err)
	}
	if !info.IsDir() {
		if hasExt(rootPath) {
			return []string{rootPath}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasExt(d.Name()) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// ListFiles returns the paths of all regular files below root, relative to
// root and sorted. Symbolic links are followed, since build outputs are mostly
// link trees; a link cycle is visited once.
func ListFiles(root string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return err
		}
		if _, ok := seen[real]; ok {
			return nil
		}
		seen[real] = struct{}{}
		defer delete(seen, real)

		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			relPath := filepath.Join(rel, entry.Name())

			info, err := os.Stat(full)
			if err != nil {
				if os.IsNotExist(err) {
					// dangling link
					continue
				}
				return err
			}
			if info.IsDir() {
				if err := walk(full, relPath); err != nil {
					return err
				}
				continue
			}
			files = append(files, relPath)
		}
		return nil
	}

	if err := walk(root, ""); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Exists reports whether path exists, following symbolic links.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
