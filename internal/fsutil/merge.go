package fsutil

import (
	"os"
	"path/filepath"
)

// MergeDirectories merges src into dst. Entries missing from dst are linked
// in. Directories present on both sides are merged recursively. Anything else
// in dst is replaced by src. A symlinked directory in dst is first turned into
// a real directory so that merging never writes through to the link target.
func MergeDirectories(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	dstInfo, err := os.Stat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			// Clear a dangling link, if that is what is there.
			os.Remove(dst)
			return SymlinkOrCopy(src, dst)
		}
		return err
	}

	if dstInfo.IsDir() && srcInfo.IsDir() {
		lst, err := os.Lstat(dst)
		if err != nil {
			return err
		}
		if lst.Mode()&os.ModeSymlink != 0 {
			if err := convertToRealDir(dst); err != nil {
				return err
			}
		}

		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := MergeDirectories(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return SymlinkOrCopy(src, dst)
}

// convertToRealDir replaces a symlink to a directory with a real directory
// whose entries link to the original target's entries.
func convertToRealDir(linkPath string) error {
	target, err := filepath.EvalSymlinks(linkPath)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		return err
	}
	if err := os.Remove(linkPath); err != nil {
		return err
	}
	if err := os.Mkdir(linkPath, 0o755); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := SymlinkOrCopy(filepath.Join(target, entry.Name()), filepath.Join(linkPath, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
