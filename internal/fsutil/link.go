package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SymlinkOrCopy makes dst refer to src, creating dst's parent directories.
// A symbolic link is used where the platform allows it; otherwise src is
// copied.
func SymlinkOrCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	if err := os.Symlink(abs, dst); err == nil {
		return nil
	}
	return copyPath(abs, dst)
}

// CopyDir recursively copies the contents of src into dst, dereferencing any
// symbolic links so that dst holds real files.
func CopyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := copyPath(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return CopyDir(src, dst)
	}
	return CopyFile(src, dst, info.Mode().Perm())
}

// CopyFile copies a single file, creating dst's parent directories.
func CopyFile(src, dst string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// EmptyDir ensures dir exists and contains nothing.
func EmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// IsEmptyDir reports whether dir has no entries. A missing dir counts as empty.
func IsEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	defer f.Close()
	names, err := f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(names) == 0, nil
}

// LinkFiles links every file below src for which keep returns true to the
// same relative path below dst. keep receives slash-separated paths; a nil
// keep links everything.
func LinkFiles(src, dst string, keep func(rel string) bool) (int, error) {
	files, err := ListFiles(src)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rel := range files {
		if keep != nil && !keep(filepath.ToSlash(rel)) {
			continue
		}
		if err := SymlinkOrCopy(filepath.Join(src, rel), filepath.Join(dst, rel)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
