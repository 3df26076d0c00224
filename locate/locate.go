// Package locate finds mbox containers below a root directory.
package locate

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// Extension identifies container files; it is matched case-insensitively.
const Extension = ".mbox"

var ErrDirectoryNotFound = errors.New("directory not found")

// DirectoryNotFoundError is returned when the root is missing or not a directory.
type DirectoryNotFoundError struct {
	Path string
	Err  error
}

func (e *DirectoryNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("directory not found: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("directory not found: %s", e.Path)
}

func (e *DirectoryNotFoundError) Unwrap() error {
	return e.Err
}

func (e *DirectoryNotFoundError) Is(target error) bool {
	return target == ErrDirectoryNotFound
}

// CheckRoot verifies that root exists and is a directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return &DirectoryNotFoundError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return &DirectoryNotFoundError{Path: root, Err: errors.New("not a directory")}
	}
	return nil
}

// IsContainer reports whether name carries the container extension.
func IsContainer(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), Extension)
}

// Containers walks root in lexical order and yields every container path.
// Directory entries that cannot be read are yielded with a non-nil error and
// the walk continues with their siblings. Symlinked directories are not
// followed. Each call starts a fresh walk.
func Containers(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := CheckRoot(root); err != nil {
			yield(root, err)
			return
		}

		walkRoot := root
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			walkRoot = resolved
		}

		_ = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if !yield(path, fmt.Errorf("walk %s: %w", path, err)) {
					return filepath.SkipAll
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !IsContainer(d.Name()) {
				return nil
			}
			if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
				return nil
			}
			if !yield(path, nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// Count returns the number of containers below root, ignoring walk errors.
func Count(root string) (int, error) {
	if err := CheckRoot(root); err != nil {
		return 0, err
	}
	count := 0
	for _, err := range Containers(root) {
		if err == nil {
			count++
		}
	}
	return count, nil
}
