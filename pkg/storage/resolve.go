package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrOutsideBase is returned when a path resolves outside the base directory.
	ErrOutsideBase = errors.New("path escapes the base directory")
	// ErrInvalidPath is returned for segments that cannot be decoded or contain NUL bytes.
	ErrInvalidPath = errors.New("invalid path")
	// ErrAlreadyExists is returned when creating a directory that already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidName is returned when a folder or file name is empty after sanitizing.
	ErrInvalidName = errors.New("invalid name")
	// ErrRootDelete is returned when asked to delete the base directory itself.
	ErrRootDelete = errors.New("refusing to delete the base directory")
	// ErrNotDirectory is returned when a directory was expected.
	ErrNotDirectory = errors.New("not a directory")
	// ErrNotImage is returned when a thumbnail is requested for a non-image file.
	ErrNotImage = errors.New("not an image")
	// ErrImageTooLarge is returned for images too large to thumbnail.
	ErrImageTooLarge = errors.New("image dimensions too large")
	// ErrSymlink is returned when an upload would replace a symlink.
	ErrSymlink = errors.New("refusing to write through a symlink")
)

// Resolved is a path known to lie within the base directory
type Resolved struct {
	// Rel is slash separated and relative to the base directory; "" is the base itself.
	Rel string
	Abs string
}

// Name returns the last element of the path, or "" for the base directory.
func (r Resolved) Name() string {
	if r.Rel == "" {
		return ""
	}
	return path.Base(r.Rel)
}

// ParentRel returns the relative path of the parent directory.
func (r Resolved) ParentRel() string {
	return parentRel(r.Rel)
}

func parentRel(rel string) string {
	if rel == "" {
		return ""
	}
	p := path.Dir(rel)
	if p == "." {
		return ""
	}
	return p
}

// Resolve translates a percent-encoded route segment into a path under the
// base directory. The segment is decoded exactly once.
func (m *Manager) Resolve(segment string) (Resolved, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return Resolved{}, fmt.Errorf("decode %q: %w", segment, ErrInvalidPath)
	}
	return m.ResolveDecoded(decoded)
}

// ResolveEntry is Resolve for operations on the directory entry itself: a
// symlink in the last element is not followed, only its parent is checked.
func (m *Manager) ResolveEntry(segment string) (Resolved, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return Resolved{}, fmt.Errorf("decode %q: %w", segment, ErrInvalidPath)
	}
	return m.ResolveEntryDecoded(decoded)
}

// ResolveDecoded is Resolve for an already decoded relative path.
func (m *Manager) ResolveDecoded(rel string) (Resolved, error) {
	return m.resolve(rel, true)
}

// ResolveEntryDecoded is ResolveEntry for an already decoded relative path.
func (m *Manager) ResolveEntryDecoded(rel string) (Resolved, error) {
	return m.resolve(rel, false)
}

func (m *Manager) resolve(rel string, follow bool) (Resolved, error) {
	if strings.ContainsRune(rel, 0) {
		return Resolved{}, fmt.Errorf("%q: %w", rel, ErrInvalidPath)
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.TrimLeft(rel, "/")

	abs := filepath.Join(m.baseDir, filepath.FromSlash(rel))
	if !within(m.baseDir, abs) {
		return Resolved{}, fmt.Errorf("%q: %w", rel, ErrOutsideBase)
	}

	check := abs
	if !follow && abs != m.baseDir {
		check = filepath.Dir(abs)
	}
	// Following every link on the way, dangling ones included, must end
	// inside the real base directory.
	real, err := realPath(check)
	if err != nil || !within(m.realBase, real) {
		return Resolved{}, fmt.Errorf("%q: %w", rel, ErrOutsideBase)
	}

	r, err := filepath.Rel(m.baseDir, abs)
	if err != nil {
		return Resolved{}, fmt.Errorf("%q: %w", rel, ErrOutsideBase)
	}
	r = filepath.ToSlash(r)
	if r == "." {
		r = ""
	}
	return Resolved{Rel: r, Abs: abs}, nil
}

// Stat returns file info for a resolved path, following symlinks.
func (m *Manager) Stat(r Resolved) (os.FileInfo, error) {
	return os.Stat(r.Abs)
}

// Lstat returns file info for the entry itself; a symlink is not followed.
func (m *Manager) Lstat(r Resolved) (os.FileInfo, error) {
	return os.Lstat(r.Abs)
}

const maxLinkHops = 40

var errLinkLoop = errors.New("too many levels of symbolic links")

// realPath returns p with every symlink evaluated. Unlike
// filepath.EvalSymlinks it also works when p, or the target of a link on
// the way, does not exist.
func realPath(p string) (string, error) {
	return realPathHops(filepath.Clean(p), 0)
}

func realPathHops(p string, hops int) (string, error) {
	if hops > maxLinkHops {
		return "", errLinkLoop
	}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return real, nil
	}

	parent := filepath.Dir(p)
	if parent == p {
		return p, nil
	}
	dir, err := realPathHops(parent, hops)
	if err != nil {
		return "", err
	}

	joined := filepath.Join(dir, filepath.Base(p))
	info, err := os.Lstat(joined)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return joined, nil
	}

	target, err := os.Readlink(joined)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(target) {
		vol := filepath.VolumeName(target)
		return realJoin(vol+string(filepath.Separator), target[len(vol):], hops+1)
	}
	return realJoin(dir, target, hops+1)
}

// realJoin applies the elements of rel to the already evaluated dir one at a
// time, so ".." always steps out of a real directory.
func realJoin(dir, rel string, hops int) (string, error) {
	cur := dir
	for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
		switch elem {
		case "", ".":
		case "..":
			cur = filepath.Dir(cur)
		default:
			next, err := realPathHops(filepath.Join(cur, elem), hops)
			if err != nil {
				return "", err
			}
			cur = next
		}
	}
	return cur, nil
}

func within(base, p string) bool {
	if p == base {
		return true
	}
	if base == string(filepath.Separator) {
		return strings.HasPrefix(p, base)
	}
	return strings.HasPrefix(p, base+string(filepath.Separator))
}

// Open opens a regular file for reading.
func (m *Manager) Open(r Resolved) (*os.File, os.FileInfo, error) {
	f, err := os.Open(r.Abs)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s: is a directory", r.Rel)
	}
	return f, info, nil
}
