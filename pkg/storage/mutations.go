package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
)

// SanitizeName turns user input into a single safe path element.
func SanitizeName(name string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == 0:
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, ".")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return cleaned, nil
}

// uploadBaseName strips any client-side directory from an uploaded filename,
// e.g. "C:\fakepath\photo.jpg".
func uploadBaseName(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	return path.Base(filename)
}

// CreateDirectory creates name as a new directory inside parent.
func (m *Manager) CreateDirectory(ctx context.Context, parent Resolved, name string) (Resolved, error) {
	_, span := m.tracer.Start(ctx, "create_directory")
	defer span.End()

	span.SetAttributes(
		attribute.String("parent", parent.Rel),
		attribute.String("name", name),
	)

	clean, err := SanitizeName(name)
	if err != nil {
		span.RecordError(err)
		return Resolved{}, err
	}

	info, err := os.Stat(parent.Abs)
	if err != nil {
		span.RecordError(err)
		return Resolved{}, err
	}
	if !info.IsDir() {
		return Resolved{}, fmt.Errorf("%s: %w", parent.Rel, ErrNotDirectory)
	}

	target, err := m.ResolveDecoded(path.Join(parent.Rel, clean))
	if err != nil {
		span.RecordError(err)
		return Resolved{}, err
	}

	if err := os.Mkdir(target.Abs, 0755); err != nil {
		span.RecordError(err)
		if errors.Is(err, fs.ErrExist) {
			return Resolved{}, fmt.Errorf("%s: %w", clean, ErrAlreadyExists)
		}
		return Resolved{}, fmt.Errorf("failed to create directory %s: %w", target.Rel, err)
	}

	m.logger.Infof("Created directory %s", target.Rel)
	return target, nil
}

// Delete removes a file, or a directory together with everything below it.
// It returns the relative path of the parent directory.
func (m *Manager) Delete(ctx context.Context, target Resolved) (string, error) {
	_, span := m.tracer.Start(ctx, "delete")
	defer span.End()

	span.SetAttributes(attribute.String("path", target.Rel))

	if target.Rel == "" {
		return "", ErrRootDelete
	}

	info, err := os.Lstat(target.Abs)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if info.IsDir() {
		err = os.RemoveAll(target.Abs)
	} else {
		err = os.Remove(target.Abs)
	}
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to delete %s: %w", target.Rel, err)
	}

	m.logger.Infof("Deleted %s", target.Rel)
	return target.ParentRel(), nil
}

// SaveUpload writes src into dir under the sanitized filename, replacing any
// existing regular file. Symlinks are never written through. It returns the stored path and the number of bytes written.
func (m *Manager) SaveUpload(ctx context.Context, dir Resolved, filename string, src io.Reader) (Resolved, int64, error) {
	_, span := m.tracer.Start(ctx, "save_upload")
	defer span.End()

	span.SetAttributes(
		attribute.String("dir", dir.Rel),
		attribute.String("filename", filename),
	)

	name, err := SanitizeName(uploadBaseName(filename))
	if err != nil {
		span.RecordError(err)
		return Resolved{}, 0, err
	}

	target, err := m.ResolveDecoded(path.Join(dir.Rel, name))
	if err != nil {
		span.RecordError(err)
		return Resolved{}, 0, err
	}

	if info, err := os.Lstat(target.Abs); err == nil {
		switch {
		case info.IsDir():
			return Resolved{}, 0, fmt.Errorf("%s: %w", target.Rel, ErrAlreadyExists)
		case info.Mode()&fs.ModeSymlink != 0:
			return Resolved{}, 0, fmt.Errorf("%s: %w", target.Rel, ErrSymlink)
		}
	}

	f, err := os.OpenFile(target.Abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		span.RecordError(err)
		return Resolved{}, 0, fmt.Errorf("failed to open %s: %w", target.Rel, err)
	}

	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		span.RecordError(err)
		return Resolved{}, n, fmt.Errorf("failed to write %s: %w", target.Rel, err)
	}

	span.SetAttributes(attribute.Int64("bytes", n))
	m.logger.Infof("Saved upload %s (%d bytes)", target.Rel, n)
	return target, n, nil
}
