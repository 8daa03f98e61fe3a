package storage

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/denysvitali/filemanager-go/internal/models"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// IsImage reports whether name has an extension the thumbnailer can decode.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ListDirectory returns the immediate children of dir split into directories
// and files. Symlinks are classified by their target.
func (m *Manager) ListDirectory(ctx context.Context, dir Resolved) ([]models.Entry, []models.Entry, error) {
	_, span := m.tracer.Start(ctx, "list_directory")
	defer span.End()

	span.SetAttributes(attribute.String("path", dir.Rel))

	dirEntries, err := os.ReadDir(dir.Abs)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	directories := make([]models.Entry, 0)
	files := make([]models.Entry, 0)
	for _, de := range dirEntries {
		full := filepath.Join(dir.Abs, de.Name())

		var info fs.FileInfo
		if de.Type()&fs.ModeSymlink != 0 {
			info, err = os.Stat(full)
			if err != nil {
				// Broken link, report the link itself as a file
				info, err = de.Info()
			}
		} else {
			info, err = de.Info()
		}
		if err != nil {
			// Entry vanished between ReadDir and Stat
			m.logger.Debugf("Skipping %s: %v", full, err)
			continue
		}

		entry := models.Entry{
			Name:    de.Name(),
			Path:    path.Join(dir.Rel, de.Name()),
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if entry.IsDir {
			entry.Size = 0
			directories = append(directories, entry)
			continue
		}
		entry.IsImage = IsImage(entry.Name)
		files = append(files, entry)
	}

	span.SetAttributes(
		attribute.Int("directories", len(directories)),
		attribute.Int("files", len(files)),
	)
	return directories, files, nil
}

// List builds the full view of a directory: its children, breadcrumbs, the
// rendered README if any and disk usage of the base directory.
func (m *Manager) List(ctx context.Context, dir Resolved) (models.Listing, error) {
	directories, files, err := m.ListDirectory(ctx, dir)
	if err != nil {
		return models.Listing{}, err
	}

	return models.Listing{
		Path:        dir.Rel,
		Parent:      dir.ParentRel(),
		Directories: directories,
		Files:       files,
		Breadcrumbs: Breadcrumbs(dir.Rel),
		Readme:      m.Readme(ctx, dir),
		Disk:        m.DiskUsage(),
	}, nil
}

// Breadcrumbs splits a relative path into cumulative crumbs, starting at the root.
func Breadcrumbs(rel string) []models.Crumb {
	crumbs := []models.Crumb{{Label: "Home", Path: ""}}
	if rel == "" {
		return crumbs
	}
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		crumbs = append(crumbs, models.Crumb{
			Label: p,
			Path:  strings.Join(parts[:i+1], "/"),
		})
	}
	return crumbs
}
