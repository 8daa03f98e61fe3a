package storage

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/russross/blackfriday/v2"
)

const maxReadmeSize = 1 << 20

var readmeNames = []string{"README.md", "Readme.md", "readme.md"}

// Readme renders the README of dir, if present, to HTML. Raw HTML in the
// markdown source is dropped. Results are cached by path and modification time.
func (m *Manager) Readme(ctx context.Context, dir Resolved) template.HTML {
	_, span := m.tracer.Start(ctx, "render_readme")
	defer span.End()

	for _, name := range readmeNames {
		p := filepath.Join(dir.Abs, name)
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		key := fmt.Sprintf("%s@%d", p, info.ModTime().UnixNano())
		if cached, ok := m.readmes.Get(key); ok {
			return cached.(template.HTML)
		}

		html, err := renderMarkdown(p)
		if err != nil {
			span.RecordError(err)
			m.logger.Warnf("Failed to render %s: %v", p, err)
			return ""
		}
		m.readmes.Add(key, html)
		return html
	}
	return ""
}

func renderMarkdown(p string) (template.HTML, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	src, err := io.ReadAll(io.LimitReader(f, maxReadmeSize))
	if err != nil {
		return "", err
	}

	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.SkipHTML | blackfriday.Safelink | blackfriday.NofollowLinks | blackfriday.NoreferrerLinks,
	})
	out := blackfriday.Run(src,
		blackfriday.WithRenderer(renderer),
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
	)
	return template.HTML(out), nil
}
