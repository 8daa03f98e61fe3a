package server

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/denysvitali/filemanager-go/internal/models"
	"github.com/denysvitali/filemanager-go/pkg/auth"
	"github.com/denysvitali/filemanager-go/pkg/config"
)

const (
	flashError = "error"
	flashInfo  = "info"
)

// page is the data handed to every template
type page struct {
	Title     string
	User      string
	CSRFToken string
	Errors    []string
	Messages  []string

	// Path is the relative path the page is about; "" is the base directory.
	Path    string
	Parent  string
	IsDir   bool
	Listing *models.Listing
	Disk    models.DiskStats
	Upload  config.UploadConfig
	Next    string
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"url":       routeURL,
		"humanSize": humanSize,
		"timestamp": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
		"csrfField": func(token string) template.HTML {
			return template.HTML(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`,
				auth.CSRFFieldName, template.HTMLEscapeString(token)))
		},
	}
}

// routeURL joins a route prefix and a relative path, escaping each segment.
func routeURL(prefix, rel string) string {
	if rel == "" {
		return prefix
	}
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.Join(parts, "/")
}

// humanSize formats a byte count; it accepts the int64 sizes of entries and
// the uint64 counters of disk usage.
func humanSize(v interface{}) string {
	var n uint64
	switch x := v.(type) {
	case int64:
		if x > 0 {
			n = uint64(x)
		}
	case uint64:
		n = x
	case int:
		if x > 0 {
			n = uint64(x)
		}
	}

	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func flashStrings(flashes []interface{}) []string {
	out := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// render fills the common fields of p, saves the session and writes the template.
func (s *Server) render(c *gin.Context, code int, name string, p *page) {
	session := sessions.Default(c)

	p.User = c.GetString(auth.UserKey)
	token, err := s.csrf.Token(session)
	if err != nil {
		s.logger.Errorf("Failed to issue CSRF token: %v", err)
	}
	p.CSRFToken = token
	p.Errors = append(p.Errors, flashStrings(session.Flashes(flashError))...)
	p.Messages = append(p.Messages, flashStrings(session.Flashes(flashInfo))...)

	if err := session.Save(); err != nil {
		s.logger.Errorf("Failed to save session: %v", err)
	}
	c.HTML(code, name, p)
}

// flash queues a message for the next rendered page.
func (s *Server) flash(c *gin.Context, kind, format string, args ...interface{}) {
	sessions.Default(c).AddFlash(fmt.Sprintf(format, args...), kind)
}

// redirect saves the session and redirects with 302.
func (s *Server) redirect(c *gin.Context, target string) {
	if err := sessions.Default(c).Save(); err != nil {
		s.logger.Errorf("Failed to save session: %v", err)
	}
	c.Redirect(http.StatusFound, target)
}

func (s *Server) renderBadPath(c *gin.Context, rel string) {
	s.render(c, http.StatusBadRequest, "400.html", &page{Title: "Bad request", Path: rel})
}

func (s *Server) renderError(c *gin.Context, err error) {
	s.logger.Errorf("Request %s failed: %v", c.Request.URL.Path, err)
	_ = c.Error(err)
	s.render(c, http.StatusInternalServerError, "500.html", &page{Title: "Server error"})
}
