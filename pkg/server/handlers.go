package server

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/denysvitali/filemanager-go/pkg/auth"
	"github.com/denysvitali/filemanager-go/pkg/storage"
	"github.com/denysvitali/filemanager-go/pkg/telemetry"
)

// uploadFieldPrefix selects which multipart parts are treated as files
const uploadFieldPrefix = "file"

// rawPathParam returns the still-escaped wildcard segment of the route, so
// that it is decoded exactly once by the resolver.
func rawPathParam(c *gin.Context) string {
	full := c.FullPath()
	i := strings.Index(full, "*")
	if i < 0 {
		return ""
	}
	prefix := full[:i]
	escaped := c.Request.URL.EscapedPath()
	if !strings.HasPrefix(escaped, prefix) {
		return url.PathEscape(strings.TrimPrefix(c.Param("path"), "/"))
	}
	return escaped[len(prefix):]
}

// resolve maps the route's path segment under the base directory, rendering
// the bad path page on failure.
func (s *Server) resolve(c *gin.Context) (storage.Resolved, bool) {
	return s.resolveWith(c, s.storage.Resolve)
}

// resolveEntry is resolve without following a symlink in the last element.
func (s *Server) resolveEntry(c *gin.Context) (storage.Resolved, bool) {
	return s.resolveWith(c, s.storage.ResolveEntry)
}

func (s *Server) resolveWith(c *gin.Context, resolver func(string) (storage.Resolved, error)) (storage.Resolved, bool) {
	segment := rawPathParam(c)
	r, err := resolver(segment)
	if err != nil {
		s.logger.Warnf("Rejected path %q: %v", segment, err)
		attempted, uerr := url.PathUnescape(segment)
		if uerr != nil {
			attempted = segment
		}
		s.renderBadPath(c, attempted)
		return storage.Resolved{}, false
	}
	return r, true
}

// resolveDir is resolve for routes that need an existing directory.
func (s *Server) resolveDir(c *gin.Context) (storage.Resolved, bool) {
	r, ok := s.resolve(c)
	if !ok {
		return r, false
	}
	info, err := s.storage.Stat(r)
	if err != nil || !info.IsDir() {
		s.renderBadPath(c, r.Rel)
		return storage.Resolved{}, false
	}
	return r, true
}

// handleAlive handles health check requests
func (s *Server) handleAlive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleServerInfo handles server info requests
func (s *Server) handleServerInfo(c *gin.Context) {
	response := s.storage.GetServerInfo().Response(time.Now())

	s.logger.Debugf("Server info endpoint response: uptime=%.2fs", response.Uptime)
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleIndex(c *gin.Context) {
	s.render(c, http.StatusOK, "index.html", &page{
		Title: "Home",
		Disk:  s.storage.DiskUsage(),
	})
}

func (s *Server) handleNotFound(c *gin.Context) {
	s.render(c, http.StatusNotFound, "404.html", &page{Title: "Not found"})
}

func (s *Server) handleLoginForm(c *gin.Context) {
	next := c.Query("next")
	if _, ok := s.gate.Current(c); ok {
		c.Redirect(http.StatusFound, auth.SafeRedirect(next))
		return
	}
	s.render(c, http.StatusOK, "login.html", &page{Title: "Log in", Next: next})
}

func (s *Server) handleLogin(c *gin.Context) {
	next := c.PostForm("next")
	if next == "" {
		next = c.Query("next")
	}

	if !s.gate.Login(c, c.PostForm("username"), c.PostForm("password")) {
		s.render(c, http.StatusOK, "login.html", &page{
			Title:  "Log in",
			Next:   next,
			Errors: []string{"Invalid username or password."},
		})
		return
	}

	s.redirect(c, auth.SafeRedirect(next))
}

func (s *Server) handleLogout(c *gin.Context) {
	s.gate.Logout(c)
	s.flash(c, flashInfo, "You have been logged out.")
	s.redirect(c, auth.LoginPath)
}

// handleMedia lists a directory or streams a file
func (s *Server) handleMedia(c *gin.Context) {
	r, ok := s.resolve(c)
	if !ok {
		return
	}

	info, err := s.storage.Stat(r)
	if err != nil {
		s.renderBadPath(c, r.Rel)
		return
	}

	if !info.IsDir() {
		s.serveFile(c, r)
		return
	}

	listing, err := s.storage.List(c.Request.Context(), r)
	if err != nil {
		s.renderError(c, err)
		return
	}

	title := r.Name()
	if title == "" {
		title = "Files"
	}
	s.render(c, http.StatusOK, "media.html", &page{
		Title:   title,
		Path:    r.Rel,
		IsDir:   true,
		Listing: &listing,
	})
}

func (s *Server) serveFile(c *gin.Context, r storage.Resolved) {
	f, info, err := s.storage.Open(r)
	if err != nil {
		s.renderError(c, err)
		return
	}
	defer f.Close()

	if _, ok := c.GetQuery("download"); ok {
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()}))
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

func (s *Server) handleNewFolderForm(c *gin.Context) {
	r, ok := s.resolveDir(c)
	if !ok {
		return
	}
	s.render(c, http.StatusOK, "folderform.html", &page{Title: "New folder", Path: r.Rel, IsDir: true})
}

func (s *Server) handleCreateFolder(c *gin.Context) {
	parent, ok := s.resolveDir(c)
	if !ok {
		return
	}

	name := c.PostForm("folder_name")
	created, err := s.storage.CreateDirectory(c.Request.Context(), parent, name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			s.flash(c, flashError, "A folder named %q already exists.", strings.TrimSpace(name))
		case errors.Is(err, storage.ErrInvalidName):
			s.flash(c, flashError, "%q is not a valid folder name.", name)
		default:
			s.logger.Errorf("Failed to create folder %q in %q: %v", name, parent.Rel, err)
			s.flash(c, flashError, "Could not create folder %q.", name)
		}
		s.redirect(c, routeURL("/media", parent.Rel))
		return
	}

	telemetry.RecordEvent(c.Request.Context(), s.logger, telemetry.Event{
		Name: telemetry.EventFolderCreated,
		User: c.GetString(auth.UserKey),
		Path: created.Rel,
	})

	s.flash(c, flashInfo, "Created folder %q.", created.Name())
	s.redirect(c, routeURL("/media", created.Rel))
}

func (s *Server) handleConfirmDelete(c *gin.Context) {
	r, ok := s.resolveEntry(c)
	if !ok {
		return
	}
	if r.Rel == "" {
		s.flash(c, flashError, "The base directory cannot be deleted.")
		s.redirect(c, "/media")
		return
	}
	info, err := s.storage.Lstat(r)
	if err != nil {
		s.renderBadPath(c, r.Rel)
		return
	}
	s.render(c, http.StatusOK, "confirm_delete.html", &page{
		Title:  "Delete " + r.Name(),
		Path:   r.Rel,
		Parent: r.ParentRel(),
		IsDir:  info.IsDir(),
	})
}

func (s *Server) handleDelete(c *gin.Context) {
	r, ok := s.resolveEntry(c)
	if !ok {
		return
	}
	if _, err := s.storage.Lstat(r); err != nil && r.Rel != "" {
		s.renderBadPath(c, r.Rel)
		return
	}

	parent, err := s.storage.Delete(c.Request.Context(), r)
	if err != nil {
		if errors.Is(err, storage.ErrRootDelete) {
			s.flash(c, flashError, "The base directory cannot be deleted.")
			s.redirect(c, "/media")
			return
		}
		s.renderError(c, err)
		return
	}

	telemetry.RecordEvent(c.Request.Context(), s.logger, telemetry.Event{
		Name: telemetry.EventDeleted,
		User: c.GetString(auth.UserKey),
		Path: r.Rel,
	})

	s.flash(c, flashInfo, "Deleted %q.", r.Name())
	s.redirect(c, routeURL("/media", parent))
}

func (s *Server) handleUploadForm(c *gin.Context) {
	r, ok := s.resolveDir(c)
	if !ok {
		return
	}
	s.render(c, http.StatusOK, "upload.html", &page{
		Title:  "Upload",
		Path:   r.Rel,
		IsDir:  true,
		Upload: s.config.Upload,
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	ctx, span := otel.Tracer(telemetry.ServiceName).Start(c.Request.Context(), "handle_upload")
	defer span.End()

	dir, ok := s.resolveDir(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("dir", dir.Rel))

	form, err := c.MultipartForm()
	if err != nil {
		span.RecordError(err)
		s.flash(c, flashError, "No files were received.")
		s.redirect(c, routeURL("/completed", dir.Rel))
		return
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		if strings.HasPrefix(field, uploadFieldPrefix) {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	limits := s.config.Upload
	saved, total := 0, int64(0)
	for _, field := range fields {
		for _, fh := range form.File[field] {
			if saved >= limits.MaxFiles {
				s.flash(c, flashError, "Only %d files can be uploaded at once; %q was skipped.", limits.MaxFiles, fh.Filename)
				continue
			}
			if fh.Size > limits.MaxFileSize() {
				s.flash(c, flashError, "%q is larger than %d MiB and was skipped.", fh.Filename, limits.MaxFileSizeMB)
				continue
			}

			src, err := fh.Open()
			if err != nil {
				s.flash(c, flashError, "Could not read %q.", fh.Filename)
				continue
			}
			stored, n, err := s.storage.SaveUpload(ctx, dir, fh.Filename, src)
			src.Close()
			if err != nil {
				s.logger.Errorf("Failed to save upload %q into %q: %v", fh.Filename, dir.Rel, err)
				s.flash(c, flashError, "Could not save %q.", fh.Filename)
				continue
			}

			saved++
			total += n
			s.flash(c, flashInfo, "Uploaded %s.", stored.Name())
		}
	}
	span.SetAttributes(attribute.Int("files", saved), attribute.Int64("bytes", total))

	if saved > 0 {
		telemetry.RecordEvent(ctx, s.logger, telemetry.Event{
			Name:  telemetry.EventUploaded,
			User:  c.GetString(auth.UserKey),
			Path:  dir.Rel,
			Files: saved,
			Bytes: total,
		})
	}

	s.redirect(c, routeURL("/completed", dir.Rel))
}

func (s *Server) handleCompleted(c *gin.Context) {
	r, ok := s.resolve(c)
	if !ok {
		return
	}
	s.render(c, http.StatusOK, "complete.html", &page{Title: "Upload complete", Path: r.Rel})
}

func (s *Server) handleThumbnail(c *gin.Context) {
	r, ok := s.resolve(c)
	if !ok {
		return
	}

	data, err := s.storage.Thumbnail(c.Request.Context(), r)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		s.handleNotFound(c)
		return
	case errors.Is(err, storage.ErrNotImage), errors.Is(err, storage.ErrImageTooLarge):
		s.renderBadPath(c, r.Rel)
		return
	default:
		s.renderError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, "image/jpeg", data)
}
