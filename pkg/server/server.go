package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/denysvitali/filemanager-go/pkg/auth"
	"github.com/denysvitali/filemanager-go/pkg/config"
	"github.com/denysvitali/filemanager-go/pkg/storage"
	"github.com/denysvitali/filemanager-go/pkg/telemetry"
)

// SessionCookieName is the name of the signed client session cookie
const SessionCookieName = "filemanager_session"

//go:embed templates/*.html
var templateFS embed.FS

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	logger   *logrus.Logger
	storage  *storage.Manager
	sessions *auth.SessionStore
	gate     *auth.Gate
	csrf     *auth.CSRF
	engine   *gin.Engine
	server   *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	store, err := storage.New(cfg.FileManager.BaseDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	creds, err := auth.NewStaticCredentials(cfg.Auth.Username, cfg.Auth.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to set up credentials: %w", err)
	}

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	// Set gin mode based on log level
	if logger.Level == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)
	engine.MaxMultipartMemory = cfg.Upload.MaxFileSize()

	engine.Use(gin.Recovery())
	engine.Use(ginLogger(logger))

	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(telemetry.ServiceName))
	}

	cookieStore := cookie.NewStore([]byte(cfg.Security.SecretKey))
	cookieStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Auth.SessionLifetime / time.Second),
		HttpOnly: true,
		Secure:   cfg.Security.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	engine.Use(sessions.Sessions(SessionCookieName, cookieStore))

	sessionStore := auth.NewSessionStore(cfg.Auth.SessionLifetime, logger)

	server := &Server{
		config:   cfg,
		logger:   logger,
		storage:  store,
		sessions: sessionStore,
		gate:     auth.NewGate(sessionStore, creds, logger),
		csrf:     auth.NewCSRF(cfg.Security.SecretKey, cfg.Security.CSRFTimeLimit),
		engine:   engine,
	}

	server.setupRoutes()

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if err := s.sessions.Start(); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}

	s.server = &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Serving %s on %s", s.storage.BaseDir(), s.config.Server.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.Stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Engine returns the gin engine for testing purposes
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	csrf := s.csrf.Protect()

	// Ungated
	s.engine.GET("/alive", s.handleAlive)
	s.engine.GET(auth.LoginPath, s.handleLoginForm)
	s.engine.POST(auth.LoginPath, csrf, s.handleLogin)
	s.engine.GET("/logout", s.handleLogout)

	if s.config.WebDAV.Enabled {
		s.setupWebDAV()
	}

	private := s.engine.Group("/", s.gate.Require())

	for _, p := range []string{"/", "/index", "/home"} {
		private.GET(p, s.handleIndex)
	}
	private.GET("/server_info", s.handleServerInfo)

	private.GET("/media", s.handleMedia)
	private.GET("/media/*path", s.handleMedia)

	private.GET("/new-folder", s.handleNewFolderForm)
	private.GET("/new-folder/*path", s.handleNewFolderForm)
	private.POST("/create-new-folder", csrf, s.handleCreateFolder)
	private.POST("/create-new-folder/*path", csrf, s.handleCreateFolder)

	private.GET("/confirm-delete-folder/*path", s.handleConfirmDelete)
	private.GET("/delete-folder/*path", csrf, s.handleDelete)

	uploadLimit := s.uploadBody(int64(s.config.Upload.MaxFiles)*s.config.Upload.MaxFileSize() + 1<<20)
	private.GET("/upload", s.handleUploadForm)
	private.GET("/upload/*path", s.handleUploadForm)
	private.POST("/upload", uploadLimit, csrf, s.handleUpload)
	private.POST("/upload/*path", uploadLimit, csrf, s.handleUpload)

	private.GET("/completed", s.handleCompleted)
	private.GET("/completed/*path", s.handleCompleted)

	private.GET("/thumbnail/*path", s.handleThumbnail)

	s.engine.NoRoute(s.handleNotFound)
}

// ginLogger creates a gin logger middleware using logrus
func ginLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status":     statusCode,
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency":    latency,
			"user_agent": c.Request.UserAgent(),
		})

		if query := loggableQuery(raw); query != "" {
			entry = entry.WithField("query", query)
		}
		if user := c.GetString(auth.UserKey); user != "" {
			entry = entry.WithField("user", user)
		}

		// Log based on status code
		if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request completed")
		}
	}
}

// loggableQuery drops the CSRF token from a raw query string.
func loggableQuery(raw string) string {
	if !strings.Contains(raw, auth.CSRFFieldName) {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	values.Del(auth.CSRFFieldName)
	return values.Encode()
}

// uploadBody caps the request body at limit and parses the multipart form
// before the CSRF check. An oversized request is answered with a flash and a
// redirect; nothing is saved.
func (s *Server) uploadBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		tooLarge := c.Request.ContentLength > limit
		if !tooLarge {
			var maxErr *http.MaxBytesError
			_, err := c.MultipartForm()
			tooLarge = errors.As(err, &maxErr)
		}
		if !tooLarge {
			c.Next()
			return
		}

		c.Abort()
		dir, ok := s.resolveDir(c)
		if !ok {
			return
		}
		s.logger.Warnf("Rejected upload into %q: body exceeds %d bytes", dir.Rel, limit)
		s.flash(c, flashError, "The upload exceeds the %d MiB limit per request and was rejected; no files were saved.", limit>>20)
		s.redirect(c, routeURL("/completed", dir.Rel))
	}
}
