package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/webdav"

	"github.com/denysvitali/filemanager-go/pkg/auth"
)

const davPrefix = "/dav"

var davMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete,
	"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK",
}

// setupWebDAV mounts the base directory under /dav/. Clients authenticate
// with HTTP Basic against the configured credentials.
func (s *Server) setupWebDAV() {
	dav := &webdav.Handler{
		Prefix:     davPrefix,
		FileSystem: webdav.Dir(s.storage.BaseDir()),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				s.logger.Debugf("WebDAV %s %s: %v", r.Method, r.URL.Path, err)
			}
		},
	}

	handler := func(c *gin.Context) {
		user, ok := s.gate.VerifyBasic(c.Request)
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="filemanager"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(auth.UserKey, user)
		dav.ServeHTTP(c.Writer, c.Request)
	}

	for _, method := range davMethods {
		s.engine.Handle(method, davPrefix, handler)
		s.engine.Handle(method, davPrefix+"/*path", handler)
	}
	s.logger.Infof("WebDAV enabled at %s/", davPrefix)
}
