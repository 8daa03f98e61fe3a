package auth

import (
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	// LoginPath is the login route; anonymous requests are redirected there.
	LoginPath = "/login"
	// UserKey is the gin context key holding the authenticated username.
	UserKey = "user"

	sessionIDKey = "sid"
)

// Gate decides whether a client is authenticated.
type Gate struct {
	store  *SessionStore
	creds  CredentialStore
	logger *logrus.Logger
}

// NewGate creates a gate over the given session store and credentials.
func NewGate(store *SessionStore, creds CredentialStore, logger *logrus.Logger) *Gate {
	return &Gate{store: store, creds: creds, logger: logger}
}

// Current returns the authenticated session of the request, if any.
func (g *Gate) Current(c *gin.Context) (Session, bool) {
	id, _ := sessions.Default(c).Get(sessionIDKey).(string)
	return g.store.Lookup(id)
}

// Require redirects anonymous requests to the login page, remembering the
// requested URI in the next parameter.
func (g *Gate) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := g.Current(c)
		if !ok {
			target := LoginPath + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Set(UserKey, sess.User)
		c.Next()
	}
}

// Login checks the credentials and on success binds a new server-side
// session to the client's cookie session. The caller must save the session.
func (g *Gate) Login(c *gin.Context, username, password string) bool {
	if !g.creds.Verify(username, password) {
		g.logger.Warnf("Failed login for %q from %s", username, c.ClientIP())
		return false
	}

	session := sessions.Default(c)
	if old, _ := session.Get(sessionIDKey).(string); old != "" {
		g.store.Revoke(old)
	}
	sess := g.store.Create(username)
	session.Set(sessionIDKey, sess.ID)

	g.logger.Infof("User %s logged in from %s", username, c.ClientIP())
	return true
}

// Logout revokes the server-side session and clears the cookie session.
// The caller must save the session.
func (g *Gate) Logout(c *gin.Context) {
	session := sessions.Default(c)
	if id, _ := session.Get(sessionIDKey).(string); id != "" {
		g.store.Revoke(id)
	}
	session.Clear()
}

// VerifyBasic checks HTTP Basic credentials, for clients that cannot hold a
// cookie session.
func (g *Gate) VerifyBasic(r *http.Request) (string, bool) {
	user, pass, ok := r.BasicAuth()
	if !ok || !g.creds.Verify(user, pass) {
		return "", false
	}
	return user, true
}
