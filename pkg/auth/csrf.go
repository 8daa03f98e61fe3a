package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	// CSRFFieldName is the form field and query parameter carrying the token.
	CSRFFieldName = "csrf_token"

	csrfSessionKey = "csrf_nonce"
	csrfNonceSize  = 32
)

var csrfHeaders = []string{"X-CSRFToken", "X-CSRF-Token"}

// CSRF validation failures. The messages are shown to the client verbatim.
var (
	ErrCSRFMissing        = errors.New("The CSRF token is missing.")
	ErrCSRFSessionMissing = errors.New("The CSRF session token is missing.")
	ErrCSRFInvalid        = errors.New("The CSRF token is invalid.")
	ErrCSRFExpired        = errors.New("The CSRF token has expired.")
	ErrCSRFMismatch       = errors.New("The CSRF tokens do not match.")
)

// CSRF issues and checks tokens bound to the client's cookie session.
// A token is "<nonce>.<unix time>.<hmac>" where the nonce is stored in the
// session and the hmac covers nonce and time.
type CSRF struct {
	secret    []byte
	timeLimit time.Duration
	now       func() time.Time
}

// NewCSRF creates a token manager. A zero timeLimit means tokens never expire.
func NewCSRF(secret string, timeLimit time.Duration) *CSRF {
	return &CSRF{
		secret:    []byte(secret),
		timeLimit: timeLimit,
		now:       time.Now,
	}
}

// Token returns a fresh token for session, storing a nonce in it if needed.
// The caller must save the session.
func (c *CSRF) Token(session sessions.Session) (string, error) {
	nonce, _ := session.Get(csrfSessionKey).(string)
	if nonce == "" {
		raw := make([]byte, csrfNonceSize)
		if _, err := rand.Read(raw); err != nil {
			return "", err
		}
		nonce = hex.EncodeToString(raw)
		session.Set(csrfSessionKey, nonce)
	}

	ts := strconv.FormatInt(c.now().Unix(), 10)
	return nonce + "." + ts + "." + c.sign(nonce, ts), nil
}

// Validate checks token against the nonce stored in session.
func (c *CSRF) Validate(session sessions.Session, token string) error {
	if token == "" {
		return ErrCSRFMissing
	}

	nonce, _ := session.Get(csrfSessionKey).(string)
	if nonce == "" {
		return ErrCSRFSessionMissing
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrCSRFInvalid
	}
	tokNonce, ts, sig := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(sig), []byte(c.sign(tokNonce, ts))) {
		return ErrCSRFInvalid
	}

	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrCSRFInvalid
	}
	if c.timeLimit > 0 && c.now().Sub(time.Unix(issued, 0)) > c.timeLimit {
		return ErrCSRFExpired
	}

	if subtle.ConstantTimeCompare([]byte(tokNonce), []byte(nonce)) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}

// Protect rejects requests without a valid token with 400 and the failure
// description as body.
func (c *CSRF) Protect() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if err := c.Validate(sessions.Default(ctx), tokenFromRequest(ctx)); err != nil {
			ctx.String(http.StatusBadRequest, err.Error())
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (c *CSRF) sign(nonce, ts string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(nonce))
	mac.Write([]byte{'.'})
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}

func tokenFromRequest(c *gin.Context) string {
	if tok := c.PostForm(CSRFFieldName); tok != "" {
		return tok
	}
	if tok := c.Query(CSRFFieldName); tok != "" {
		return tok
	}
	for _, h := range csrfHeaders {
		if tok := c.GetHeader(h); tok != "" {
			return tok
		}
	}
	return ""
}
