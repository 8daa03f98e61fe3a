package auth

import (
	"net/url"
	"strings"
)

// DefaultLanding is where users go after login when no safe target is given.
const DefaultLanding = "/"

// SafeRedirect returns next if it is a same-origin relative reference,
// otherwise DefaultLanding.
func SafeRedirect(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return DefaultLanding
	}
	if strings.ContainsRune(next, '\\') {
		return DefaultLanding
	}
	for _, r := range next {
		if r < 0x20 || r == 0x7f {
			return DefaultLanding
		}
	}

	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return DefaultLanding
	}
	return next
}
