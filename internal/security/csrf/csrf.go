// Package csrf implements double-submit CSRF protection: a random token is
// set in a script-readable cookie and must be echoed in a request header.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	// HeaderName is the request header that must echo the cookie value.
	HeaderName = "X-CSRF-Token"
	// DefaultCookieName uses the __Host- prefix, which pins the cookie to the
	// exact host, path "/" and secure transport.
	DefaultCookieName = "__Host-csrf"

	tokenBytes = 32
	cookieTTL  = time.Hour
)

// ErrInvalidCSRF is returned when the cookie or header is missing or they differ.
var ErrInvalidCSRF = errors.New("invalid_csrf")

// Guard issues and verifies CSRF tokens.
type Guard struct {
	cookieName string
	secure     bool
}

// NewGuard returns a Guard using cookieName, or DefaultCookieName when empty.
// secure should only be false for plain-HTTP local development.
func NewGuard(cookieName string, secure bool) *Guard {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Guard{cookieName: cookieName, secure: secure}
}

// CookieName returns the name of the CSRF cookie.
func (g *Guard) CookieName() string {
	return g.cookieName
}

// Issue generates a fresh token, sets it as a cookie on w and returns it.
func (g *Guard) Issue(w http.ResponseWriter) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	sameSite := http.SameSiteNoneMode
	if !g.secure {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cookieTTL.Seconds()),
		HttpOnly: false,
		Secure:   g.secure,
		SameSite: sameSite,
	})
	return token, nil
}

// Verify checks that the cookie and header are both present and equal.
func (g *Guard) Verify(r *http.Request) error {
	cookie, err := r.Cookie(g.cookieName)
	if err != nil || cookie.Value == "" {
		return ErrInvalidCSRF
	}
	header := r.Header.Get(HeaderName)
	if header == "" {
		return ErrInvalidCSRF
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return ErrInvalidCSRF
	}
	return nil
}
