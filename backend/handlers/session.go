package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const minSecretLength = 32

// NewSessionStore builds the cookie store. The secret must be at least 32
// characters; secure marks cookies HTTPS-only.
func NewSessionStore(secret string, timeout time.Duration, secure bool) (*sessions.CookieStore, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is required (set session.secret or SESSION_SECRET)")
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d characters, got %d", minSecretLength, len(secret))
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(timeout.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store, nil
}
