package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
)

const (
	CSRFCookie = "_csrf"
	CSRFHeader = "X-CSRF-Token"
)

// CSRFProtection implements double-submit tokens: a signed token is set as
// a cookie on safe requests and must be echoed in the X-CSRF-Token header
// on state-changing ones.
type CSRFProtection struct {
	secret []byte
	secure bool
}

func NewCSRFProtection(secret string, secure bool) *CSRFProtection {
	return &CSRFProtection{secret: []byte(secret), secure: secure}
}

func (c *CSRFProtection) sign(random []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(random)
	return mac.Sum(nil)
}

func (c *CSRFProtection) generateToken() string {
	random := make([]byte, 32)
	rand.Read(random)
	return base64.URLEncoding.EncodeToString(append(random, c.sign(random)...))
}

func (c *CSRFProtection) validateToken(token string) bool {
	if token == "" {
		return false
	}
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil || len(decoded) != 64 {
		return false
	}
	return hmac.Equal(decoded[32:], c.sign(decoded[:32]))
}

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

func (c *CSRFProtection) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if safeMethod(r.Method) {
			if _, err := r.Cookie(CSRFCookie); err != nil {
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookie,
					Value:    c.generateToken(),
					Path:     "/",
					HttpOnly: false, // read by the client to echo back
					SameSite: http.SameSiteStrictMode,
					Secure:   c.secure,
				})
			}
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CSRFCookie)
		if err != nil {
			writeError(w, http.StatusForbidden, "CSRF token missing")
			return
		}
		// Header only: reading a form value would consume upload bodies.
		token := r.Header.Get(CSRFHeader)
		if token != cookie.Value || !c.validateToken(token) {
			writeError(w, http.StatusForbidden, "CSRF token invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}
