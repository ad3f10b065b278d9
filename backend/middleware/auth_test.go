package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
)

func newTestSessions() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-chars-long!!!"))
}

// sessionCookies issues a session cookie holding values.
func sessionCookies(t *testing.T, store sessions.Store, values map[any]any) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	session, _ := store.Get(req, SessionName)
	for k, v := range values {
		session.Values[k] = v
	}
	if err := session.Save(req, rec); err != nil {
		t.Fatal(err)
	}
	return rec.Result().Cookies()
}

func protected(store sessions.Store, got *uint) http.Handler {
	return RequireAuth(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, _ = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRequireAuth_NoSession(t *testing.T) {
	var got uint
	rec := httptest.NewRecorder()
	protected(newTestSessions(), &got).ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/logs", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_PassesUserID(t *testing.T) {
	store := newTestSessions()
	var got uint
	req := httptest.NewRequest("GET", "/api/v1/logs", nil)
	for _, c := range sessionCookies(t, store, map[any]any{SessionUserID: uint(42)}) {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	protected(store, &got).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got != 42 {
		t.Errorf("Expected user 42 in context, got %d", got)
	}
}

func TestRequireAuth_RejectsPendingMFA(t *testing.T) {
	store := newTestSessions()
	var got uint
	req := httptest.NewRequest("GET", "/api/v1/logs", nil)
	for _, c := range sessionCookies(t, store, map[any]any{SessionPendingMFA: uint(42)}) {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	protected(store, &got).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 while MFA pending, got %d", rec.Code)
	}
	if got != 0 {
		t.Errorf("Handler should not run, got user %d", got)
	}
}

func TestUserID_Missing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, ok := UserID(req.Context()); ok {
		t.Error("Expected no user id in a bare context")
	}
	if id, ok := UserID(WithUserID(req.Context(), 7)); !ok || id != 7 {
		t.Errorf("Expected 7, got %d", id)
	}
}
