package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PhilHem/log-sentinel/backend/alerts"
	"github.com/PhilHem/log-sentinel/backend/analysis"
	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/database"
	"github.com/PhilHem/log-sentinel/backend/ingest"
	"github.com/PhilHem/log-sentinel/backend/middleware"
	"github.com/PhilHem/log-sentinel/backend/stats"
	"github.com/PhilHem/log-sentinel/backend/store"
)

const testSecret = "test-secret-key-32-chars-long!!!"

// setupTestServer wires the full API against an in-memory database. The
// analysis service lives at analyzeURL.
func setupTestServer(t *testing.T, analyzeURL string) *httptest.Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(db)
	sess, err := NewSessionStore(testSecret, time.Hour, false)
	if err != nil {
		t.Fatal(err)
	}
	client := analysis.NewClient(analysis.ClientOptions{URL: analyzeURL, MaxAttempts: 2, RetryDelay: time.Millisecond, Timeout: time.Second})
	api, err := New(Deps{
		DB:        db,
		Sessions:  sess,
		Store:     st,
		Ingest:    ingest.New(st, ingest.Options{UploadDir: t.TempDir(), MaxSize: 1 << 20}),
		Analysis:  analysis.NewService(st, client, alerts.New(st, alerts.Options{}), 100),
		Stats:     stats.New(st),
		MaxUpload: 1 << 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(api.Routes(middleware.NewRateLimiter(1000, time.Minute)))
	t.Cleanup(srv.Close)
	return srv
}

type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &testClient{t: t, base: srv.URL, http: &http.Client{Jar: jar}}
}

// do sends body as JSON (when non-nil) and decodes the response into out
// (when non-nil), returning the status code.
func (c *testClient) do(method, path string, body, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *testClient) send(req *http.Request, out any) int {
	c.t.Helper()
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode response: %v", req.Method, req.URL.Path, err)
		}
	}
	return resp.StatusCode
}

func (c *testClient) upload(name, content string, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "ignored")
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		c.t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req, err := http.NewRequest("POST", c.base+"/api/v1/logs/upload", &buf)
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

func (c *testClient) register(email string) {
	c.t.Helper()
	if code := c.do("POST", "/api/auth/register", credentials{Email: email, Password: "secret123"}, nil); code != http.StatusCreated {
		c.t.Fatalf("Register %s: expected 201, got %d", email, code)
	}
}

func TestHealth(t *testing.T) {
	srv := setupTestServer(t, "http://127.0.0.1:0")
	var body map[string]string
	if code := newClient(t, srv).do("GET", "/health", nil, &body); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("Expected 200 ok, got %d %v", code, body)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	srv := setupTestServer(t, "http://127.0.0.1:0")
	c := newClient(t, srv)

	for _, path := range []string{"/api/v1/logs", "/api/v1/alerts", "/api/v1/stats/dashboard", "/api/v1/logs/files", "/api/auth/me"} {
		if code := c.do("GET", path, nil, nil); code != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, code)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[apperr.Kind]int{
		apperr.Validation:  http.StatusBadRequest,
		apperr.NotFound:    http.StatusNotFound,
		apperr.NoData:      http.StatusNotFound,
		apperr.Conflict:    http.StatusConflict,
		apperr.Unreachable: http.StatusBadGateway,
		apperr.IO:          http.StatusInternalServerError,
		apperr.Internal:    http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := StatusFor(kind); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	from, err := parseDate("2024-01-02", false)
	if err != nil || !from.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected start of day, got %v (%v)", from, err)
	}
	to, err := parseDate("2024-01-02", true)
	if err != nil || !to.Equal(time.Date(2024, 1, 2, 23, 59, 59, int(999*time.Millisecond), time.UTC)) {
		t.Errorf("Expected end of day, got %v (%v)", to, err)
	}
	if d, err := parseDate("", true); d != nil || err != nil {
		t.Errorf("Expected nil for empty input, got %v %v", d, err)
	}
	if _, err := parseDate("yesterday", false); !apperr.Is(err, apperr.Validation) {
		t.Errorf("Expected Validation, got %v", err)
	}
}

func TestNewSessionStore(t *testing.T) {
	if _, err := NewSessionStore("", time.Hour, false); err == nil {
		t.Error("Expected error for empty secret")
	}
	if _, err := NewSessionStore("short", time.Hour, false); err == nil {
		t.Error("Expected error for short secret")
	}
	s, err := NewSessionStore(testSecret, 2*time.Hour, true)
	if err != nil {
		t.Fatal(err)
	}
	if s.Options.MaxAge != 7200 || !s.Options.Secure || !s.Options.HttpOnly {
		t.Errorf("Unexpected cookie options %+v", s.Options)
	}
}

func TestNew_MissingDependency(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("Expected error for missing dependencies")
	}
}
