package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/verdict"
)

const okBody = `{"total_logs":1,"suspicious_logs":1,"clean_logs":0,"results":[{"ip":"1.2.3.4","message":"m","is_suspicious":true}]}`

// flakyServer fails the first n requests with status 503.
func flakyServer(t *testing.T, n int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= n {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okBody))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(url string) *Client {
	return NewClient(ClientOptions{URL: url, MaxAttempts: 3, RetryDelay: time.Millisecond, Timeout: time.Second})
}

var oneItem = []verdict.LogItem{{IP: "1.2.3.4", Endpoint: "unknown", Severity: "INFO", Message: "m"}}

func TestAnalyze_SucceedsOnThirdAttempt(t *testing.T) {
	srv, calls := flakyServer(t, 2)

	batch, err := newTestClient(srv.URL).Analyze(context.Background(), oneItem)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
	if batch.SuspiciousLogs != 1 || batch.Results[0].IP != "1.2.3.4" {
		t.Errorf("Unexpected batch %+v", batch)
	}
}

func TestAnalyze_ExhaustsBudget(t *testing.T) {
	srv, calls := flakyServer(t, 100)

	_, err := newTestClient(srv.URL).Analyze(context.Background(), oneItem)
	if !apperr.Is(err, apperr.Unreachable) {
		t.Fatalf("Expected Unreachable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected exactly 3 calls, got %d", calls.Load())
	}
}

func TestAnalyze_MalformedBodyIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`<html>bad gateway</html>`))
			return
		}
		w.Write([]byte(okBody))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Analyze(context.Background(), oneItem); err != nil {
		t.Fatalf("Expected success on retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestAnalyze_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Analyze(context.Background(), oneItem)
	if !apperr.Is(err, apperr.Unreachable) {
		t.Errorf("Expected Unreachable, got %v", err)
	}
}

func TestAnalyze_SendsNormalizedJSON(t *testing.T) {
	var got []verdict.LogItem
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Write([]byte(okBody))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Analyze(context.Background(), oneItem); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != oneItem[0] {
		t.Errorf("Expected %v sent, got %v", oneItem, got)
	}
}

func TestAnalyze_RejectsEmptyAndOversized(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")

	if _, err := c.Analyze(context.Background(), nil); !apperr.Is(err, apperr.NoData) {
		t.Errorf("Expected NoData for empty batch, got %v", err)
	}
	big := make([]verdict.LogItem, MaxBatch+1)
	if _, err := c.Analyze(context.Background(), big); !apperr.Is(err, apperr.Validation) {
		t.Errorf("Expected Validation for oversized batch, got %v", err)
	}
}

func TestAnalyze_CancelledDuringDelay(t *testing.T) {
	srv, calls := flakyServer(t, 100)
	c := NewClient(ClientOptions{URL: srv.URL, MaxAttempts: 3, RetryDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Analyze(ctx, oneItem)
	if !apperr.Is(err, apperr.Unreachable) {
		t.Errorf("Expected Unreachable, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("Expected cancellation to cut the retry delay short")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", calls.Load())
	}
}

func TestAnalyze_PerAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, MaxAttempts: 2, RetryDelay: time.Millisecond, Timeout: 50 * time.Millisecond})
	if _, err := c.Analyze(context.Background(), oneItem); err != nil {
		t.Fatalf("Expected second attempt to succeed, got %v", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientOptions{URL: "http://x", RetryDelay: -time.Second})
	if c.maxAttempts != 3 {
		t.Errorf("Expected default 3 attempts, got %d", c.maxAttempts)
	}
	if c.retryDelay != 0 {
		t.Errorf("Expected negative delay clamped to 0, got %v", c.retryDelay)
	}
}
