package analysis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PhilHem/log-sentinel/backend/alerts"
	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/database"
	"github.com/PhilHem/log-sentinel/backend/models"
	"github.com/PhilHem/log-sentinel/backend/store"
	"github.com/PhilHem/log-sentinel/backend/verdict"
)

// stubAnalyzer records what it was asked and replies with a fixed batch.
type stubAnalyzer struct {
	calls int
	got   []verdict.LogItem
	reply *verdict.Batch
	err   error
}

func (s *stubAnalyzer) Analyze(_ context.Context, items []verdict.LogItem) (*verdict.Batch, error) {
	s.calls++
	s.got = items
	return s.reply, s.err
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	return store.New(db)
}

func str(s string) *string { return &s }

func fileWithRecords(t *testing.T, st *store.Store, owner uint, n int) *models.LogFile {
	t.Helper()
	ctx := context.Background()
	f := &models.LogFile{Filename: "f.log", OriginalName: "f.log", UserID: owner, Status: models.FileStatusCompleted, TotalLines: n, ParsedLines: n}
	if err := st.CreateFile(ctx, f); err != nil {
		t.Fatal(err)
	}
	var recs []models.LogRecord
	for i := 1; i <= n; i++ {
		line := fmt.Sprintf("line %d", i)
		recs = append(recs, models.LogRecord{FileID: f.ID, UserID: owner, LineNumber: i, Message: line, RawLine: line})
	}
	if n > 0 {
		recs[0].IP = str("1.2.3.4")
		recs[0].Severity = str("ERROR")
		recs[0].Endpoint = str("POST /login")
		if err := st.CreateRecords(ctx, recs); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestAnalyzeFile_CreatesAlertsForSuspicious(t *testing.T) {
	st := setupTestStore(t)
	f := fileWithRecords(t, st, 1, 2)
	stub := &stubAnalyzer{reply: &verdict.Batch{TotalLogs: 2, SuspiciousLogs: 1, CleanLogs: 1, Results: []verdict.Result{
		{IP: "1.2.3.4", IsSuspicious: true},
		{IsSuspicious: false},
	}}}
	svc := NewService(st, stub, alerts.New(st, alerts.Options{}), 100)

	res, err := svc.AnalyzeFile(context.Background(), 1, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Analyzed != 2 || res.Truncated {
		t.Errorf("Unexpected result %+v", res)
	}
	if res.Alerts.Created != 1 {
		t.Errorf("Expected 1 alert, got %+v", res.Alerts)
	}

	want := []verdict.LogItem{
		{IP: "1.2.3.4", Endpoint: "POST /login", Severity: "ERROR", Message: "line 1"},
		{IP: "unknown", Endpoint: "unknown", Severity: "INFO", Message: "line 2"},
	}
	if len(stub.got) != 2 || stub.got[0] != want[0] || stub.got[1] != want[1] {
		t.Errorf("Expected items %v, got %v", want, stub.got)
	}

	page, err := st.ListAlerts(context.Background(), 1, store.AlertFilter{}, store.Page{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Alerts) != 1 || page.Alerts[0].IP != "1.2.3.4" || page.Alerts[0].FileID != f.ID {
		t.Errorf("Unexpected stored alerts %+v", page.Alerts)
	}
}

func TestAnalyzeFile_BoundedWindowInLineOrder(t *testing.T) {
	st := setupTestStore(t)
	f := fileWithRecords(t, st, 1, 130)
	stub := &stubAnalyzer{reply: &verdict.Batch{}}
	svc := NewService(st, stub, alerts.New(st, alerts.Options{}), 100)

	res, err := svc.AnalyzeFile(context.Background(), 1, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stub.got) != 100 {
		t.Fatalf("Expected 100 items, got %d", len(stub.got))
	}
	if stub.got[0].Message != "line 1" || stub.got[99].Message != "line 100" {
		t.Errorf("Expected first 100 lines in order, got %q..%q", stub.got[0].Message, stub.got[99].Message)
	}
	if !res.Truncated {
		t.Error("Expected truncated result")
	}
}

func TestAnalyzeFile_NoDataSkipsCall(t *testing.T) {
	st := setupTestStore(t)
	f := fileWithRecords(t, st, 1, 0)
	stub := &stubAnalyzer{}
	svc := NewService(st, stub, alerts.New(st, alerts.Options{}), 100)

	_, err := svc.AnalyzeFile(context.Background(), 1, f.ID)
	if !apperr.Is(err, apperr.NoData) {
		t.Errorf("Expected NoData, got %v", err)
	}
	if stub.calls != 0 {
		t.Errorf("Expected no outbound call, got %d", stub.calls)
	}
}

func TestAnalyzeFile_OtherOwner(t *testing.T) {
	st := setupTestStore(t)
	f := fileWithRecords(t, st, 1, 2)
	stub := &stubAnalyzer{}
	svc := NewService(st, stub, alerts.New(st, alerts.Options{}), 100)

	_, err := svc.AnalyzeFile(context.Background(), 2, f.ID)
	if !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}
	if stub.calls != 0 {
		t.Errorf("Expected no outbound call, got %d", stub.calls)
	}
}

func TestAnalyzeFile_UnreachableCreatesNoAlerts(t *testing.T) {
	st := setupTestStore(t)
	f := fileWithRecords(t, st, 1, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	client := NewClient(ClientOptions{URL: srv.URL, MaxAttempts: 3, RetryDelay: time.Millisecond})
	svc := NewService(st, client, alerts.New(st, alerts.Options{}), 100)

	_, err := svc.AnalyzeFile(context.Background(), 1, f.ID)
	if !apperr.Is(err, apperr.Unreachable) {
		t.Fatalf("Expected Unreachable, got %v", err)
	}
	n, _ := st.CountAlerts(context.Background(), 1, false)
	if n != 0 {
		t.Errorf("Expected no alerts, got %d", n)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	items := Normalize([]models.LogRecord{
		{Message: "bare"},
		{IP: str(""), Severity: str("WARN"), Message: "partial"},
	})
	if items[0] != (verdict.LogItem{IP: "unknown", Endpoint: "unknown", Severity: "INFO", Message: "bare"}) {
		t.Errorf("Unexpected defaults %+v", items[0])
	}
	if items[1].IP != "unknown" || items[1].Severity != "WARN" {
		t.Errorf("Unexpected partial %+v", items[1])
	}
}

func TestNewService_ClampsMaxRecords(t *testing.T) {
	if s := NewService(nil, nil, nil, 500); s.maxRecords != MaxBatch {
		t.Errorf("Expected clamp to %d, got %d", MaxBatch, s.maxRecords)
	}
	if s := NewService(nil, nil, nil, 10); s.maxRecords != 10 {
		t.Errorf("Expected 10, got %d", s.maxRecords)
	}
}
