package extractor

import (
	"testing"
	"time"
)

func TestExtract_FullLine(t *testing.T) {
	f := Extract("2024-01-01 10:00:00 ERROR user=alice GET /api/x from 10.0.0.1")

	if f.Timestamp != "2024-01-01 10:00:00" {
		t.Errorf("expected timestamp '2024-01-01 10:00:00', got %q", f.Timestamp)
	}
	if f.Severity != "ERROR" {
		t.Errorf("expected severity ERROR, got %q", f.Severity)
	}
	if f.User != "alice" {
		t.Errorf("expected user alice, got %q", f.User)
	}
	if f.Endpoint != "GET /api/x" {
		t.Errorf("expected endpoint 'GET /api/x', got %q", f.Endpoint)
	}
	if f.IP != "10.0.0.1" {
		t.Errorf("expected ip 10.0.0.1, got %q", f.IP)
	}
}

func TestExtract_NoMetadata(t *testing.T) {
	f := Extract("no metadata here")
	if !f.Empty() {
		t.Errorf("expected no fields, got %+v", f)
	}
}

func TestExtract_FieldsAreIndependent(t *testing.T) {
	f := Extract("2024-01-01 10:05:00 INFO POST /api/y")

	if f.Severity != "INFO" {
		t.Errorf("expected severity INFO, got %q", f.Severity)
	}
	if f.Endpoint != "POST /api/y" {
		t.Errorf("expected endpoint 'POST /api/y', got %q", f.Endpoint)
	}
	if f.IP != "" {
		t.Errorf("expected no ip, got %q", f.IP)
	}
	if f.User != "" {
		t.Errorf("expected no user, got %q", f.User)
	}
}

func TestExtract_Cases(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Fields
	}{
		{"lenient ip octets", "blocked 999.300.1.2 twice", Fields{IP: "999.300.1.2"}},
		{"first ip wins", "from 1.2.3.4 to 5.6.7.8", Fields{IP: "1.2.3.4"}},
		{"severity must be whole word", "INFORMATION ERRORS WARNING", Fields{}},
		{"first severity wins", "DEBUG then ERROR", Fields{Severity: "DEBUG"}},
		{"lowercase severity ignored", "error: disk full", Fields{}},
		{"user stops at punctuation", "login user=bob.smith ok", Fields{User: "bob"}},
		{"empty user", "user= nobody", Fields{}},
		{"delete endpoint", "DELETE /api/items/3?force=1 done", Fields{Endpoint: "DELETE /api/items/3?force=1"}},
		{"unknown verb", "PATCH /api/z", Fields{}},
		{"iso timestamp not matched", "2024-01-01T10:00:00Z", Fields{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(tc.line)
			if got != tc.want {
				t.Errorf("Extract(%q): expected %+v, got %+v", tc.line, tc.want, got)
			}
		})
	}
}

func TestExtract_Pure(t *testing.T) {
	lines := []string{
		"",
		"2024-01-01 10:00:00 WARN user=x1 PUT /a 8.8.8.8",
		"\x00\xff garbage \t",
	}
	for _, line := range lines {
		first := Extract(line)
		second := Extract(line)
		if first != second {
			t.Errorf("Extract(%q) not deterministic: %+v vs %+v", line, first, second)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	ts := ParseTimestamp("2024-01-01 10:00:00")
	if ts == nil {
		t.Fatal("expected a parsed timestamp")
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("expected %v, got %v", want, *ts)
	}

	if ParseTimestamp("") != nil {
		t.Error("empty timestamp should be nil")
	}
	// matches the line pattern but is not a calendar time
	if ParseTimestamp("2024-13-45 99:00:00") != nil {
		t.Error("invalid timestamp should be nil")
	}
}
