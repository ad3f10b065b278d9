// Package extractor pulls structured fields out of a single unstructured
// log line.
package extractor

import (
	"regexp"
	"time"
)

// TimestampLayout is the only timestamp shape recognized in raw lines.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	// Octets are not range checked: 999.1.1.1 is accepted as an IP.
	ipPattern        = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)
	timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
	severityPattern  = regexp.MustCompile(`\b(?:INFO|WARN|ERROR|DEBUG)\b`)
	userPattern      = regexp.MustCompile(`user=([a-zA-Z0-9]+)`)
	endpointPattern  = regexp.MustCompile(`(?:GET|POST|PUT|DELETE) \S+`)
)

// Fields holds what was found in a line. Every field is independent and an
// empty string means the field was absent.
type Fields struct {
	IP        string `json:"ip,omitempty"`
	Timestamp string `json:"timestamp,omitempty"` // raw matched text
	Severity  string `json:"severity,omitempty"`
	User      string `json:"user,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// Empty reports whether nothing was extracted.
func (f Fields) Empty() bool {
	return f == Fields{}
}

// Extract returns the fields found in line. It has no side effects and
// never fails.
func Extract(line string) Fields {
	var f Fields
	f.IP = ipPattern.FindString(line)
	f.Timestamp = timestampPattern.FindString(line)
	f.Severity = severityPattern.FindString(line)
	if m := userPattern.FindStringSubmatch(line); m != nil {
		f.User = m[1]
	}
	f.Endpoint = endpointPattern.FindString(line)
	return f
}

// ParseTimestamp converts a raw timestamp from Extract into a UTC time.
// It returns nil when raw is empty or not a real calendar time.
func ParseTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}
