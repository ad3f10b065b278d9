// Package verdict defines the request and response contract of the
// external threat-analysis service.
package verdict

import (
	"errors"
	"fmt"

	"github.com/valyala/fastjson"
)

// LogItem is one record as sent to the analysis service. Every field is
// always present; missing values are replaced before sending.
type LogItem struct {
	IP       string `json:"ip"`
	Endpoint string `json:"endpoint"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type AIAnalysis struct {
	Severity          string `json:"severity,omitempty"`
	ThreatType        string `json:"threat_type,omitempty"`
	Explanation       string `json:"explanation,omitempty"`
	RecommendedAction string `json:"recommended_action,omitempty"`
}

type Detection struct {
	MLScore            float64 `json:"ml_score"`
	MLDetected         bool    `json:"ml_detected"`
	RuleDetected       bool    `json:"rule_detected"`
	BruteForceDetected bool    `json:"brute_force_detected"`
	AttackType         string  `json:"attack_type,omitempty"`
	AttemptCount       int     `json:"attempt_count,omitempty"`
}

// Result is the judgment for a single record.
type Result struct {
	IP           string      `json:"ip"`
	Endpoint     string      `json:"endpoint,omitempty"`
	Severity     string      `json:"severity,omitempty"`
	Message      string      `json:"message"`
	IsSuspicious bool        `json:"is_suspicious"`
	AIAnalysis   *AIAnalysis `json:"ai_analysis,omitempty"`
	Detection    *Detection  `json:"detection_details,omitempty"`
}

type Batch struct {
	TotalLogs      int      `json:"total_logs"`
	SuspiciousLogs int      `json:"suspicious_logs"`
	CleanLogs      int      `json:"clean_logs"`
	Results        []Result `json:"results"`
}

// Suspicious returns the results flagged as suspicious, in order.
func (b *Batch) Suspicious() []Result {
	var out []Result
	for _, r := range b.Results {
		if r.IsSuspicious {
			out = append(out, r)
		}
	}
	return out
}

var ErrMalformed = errors.New("malformed analysis response")

var parserPool fastjson.ParserPool

// Decode parses a service response. Optional objects and fields may be
// absent or null. Aggregate counts missing from the body are derived from
// the results.
func Decode(body []byte) (*Batch, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: expected object, got %s", ErrMalformed, v.Type())
	}
	results := v.Get("results")
	if results == nil || results.Type() != fastjson.TypeArray {
		return nil, fmt.Errorf("%w: results array missing", ErrMalformed)
	}

	items, _ := results.Array()
	b := &Batch{Results: make([]Result, 0, len(items))}
	for _, item := range items {
		if item.Type() != fastjson.TypeObject {
			return nil, fmt.Errorf("%w: result is %s", ErrMalformed, item.Type())
		}
		b.Results = append(b.Results, decodeResult(item))
	}

	suspicious := len(b.Suspicious())
	b.TotalLogs = intOr(v, "total_logs", len(b.Results))
	b.SuspiciousLogs = intOr(v, "suspicious_logs", suspicious)
	b.CleanLogs = intOr(v, "clean_logs", len(b.Results)-suspicious)
	return b, nil
}

func decodeResult(v *fastjson.Value) Result {
	r := Result{
		IP:           str(v, "ip"),
		Endpoint:     str(v, "endpoint"),
		Severity:     str(v, "severity"),
		Message:      str(v, "message"),
		IsSuspicious: v.GetBool("is_suspicious"),
	}
	if ai := v.Get("ai_analysis"); ai != nil && ai.Type() == fastjson.TypeObject {
		r.AIAnalysis = &AIAnalysis{
			Severity:          str(ai, "severity"),
			ThreatType:        str(ai, "threat_type"),
			Explanation:       str(ai, "explanation"),
			RecommendedAction: str(ai, "recommended_action"),
		}
	}
	if d := v.Get("detection_details"); d != nil && d.Type() == fastjson.TypeObject {
		r.Detection = &Detection{
			MLScore:            d.GetFloat64("ml_score"),
			MLDetected:         d.GetBool("ml_detected"),
			RuleDetected:       d.GetBool("rule_detected"),
			BruteForceDetected: d.GetBool("brute_force_detected"),
			AttackType:         str(d, "attack_type"),
			AttemptCount:       d.GetInt("attempt_count"),
		}
	}
	return r
}

func str(v *fastjson.Value, key string) string {
	return string(v.GetStringBytes(key))
}

func intOr(v *fastjson.Value, key string, fallback int) int {
	if f := v.Get(key); f != nil && f.Type() == fastjson.TypeNumber {
		return f.GetInt()
	}
	return fallback
}
