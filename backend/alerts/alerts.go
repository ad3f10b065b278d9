// Package alerts turns suspicious verdicts into persisted alerts.
package alerts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/models"
	"github.com/PhilHem/log-sentinel/backend/verdict"

	"gorm.io/datatypes"
)

const (
	DefaultThreatType  = "Unknown"
	DefaultExplanation = "Anomaly detected"
	DefaultAction      = "Manual review"
)

// Writer persists alerts. *store.Store satisfies it.
type Writer interface {
	CreateAlert(ctx context.Context, a *models.Alert) error
	HasOpenAlert(ctx context.Context, ownerID uint, fingerprint string) (bool, error)
}

type Options struct {
	// Dedupe skips a verdict when the owner already has an unresolved alert
	// for the same file, ip and message.
	Dedupe bool
}

type Generator struct {
	w      Writer
	dedupe bool
}

func New(w Writer, opts Options) *Generator {
	return &Generator{w: w, dedupe: opts.Dedupe}
}

// Report summarizes one Generate call. Created + Skipped + Failed equals the
// number of suspicious verdicts.
type Report struct {
	Created int            `json:"created"`
	Skipped int            `json:"skipped,omitempty"`
	Failed  int            `json:"failed"`
	Errors  []string       `json:"errors,omitempty"`
	Alerts  []models.Alert `json:"-"`
}

type outcome struct {
	alert   *models.Alert
	skipped bool
	err     error
}

// Generate writes one alert per suspicious verdict. Writes run
// concurrently and a failed write never aborts the others.
func (g *Generator) Generate(ctx context.Context, ownerID, fileID uint, batch *verdict.Batch) Report {
	var rep Report
	if batch == nil {
		return rep
	}

	pending := make([]models.Alert, 0, len(batch.Results))
	seen := make(map[string]bool)
	for _, r := range batch.Suspicious() {
		a := FromVerdict(ownerID, fileID, r)
		if g.dedupe {
			if seen[a.Fingerprint] {
				rep.Skipped++
				continue
			}
			seen[a.Fingerprint] = true
			key := a.Fingerprint
			a.DedupeKey = &key
		}
		pending = append(pending, a)
	}

	outcomes := make([]outcome, len(pending))
	var wg sync.WaitGroup
	for i := range pending {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = g.create(ctx, &pending[i])
		}(i)
	}
	wg.Wait()

	for _, o := range outcomes {
		switch {
		case o.err != nil:
			rep.Failed++
			rep.Errors = append(rep.Errors, o.err.Error())
			slog.Error("Alert write failed", "source", "alerts", "file_id", fileID, "error", o.err.Error())
		case o.skipped:
			rep.Skipped++
		default:
			rep.Created++
			rep.Alerts = append(rep.Alerts, *o.alert)
		}
	}
	return rep
}

func (g *Generator) create(ctx context.Context, a *models.Alert) outcome {
	if g.dedupe {
		open, err := g.w.HasOpenAlert(ctx, a.UserID, a.Fingerprint)
		if err != nil {
			return outcome{err: err}
		}
		if open {
			return outcome{skipped: true}
		}
	}
	if err := g.w.CreateAlert(ctx, a); err != nil {
		// a concurrent run inserted the same open alert first
		if g.dedupe && apperr.Is(err, apperr.Conflict) {
			return outcome{skipped: true}
		}
		return outcome{err: fmt.Errorf("alert for %s: %w", a.IP, err)}
	}
	return outcome{alert: a}
}

// FromVerdict builds an unsaved alert, applying defaults for anything the
// verdict leaves out.
func FromVerdict(ownerID, fileID uint, r verdict.Result) models.Alert {
	a := models.Alert{
		UserID:            ownerID,
		FileID:            fileID,
		IP:                r.IP,
		Severity:          models.SeverityMedium,
		ThreatType:        DefaultThreatType,
		Message:           r.Message,
		Explanation:       DefaultExplanation,
		RecommendedAction: DefaultAction,
		Fingerprint:       Fingerprint(fileID, r.IP, r.Message),
	}
	if ai := r.AIAnalysis; ai != nil {
		a.Severity = NormalizeSeverity(ai.Severity)
		if ai.ThreatType != "" {
			a.ThreatType = ai.ThreatType
		}
		if ai.Explanation != "" {
			a.Explanation = ai.Explanation
		}
		if ai.RecommendedAction != "" {
			a.RecommendedAction = ai.RecommendedAction
		}
	}
	if d := r.Detection; d != nil {
		if a.ThreatType == DefaultThreatType && d.AttackType != "" {
			a.ThreatType = d.AttackType
		}
		if raw, err := json.Marshal(d); err == nil {
			a.Details = datatypes.JSON(raw)
		}
	}
	return a
}

// NormalizeSeverity maps a service severity onto Low, Medium, High or
// Critical, case-insensitively. Anything else becomes Medium.
func NormalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return models.SeverityLow
	case "high":
		return models.SeverityHigh
	case "critical":
		return models.SeverityCritical
	default:
		return models.SeverityMedium
	}
}

// Fingerprint identifies an alert by file, ip and message.
func Fingerprint(fileID uint, ip, message string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s", fileID, ip, message)))
	return hex.EncodeToString(sum[:])
}
