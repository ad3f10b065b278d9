package analysis

import (
	"context"
	"log/slog"

	"github.com/PhilHem/log-sentinel/backend/alerts"
	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/store"
	"github.com/PhilHem/log-sentinel/backend/verdict"
)

type Service struct {
	store      *store.Store
	analyzer   Analyzer
	alerts     *alerts.Generator
	maxRecords int
}

// NewService wires the orchestrator. maxRecords is clamped to MaxBatch.
func NewService(st *store.Store, analyzer Analyzer, gen *alerts.Generator, maxRecords int) *Service {
	if maxRecords < 1 || maxRecords > MaxBatch {
		maxRecords = MaxBatch
	}
	return &Service{store: st, analyzer: analyzer, alerts: gen, maxRecords: maxRecords}
}

// Result is the outcome of analyzing one file.
type Result struct {
	FileID    uint           `json:"file_id"`
	Analyzed  int            `json:"analyzed"`
	Truncated bool           `json:"truncated"`
	Batch     *verdict.Batch `json:"ai"`
	Alerts    alerts.Report  `json:"alerts"`
}

// AnalyzeFile sends the first records of a file, in line order, to the
// analyzer and raises an alert for each suspicious verdict. A file without
// records fails with NoData before any outbound call. Alert write failures
// are reported in the result and do not fail the call.
func (s *Service) AnalyzeFile(ctx context.Context, ownerID, fileID uint) (*Result, error) {
	const op = "analysis.AnalyzeFile"

	f, err := s.store.GetFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.RecordsForFile(ctx, f.ID, s.maxRecords)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.Errorf(apperr.NoData, op, "no log records for file %d", f.ID)
	}

	batch, err := s.analyzer.Analyze(ctx, Normalize(records))
	if err != nil {
		return nil, err
	}

	report := s.alerts.Generate(ctx, ownerID, f.ID, batch)
	slog.Info("File analyzed", "source", "analysis",
		"file_id", f.ID, "records", len(records), "suspicious", len(batch.Suspicious()),
		"alerts_created", report.Created, "alerts_failed", report.Failed)

	return &Result{
		FileID:    f.ID,
		Analyzed:  len(records),
		Truncated: f.TotalLines > len(records),
		Batch:     batch,
		Alerts:    report,
	}, nil
}
