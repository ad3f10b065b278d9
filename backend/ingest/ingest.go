// Package ingest accepts uploaded log artifacts and drives their parse
// lifecycle: uploaded -> parsing -> completed | failed.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/extractor"
	"github.com/PhilHem/log-sentinel/backend/models"
	"github.com/PhilHem/log-sentinel/backend/parser"
	"github.com/PhilHem/log-sentinel/backend/store"

	"github.com/google/uuid"
)

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

type Options struct {
	UploadDir string
	MaxSize   int64
	Parser    parser.Options
}

type Service struct {
	store *store.Store
	opts  Options
}

func New(st *store.Store, opts Options) *Service {
	return &Service{store: st, opts: opts}
}

// UploadMeta describes an uploaded stream. Size is what the client
// announced; the stored size is what was actually read.
type UploadMeta struct {
	OriginalName string
	Size         int64
	OwnerID      uint
}

// FileStatus is the parse progress of one file.
type FileStatus struct {
	Status      string `json:"status"`
	TotalLines  int    `json:"total_lines"`
	ParsedLines int    `json:"parsed_lines"`
	Error       string `json:"error,omitempty"`
}

// Upload stores r under a generated name and records a LogFile in the
// uploaded state.
func (s *Service) Upload(ctx context.Context, r io.Reader, meta UploadMeta) (*models.LogFile, error) {
	const op = "ingest.Upload"
	if meta.OwnerID == 0 {
		return nil, apperr.Errorf(apperr.Validation, op, "owner is required")
	}
	original := filepath.Base(strings.TrimSpace(meta.OriginalName))
	if original == "" || original == "." || original == string(filepath.Separator) {
		return nil, apperr.Errorf(apperr.Validation, op, "file name is required")
	}
	if s.opts.MaxSize > 0 && meta.Size > s.opts.MaxSize {
		return nil, apperr.Errorf(apperr.Validation, op, "file is %d bytes, limit is %d", meta.Size, s.opts.MaxSize)
	}

	if err := os.MkdirAll(s.opts.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString()
	if ext := filepath.Ext(original); safeExt.MatchString(ext) {
		name += strings.ToLower(ext)
	}
	path := filepath.Join(s.opts.UploadDir, name)

	written, err := s.write(path, r)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	f := &models.LogFile{
		Filename:     name,
		OriginalName: original,
		Path:         path,
		Size:         written,
		UserID:       meta.OwnerID,
		Status:       models.FileStatusUploaded,
	}
	if err := s.store.CreateFile(ctx, f); err != nil {
		os.Remove(path)
		return nil, err
	}

	slog.Info("log file uploaded", "source", "ingest", "user_id", meta.OwnerID, "file_id", f.ID, "name", original, "size", written)
	return f, nil
}

func (s *Service) write(path string, r io.Reader) (int64, error) {
	const op = "ingest.Upload"
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create upload: %w", err)
	}
	defer out.Close()

	src := r
	if s.opts.MaxSize > 0 {
		src = io.LimitReader(r, s.opts.MaxSize+1)
	}
	n, err := io.Copy(out, src)
	if err != nil {
		return 0, apperr.E(apperr.IO, op, fmt.Errorf("read upload: %w", err))
	}
	if s.opts.MaxSize > 0 && n > s.opts.MaxSize {
		return 0, apperr.Errorf(apperr.Validation, op, "file exceeds limit of %d bytes", s.opts.MaxSize)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close upload: %w", err)
	}
	return n, nil
}

// Parse streams an uploaded file into log records. Only files still in the
// uploaded state can be parsed; a second call gets a Conflict. Any read or
// persistence failure leaves the file failed, never completed.
func (s *Service) Parse(ctx context.Context, ownerID, fileID uint) (*models.LogFile, error) {
	const op = "ingest.Parse"

	f, err := s.store.MarkParsing(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	slog.Info("parse started", "source", "ingest", "user_id", ownerID, "file_id", fileID)

	parsed := 0
	sink := parser.SinkFunc(func(ctx context.Context, batch []parser.Record) error {
		records := make([]models.LogRecord, len(batch))
		for i, rec := range batch {
			records[i] = toLogRecord(f, rec)
		}
		if err := s.store.CreateRecords(ctx, records); err != nil {
			return err
		}
		parsed += len(batch)
		return nil
	})

	total, err := s.stream(ctx, f.Path, sink)
	if err != nil {
		s.fail(ctx, f, total, parsed, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("parse file %d: %w", fileID, err)
		}
		return nil, apperr.E(apperr.IO, op, fmt.Errorf("parse file %d: %w", fileID, err))
	}
	if parsed != total {
		err := fmt.Errorf("parse file %d: persisted %d of %d lines", fileID, parsed, total)
		s.fail(ctx, f, total, parsed, err)
		return nil, apperr.E(apperr.Internal, op, err)
	}

	if err := s.store.CompleteFile(ctx, fileID, total, parsed); err != nil {
		s.fail(ctx, f, total, parsed, err)
		return nil, err
	}

	slog.Info("parse completed", "source", "ingest", "user_id", ownerID, "file_id", fileID, "lines", total)
	return s.store.GetFile(ctx, ownerID, fileID)
}

func (s *Service) stream(ctx context.Context, path string, sink parser.Sink) (int, error) {
	rc, err := parser.Open(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return parser.Parse(ctx, rc, sink, s.opts.Parser)
}

func (s *Service) fail(ctx context.Context, f *models.LogFile, total, parsed int, cause error) {
	slog.Error("parse failed", "source", "ingest", "user_id", f.UserID, "file_id", f.ID, "lines", total, "persisted", parsed, "error", cause.Error())
	// the failure must be recorded even when ctx is what failed
	if err := s.store.FailFile(context.WithoutCancel(ctx), f.ID, total, parsed, cause.Error()); err != nil {
		slog.Error("mark file failed", "source", "ingest", "file_id", f.ID, "error", err.Error())
	}
}

func toLogRecord(f *models.LogFile, rec parser.Record) models.LogRecord {
	return models.LogRecord{
		FileID:     f.ID,
		UserID:     f.UserID,
		LineNumber: rec.Line,
		Timestamp:  extractor.ParseTimestamp(rec.Fields.Timestamp),
		Severity:   optional(rec.Fields.Severity),
		IP:         optional(rec.Fields.IP),
		User:       optional(rec.Fields.User),
		Endpoint:   optional(rec.Fields.Endpoint),
		Message:    rec.Raw,
		RawLine:    rec.Raw,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) Status(ctx context.Context, ownerID, fileID uint) (*FileStatus, error) {
	f, err := s.store.GetFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	return &FileStatus{Status: f.Status, TotalLines: f.TotalLines, ParsedLines: f.ParsedLines, Error: f.Error}, nil
}

func (s *Service) ListFiles(ctx context.Context, ownerID uint) ([]models.LogFile, error) {
	return s.store.ListFiles(ctx, ownerID)
}

// DeleteFile removes the file, everything derived from it and the stored
// artifact. A file that is being parsed cannot be deleted.
func (s *Service) DeleteFile(ctx context.Context, ownerID, fileID uint) error {
	f, err := s.store.GetFile(ctx, ownerID, fileID)
	if err != nil {
		return err
	}
	if f.Status == models.FileStatusParsing {
		return apperr.Errorf(apperr.Conflict, "ingest.DeleteFile", "log file %d is being parsed", fileID)
	}
	if _, err := s.store.DeleteFile(ctx, ownerID, fileID); err != nil {
		return err
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove stored upload", "source", "ingest", "file_id", fileID, "error", err.Error())
	}
	slog.Info("log file deleted", "source", "ingest", "user_id", ownerID, "file_id", fileID)
	return nil
}
