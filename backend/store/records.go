package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/models"

	"gorm.io/gorm"
)

// SearchLimit caps Search results.
const SearchLimit = 50

// Filter narrows a record query. Empty fields are ignored.
type Filter struct {
	Severity string
	IP       string
	Endpoint string
	User     string
	Search   string     // case-insensitive substring of message
	From     *time.Time // inclusive
	To       *time.Time // inclusive through the end of that day
}

type RecordPage struct {
	Records    []models.LogRecord `json:"logs"`
	Total      int64              `json:"total_logs"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}

// EndOfDay returns 23:59:59.999 UTC on t's calendar day.
func EndOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

func (s *Store) CreateRecords(ctx context.Context, records []models.LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(records, 100).Error; err != nil {
		return fmt.Errorf("create %d records: %w", len(records), err)
	}
	return nil
}

func applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.IP != "" {
		q = q.Where("ip = ?", f.IP)
	}
	if f.Endpoint != "" {
		q = q.Where("endpoint = ?", f.Endpoint)
	}
	if f.User != "" {
		q = q.Where("user_name = ?", f.User)
	}
	if f.Search != "" {
		q = q.Where("LOWER(message) LIKE ? ESCAPE '\\'", containsPattern(f.Search))
	}
	if f.From != nil {
		q = q.Where("timestamp >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("timestamp <= ?", EndOfDay(*f.To))
	}
	return q
}

// QueryRecords returns one page of records belonging to fileIDs, newest
// timestamp first. Total counts every match, not just the page.
func (s *Store) QueryRecords(ctx context.Context, fileIDs []uint, f Filter, p Page) (*RecordPage, error) {
	p = p.normalize()
	page := &RecordPage{Records: []models.LogRecord{}, Page: p.Page, Limit: p.Limit, TotalPages: 1}
	if len(fileIDs) == 0 {
		return page, nil
	}

	q := applyFilter(s.db.WithContext(ctx).Model(&models.LogRecord{}).Where("file_id IN ?", fileIDs), f).
		Session(&gorm.Session{})

	if err := q.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	if err := q.Order("timestamp DESC").Order("id ASC").Offset(p.offset()).Limit(p.Limit).Find(&page.Records).Error; err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	page.TotalPages = totalPages(page.Total, p.Limit)
	return page, nil
}

// Query is QueryRecords scoped to ownerID's files.
func (s *Store) Query(ctx context.Context, ownerID uint, f Filter, p Page) (*RecordPage, error) {
	ids, err := s.FileIDsForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.QueryRecords(ctx, ids, f, p)
}

// Search matches term exactly against ip, or as a case-insensitive
// substring of user or endpoint, within ownerID's files.
func (s *Store) Search(ctx context.Context, ownerID uint, term string) ([]models.LogRecord, error) {
	if term == "" {
		return nil, apperr.Errorf(apperr.Validation, "store.Search", "search term is required")
	}
	ids, err := s.FileIDsForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	records := []models.LogRecord{}
	if len(ids) == 0 {
		return records, nil
	}

	pattern := containsPattern(term)
	err = s.db.WithContext(ctx).
		Where("file_id IN ?", ids).
		Where("(ip = ? OR LOWER(user_name) LIKE ? ESCAPE '\\' OR LOWER(endpoint) LIKE ? ESCAPE '\\')", term, pattern, pattern).
		Order("timestamp DESC").Order("id ASC").
		Limit(SearchLimit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	return records, nil
}

func (s *Store) GetRecord(ctx context.Context, ownerID, id uint) (*models.LogRecord, error) {
	ids, err := s.FileIDsForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var rec models.LogRecord
	err = s.db.WithContext(ctx).Where("id = ? AND file_id IN ?", id, ids).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Errorf(apperr.NotFound, "store.GetRecord", "log record %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return &rec, nil
}

// DeleteRecords removes the given records among those ownerID can see and
// returns how many were deleted.
func (s *Store) DeleteRecords(ctx context.Context, ownerID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.Errorf(apperr.Validation, "store.DeleteRecords", "no ids provided")
	}
	fileIDs, err := s.FileIDsForOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if len(fileIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ? AND file_id IN ?", ids, fileIDs).Delete(&models.LogRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RecordsForFile returns up to limit records of one file in line order.
func (s *Store) RecordsForFile(ctx context.Context, fileID uint, limit int) ([]models.LogRecord, error) {
	var records []models.LogRecord
	err := s.db.WithContext(ctx).Where("file_id = ?", fileID).Order("line_number ASC").Order("id ASC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("records for file %d: %w", fileID, err)
	}
	return records, nil
}
