package store

import (
	"context"
	"fmt"

	"github.com/PhilHem/log-sentinel/backend/models"
)

type IPCount struct {
	IP    string `json:"ip"`
	Count int64  `json:"count"`
}

type SeverityCount struct {
	Severity string `json:"severity"`
	Count    int64  `json:"count"`
}

type HourBucket struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Day   int   `json:"day"`
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

func (s *Store) CountRecords(ctx context.Context, fileIDs []uint) (int64, error) {
	var n int64
	if len(fileIDs) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.LogRecord{}).Where("file_id IN ?", fileIDs).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// TopIPs ranks source IPs by record count, ties ordered by IP.
func (s *Store) TopIPs(ctx context.Context, fileIDs []uint, limit int) ([]IPCount, error) {
	out := []IPCount{}
	if len(fileIDs) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).Model(&models.LogRecord{}).
		Select("ip, COUNT(*) AS count").
		Where("file_id IN ? AND ip IS NOT NULL", fileIDs).
		Group("ip").
		Order("count DESC, ip ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("top ips: %w", err)
	}
	return out, nil
}

// SeverityCounts counts records per severity. Records without a severity
// are left out.
func (s *Store) SeverityCounts(ctx context.Context, fileIDs []uint) ([]SeverityCount, error) {
	out := []SeverityCount{}
	if len(fileIDs) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).Model(&models.LogRecord{}).
		Select("severity, COUNT(*) AS count").
		Where("file_id IN ? AND severity IS NOT NULL", fileIDs).
		Group("severity").
		Order("count DESC, severity ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("severity counts: %w", err)
	}
	return out, nil
}

// HourlyCounts groups timestamped records by UTC hour, oldest first.
func (s *Store) HourlyCounts(ctx context.Context, fileIDs []uint, limit int) ([]HourBucket, error) {
	out := []HourBucket{}
	if len(fileIDs) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).Model(&models.LogRecord{}).
		Select("CAST(strftime('%Y', timestamp) AS INTEGER) AS year, " +
			"CAST(strftime('%m', timestamp) AS INTEGER) AS month, " +
			"CAST(strftime('%d', timestamp) AS INTEGER) AS day, " +
			"CAST(strftime('%H', timestamp) AS INTEGER) AS hour, " +
			"COUNT(*) AS count").
		Where("file_id IN ? AND timestamp IS NOT NULL", fileIDs).
		Group("year, month, day, hour").
		Order("year ASC, month ASC, day ASC, hour ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("hourly counts: %w", err)
	}
	return out, nil
}
