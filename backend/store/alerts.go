package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/models"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

type AlertFilter struct {
	Severity string
	Resolved *bool
}

type AlertPage struct {
	Alerts     []models.Alert `json:"alerts"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

type AlertStats struct {
	BySeverity []SeverityCount `json:"stats"`
	Total      int64           `json:"total"`
	Unresolved int64           `json:"unresolved"`
}

// CreateAlert inserts a. An alert whose DedupeKey matches an open alert of
// the same owner is rejected with a Conflict error.
func (s *Store) CreateAlert(ctx context.Context, a *models.Alert) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.E(apperr.Conflict, "store.CreateAlert", err)
		}
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// HasOpenAlert reports whether ownerID already has an unresolved alert
// with the given fingerprint.
func (s *Store) HasOpenAlert(ctx context.Context, ownerID uint, fingerprint string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("user_id = ? AND fingerprint = ? AND is_resolved = ?", ownerID, fingerprint, false).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("lookup alert fingerprint: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListAlerts(ctx context.Context, ownerID uint, f AlertFilter, p Page) (*AlertPage, error) {
	p = p.normalize()
	q := s.db.WithContext(ctx).Model(&models.Alert{}).Where("user_id = ?", ownerID)
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Resolved != nil {
		q = q.Where("is_resolved = ?", *f.Resolved)
	}
	q = q.Session(&gorm.Session{})

	page := &AlertPage{Alerts: []models.Alert{}, Page: p.Page, Limit: p.Limit}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}
	if err := q.Order("created_at DESC").Order("id DESC").Offset(p.offset()).Limit(p.Limit).Find(&page.Alerts).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	page.TotalPages = totalPages(page.Total, p.Limit)
	return page, nil
}

func (s *Store) getAlert(ctx context.Context, ownerID, id uint) (*models.Alert, error) {
	var a models.Alert
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Errorf(apperr.NotFound, "store.Alert", "alert %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %d: %w", id, err)
	}
	return &a, nil
}

// ResolveAlert marks an alert resolved and stamps resolved_at. Resolving an
// already resolved alert keeps the original timestamp.
func (s *Store) ResolveAlert(ctx context.Context, ownerID, id uint) (*models.Alert, error) {
	a, err := s.getAlert(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if a.IsResolved {
		return a, nil
	}
	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Model(a).Updates(map[string]any{"is_resolved": true, "resolved_at": now}).Error
	if err != nil {
		return nil, fmt.Errorf("resolve alert %d: %w", id, err)
	}
	a.IsResolved = true
	a.ResolvedAt = &now
	return a, nil
}

func (s *Store) DeleteAlert(ctx context.Context, ownerID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Alert{})
	if res.Error != nil {
		return fmt.Errorf("delete alert %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Errorf(apperr.NotFound, "store.DeleteAlert", "alert %d not found", id)
	}
	return nil
}

// CountAlerts counts ownerID's alerts, optionally only unresolved ones.
func (s *Store) CountAlerts(ctx context.Context, ownerID uint, unresolvedOnly bool) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Alert{}).Where("user_id = ?", ownerID)
	if unresolvedOnly {
		q = q.Where("is_resolved = ?", false)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

func (s *Store) AlertStats(ctx context.Context, ownerID uint) (*AlertStats, error) {
	stats := &AlertStats{BySeverity: []SeverityCount{}}
	err := s.db.WithContext(ctx).Model(&models.Alert{}).
		Select("severity, COUNT(*) AS count").
		Where("user_id = ?", ownerID).
		Group("severity").
		Order("count DESC, severity ASC").
		Scan(&stats.BySeverity).Error
	if err != nil {
		return nil, fmt.Errorf("alert stats: %w", err)
	}
	if stats.Total, err = s.CountAlerts(ctx, ownerID, false); err != nil {
		return nil, err
	}
	if stats.Unresolved, err = s.CountAlerts(ctx, ownerID, true); err != nil {
		return nil, err
	}
	return stats, nil
}
