package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/models"

	"gorm.io/gorm"
)

func (s *Store) CreateFile(ctx context.Context, f *models.LogFile) error {
	if f.Status == "" {
		f.Status = models.FileStatusUploaded
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	return nil
}

// GetFile returns the file only if ownerID owns it.
func (s *Store) GetFile(ctx context.Context, ownerID, fileID uint) (*models.LogFile, error) {
	var f models.LogFile
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", fileID, ownerID).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Errorf(apperr.NotFound, "store.GetFile", "log file %d not found", fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("get log file %d: %w", fileID, err)
	}
	return &f, nil
}

func (s *Store) ListFiles(ctx context.Context, ownerID uint) ([]models.LogFile, error) {
	var files []models.LogFile
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list log files: %w", err)
	}
	return files, nil
}

// FileIDsForOwner resolves the set of file ids visible to ownerID.
func (s *Store) FileIDsForOwner(ctx context.Context, ownerID uint) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.LogFile{}).Where("user_id = ?", ownerID).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("resolve file ids for user %d: %w", ownerID, err)
	}
	return ids, nil
}

// MarkParsing moves an owned file from uploaded to parsing. The update is
// conditional, so of two concurrent callers only one wins; the other gets
// a Conflict.
func (s *Store) MarkParsing(ctx context.Context, ownerID, fileID uint) (*models.LogFile, error) {
	res := s.db.WithContext(ctx).Model(&models.LogFile{}).
		Where("id = ? AND user_id = ? AND status = ?", fileID, ownerID, models.FileStatusUploaded).
		Update("status", models.FileStatusParsing)
	if res.Error != nil {
		return nil, fmt.Errorf("mark file %d parsing: %w", fileID, res.Error)
	}

	f, err := s.GetFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Errorf(apperr.Conflict, "store.MarkParsing", "log file %d is %s, expected %s", fileID, f.Status, models.FileStatusUploaded)
	}
	return f, nil
}

// CompleteFile records a successful parse.
func (s *Store) CompleteFile(ctx context.Context, fileID uint, totalLines, parsedLines int) error {
	if parsedLines > totalLines {
		return fmt.Errorf("complete file %d: parsed %d exceeds total %d", fileID, parsedLines, totalLines)
	}
	res := s.db.WithContext(ctx).Model(&models.LogFile{}).
		Where("id = ? AND status = ?", fileID, models.FileStatusParsing).
		Updates(map[string]any{
			"status":       models.FileStatusCompleted,
			"total_lines":  totalLines,
			"parsed_lines": parsedLines,
		})
	if res.Error != nil {
		return fmt.Errorf("complete file %d: %w", fileID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Errorf(apperr.Conflict, "store.CompleteFile", "log file %d is not parsing", fileID)
	}
	return nil
}

// FailFile marks a parsing file as failed, keeping the counters reached.
func (s *Store) FailFile(ctx context.Context, fileID uint, totalLines, parsedLines int, reason string) error {
	res := s.db.WithContext(ctx).Model(&models.LogFile{}).
		Where("id = ? AND status = ?", fileID, models.FileStatusParsing).
		Updates(map[string]any{
			"status":       models.FileStatusFailed,
			"total_lines":  totalLines,
			"parsed_lines": parsedLines,
			"error":        reason,
		})
	if res.Error != nil {
		return fmt.Errorf("fail file %d: %w", fileID, res.Error)
	}
	return nil
}

// DeleteFile removes an owned file with its records and alerts.
func (s *Store) DeleteFile(ctx context.Context, ownerID, fileID uint) (*models.LogFile, error) {
	f, err := s.GetFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&models.LogRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("file_id = ? AND user_id = ?", fileID, ownerID).Delete(&models.Alert{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.LogFile{}, fileID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("delete log file %d: %w", fileID, err)
	}
	return f, nil
}
