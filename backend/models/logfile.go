package models

import "time"

// LogFile lifecycle states. A file only ever moves forward:
// uploaded -> parsing -> completed, or parsing -> failed.
const (
	FileStatusUploaded  = "uploaded"
	FileStatusParsing   = "parsing"
	FileStatusCompleted = "completed"
	FileStatusFailed    = "failed"
)

// LogFile is one uploaded artifact and its parse lifecycle.
type LogFile struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time `json:"updated_at"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	Path         string    `json:"-"`
	Size         int64     `json:"size"`
	UserID       uint      `json:"user_id" gorm:"index:idx_log_files_user_status"`
	Status       string    `json:"status" gorm:"index:idx_log_files_user_status;default:uploaded"`
	TotalLines   int       `json:"total_lines"`
	ParsedLines  int       `json:"parsed_lines"`
	Error        string    `json:"error,omitempty"`
}
