package models

import "time"

// LogRecord is one parsed line. Structured fields are nil when the line
// carried nothing to extract; RawLine is always the line verbatim.
type LogRecord struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time  `json:"created_at"`
	FileID     uint       `json:"file_id" gorm:"index"`
	UserID     uint       `json:"user_id" gorm:"index"`
	LineNumber int        `json:"line_number"`
	Timestamp  *time.Time `json:"timestamp" gorm:"index"`
	Severity   *string    `json:"severity" gorm:"index"`
	IP         *string    `json:"ip" gorm:"index"`
	User       *string    `json:"user" gorm:"column:user_name;index"`
	Endpoint   *string    `json:"endpoint" gorm:"index"`
	Message    string     `json:"message"`
	RawLine    string     `json:"raw_line"`
}
