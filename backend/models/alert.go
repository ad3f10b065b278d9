package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SeverityLow      = "Low"
	SeverityMedium   = "Medium"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Alert is a durable record derived from a suspicious verdict.
type Alert struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	CreatedAt         time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt         time.Time      `json:"updated_at"`
	UserID            uint           `json:"user_id" gorm:"index"`
	FileID            uint           `json:"file_id" gorm:"index"`
	IP                string         `json:"ip"`
	Severity          string         `json:"severity" gorm:"index"`
	ThreatType        string         `json:"threat_type"`
	Message           string         `json:"message"`
	Explanation       string         `json:"explanation"`
	RecommendedAction string         `json:"recommended_action"`
	IsResolved        bool           `json:"is_resolved" gorm:"index;default:false"`
	ResolvedAt        *time.Time     `json:"resolved_at"`
	Fingerprint       string         `json:"-" gorm:"index"`
	DedupeKey         *string        `json:"-"` // set only when de-duplicating; unique among open alerts
	Details           datatypes.JSON `json:"details,omitempty"`
}
