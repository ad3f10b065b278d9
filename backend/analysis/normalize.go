package analysis

import (
	"github.com/PhilHem/log-sentinel/backend/models"
	"github.com/PhilHem/log-sentinel/backend/verdict"
)

// Normalize maps stored records onto the request contract, filling absent
// metadata with "unknown" and absent severity with "INFO".
func Normalize(records []models.LogRecord) []verdict.LogItem {
	items := make([]verdict.LogItem, len(records))
	for i, r := range records {
		items[i] = verdict.LogItem{
			IP:       orDefault(r.IP, "unknown"),
			Endpoint: orDefault(r.Endpoint, "unknown"),
			Severity: orDefault(r.Severity, "INFO"),
			Message:  r.Message,
		}
	}
	return items
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
