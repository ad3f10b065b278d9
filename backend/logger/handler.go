// Package logger provides the process-wide slog handler. Every record is
// written as JSON to an output stream and persisted as an AuditEvent.
package logger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/PhilHem/log-sentinel/backend/models"

	"gorm.io/gorm"
)

type DBHandler struct {
	db          *gorm.DB
	jsonHandler slog.Handler
	level       slog.Leveler
	attrs       []slog.Attr
	group       string
}

// NewDBHandler writes records at or above level to out and to db.
func NewDBHandler(db *gorm.DB, out io.Writer, level slog.Leveler) *DBHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &DBHandler{
		db:          db,
		jsonHandler: slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}),
		level:       level,
	}
}

func extractUserID(v slog.Value) uint {
	switch v.Kind() {
	case slog.KindInt64:
		if n := v.Int64(); n > 0 {
			return uint(n)
		}
	case slog.KindUint64:
		return uint(v.Uint64())
	}
	return 0
}

func (h *DBHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *DBHandler) Handle(ctx context.Context, r slog.Record) error {
	_ = h.jsonHandler.Handle(ctx, r)

	event := models.AuditEvent{
		CreatedAt: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	data := make(map[string]any)
	collect := func(a slog.Attr, group string) {
		switch a.Key {
		case "source":
			event.Source = a.Value.String()
		case "user_id":
			if id := extractUserID(a.Value.Resolve()); id > 0 {
				event.UserID = &id
			}
		default:
			data[qualify(group, a.Key)] = a.Value.Resolve().Any()
		}
	}
	for _, a := range h.attrs {
		collect(a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a, h.group)
		return true
	})

	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err == nil {
			event.Data = string(b)
		}
	}

	// The request may already be cancelled; the event still gets written.
	return h.db.WithContext(context.WithoutCancel(ctx)).Create(&event).Error
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		if a.Key != "source" && a.Key != "user_id" {
			a.Key = qualify(h.group, a.Key)
		}
		merged = append(merged, a)
	}
	return &DBHandler{
		db:          h.db,
		jsonHandler: h.jsonHandler.WithAttrs(attrs),
		level:       h.level,
		attrs:       merged,
		group:       h.group,
	}
}

func (h *DBHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &DBHandler{
		db:          h.db,
		jsonHandler: h.jsonHandler.WithGroup(name),
		level:       h.level,
		attrs:       h.attrs,
		group:       qualify(h.group, name),
	}
}

// qualify prefixes key with the dotted group path, if any.
func qualify(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

// DeleteOlderThan removes audit events created before now-maxAge and
// returns how many were removed.
func DeleteOlderThan(ctx context.Context, db *gorm.DB, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditEvent{})
	return res.RowsAffected, res.Error
}

// CleanupOldEvents runs DeleteOlderThan every interval until ctx is done.
func CleanupOldEvents(ctx context.Context, db *gorm.DB, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := DeleteOlderThan(ctx, db, maxAge); err != nil && ctx.Err() == nil {
				slog.Error("audit cleanup failed", "source", "logger", "error", err.Error())
			}
		}
	}
}
