package database

import (
	"bytes"
	"database/sql"
	"fmt"
	"strings"

	"github.com/PhilHem/log-sentinel/backend/models"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// driverName is sqlite3 with lower() replaced by a Unicode-aware version,
// so LOWER(column) folds the same way as strings.ToLower on the Go side.
const driverName = "sqlite3_unicode"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", unicodeLower, true)
		},
	})
}

func unicodeLower(v any) any {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		if s == nil {
			return nil
		}
		return string(bytes.ToLower(s))
	default:
		return v
	}
}

// Open connects to the sqlite database at path and migrates the schema.
// ":memory:" is accepted for tests.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: driverName, DSN: path}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers; one connection also keeps ":memory:" a single database
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.AuditEvent{},
		&models.LogFile{},
		&models.LogRecord{},
		&models.Alert{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	// at most one open alert per owner and dedupe key; NULL keys never collide
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open_dedupe_key
		ON alerts (user_id, dedupe_key) WHERE is_resolved = 0`).Error; err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
