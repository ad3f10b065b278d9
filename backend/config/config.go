package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var sizePattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(B|KB|MB|GB|TB)?$`)

// ParseSize converts a human-readable size string (e.g., "5GB", "500MB", "1024KB")
// to bytes. Supports B, KB, MB, GB, TB suffixes (case-insensitive).
// Also accepts plain numbers as bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid size format: %s (use e.g., '5GB', '500MB', '1024KB')", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in size: %s", s)
	}

	unit := strings.ToUpper(matches[2])
	if unit == "" {
		unit = "B"
	}

	multipliers := map[string]float64{
		"B":  1,
		"KB": 1024,
		"MB": 1024 * 1024,
		"GB": 1024 * 1024 * 1024,
		"TB": 1024 * 1024 * 1024 * 1024,
	}

	multiplier, ok := multipliers[unit]
	if !ok {
		return 0, fmt.Errorf("unknown size unit: %s", unit)
	}

	return int64(value * multiplier), nil
}

type Config struct {
	Listen       string         `yaml:"listen"`
	DatabasePath string         `yaml:"database_path"`
	UploadDir    string         `yaml:"upload_dir"`
	TrustProxy   bool           `yaml:"trust_proxy"` // honor X-Forwarded-For from a fronting proxy
	Session      SessionConfig  `yaml:"session"`
	TLS          TLSConfig      `yaml:"tls"`
	Logs         LogsConfig     `yaml:"logs"`
	Upload       UploadConfig   `yaml:"upload"`
	Parser       ParserConfig   `yaml:"parser"`
	Analysis     AnalysisConfig `yaml:"analysis"`
}

type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
}

type SessionConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Secret  string        `yaml:"secret"`
}

// LogsConfig controls retention of the application's own audit events.
type LogsConfig struct {
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type UploadConfig struct {
	MaxSize    int64  `yaml:"-"`        // Parsed size in bytes (not directly from YAML)
	MaxSizeRaw string `yaml:"max_size"` // Human-readable size (e.g., "50MB")
}

type ParserConfig struct {
	MaxLineSize    int    `yaml:"-"`
	MaxLineSizeRaw string `yaml:"max_line_size"`
	BatchSize      int    `yaml:"batch_size"`
}

type AnalysisConfig struct {
	URL          string        `yaml:"url"` // Full analyze endpoint
	MaxRecords   int           `yaml:"max_records"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	Timeout      time.Duration `yaml:"timeout"`
	DedupeAlerts bool          `yaml:"dedupe_alerts"`
}

var C Config

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:       ":8080",
		DatabasePath: "logsentinel.db",
		UploadDir:    "uploads",
		Session: SessionConfig{
			Timeout: 24 * time.Hour,
		},
		Logs: LogsConfig{
			Retention:       48 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Upload: UploadConfig{
			MaxSize: 50 * 1024 * 1024,
		},
		Parser: ParserConfig{
			MaxLineSize: 1024 * 1024,
			BatchSize:   500,
		},
		Analysis: AnalysisConfig{
			URL:         "http://127.0.0.1:8000/analyze",
			MaxRecords:  100,
			MaxAttempts: 3,
			RetryDelay:  time.Second,
			Timeout:     30 * time.Second,
		},
	}
}

// Load fills C from defaults, then the YAML file at path (skipped when it
// does not exist), then environment overrides.
func Load(path string) error {
	C = Defaults()

	if path == "" {
		path = "config.yaml"
		if v := os.Getenv("CONFIG_FILE"); v != "" {
			path = v
		}
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &C); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if C.Upload.MaxSizeRaw != "" {
		size, err := ParseSize(C.Upload.MaxSizeRaw)
		if err != nil {
			return fmt.Errorf("upload.max_size: %w", err)
		}
		C.Upload.MaxSize = size
	}
	if C.Parser.MaxLineSizeRaw != "" {
		size, err := ParseSize(C.Parser.MaxLineSizeRaw)
		if err != nil {
			return fmt.Errorf("parser.max_line_size: %w", err)
		}
		C.Parser.MaxLineSize = int(size)
	}

	applyEnv()

	return C.Validate()
}

func applyEnv() {
	if v := os.Getenv("LISTEN"); v != "" {
		C.Listen = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		C.DatabasePath = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		C.UploadDir = v
	}
	if v := os.Getenv("TRUST_PROXY"); v == "true" {
		C.TrustProxy = true
	}
	if v := os.Getenv("SESSION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			C.Session.Timeout = d
		}
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		C.Session.Secret = v
	}
	if v := os.Getenv("TLS_ENABLED"); v == "true" {
		C.TLS.Enabled = true
	}
	if v := os.Getenv("TLS_CERT"); v != "" {
		C.TLS.Cert = v
	}
	if v := os.Getenv("TLS_KEY"); v != "" {
		C.TLS.Key = v
	}
	if v := os.Getenv("LOGS_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			C.Logs.Retention = d
		}
	}
	if v := os.Getenv("UPLOAD_MAX_SIZE"); v != "" {
		if size, err := ParseSize(v); err == nil {
			C.Upload.MaxSize = size
		}
	}
	if v := os.Getenv("PARSER_MAX_LINE_SIZE"); v != "" {
		if size, err := ParseSize(v); err == nil {
			C.Parser.MaxLineSize = int(size)
		}
	}
	if v := os.Getenv("PARSER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			C.Parser.BatchSize = n
		}
	}
	// Base URL of the analysis service, as deployed next to the API
	if v := os.Getenv("AI_SERVICE_URL"); v != "" {
		C.Analysis.URL = strings.TrimRight(v, "/") + "/analyze"
	}
	if v := os.Getenv("ANALYSIS_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			C.Analysis.MaxAttempts = n
		}
	}
	if v := os.Getenv("ANALYSIS_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			C.Analysis.RetryDelay = d
		}
	}
	if v := os.Getenv("ANALYSIS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			C.Analysis.Timeout = d
		}
	}
	if v := os.Getenv("ANALYSIS_DEDUPE_ALERTS"); v == "true" {
		C.Analysis.DedupeAlerts = true
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Analysis.MaxAttempts < 1 {
		return fmt.Errorf("analysis.max_attempts must be at least 1, got %d", c.Analysis.MaxAttempts)
	}
	if c.Analysis.MaxRecords < 1 || c.Analysis.MaxRecords > 100 {
		return fmt.Errorf("analysis.max_records must be between 1 and 100, got %d", c.Analysis.MaxRecords)
	}
	if c.Analysis.RetryDelay < 0 {
		return fmt.Errorf("analysis.retry_delay must not be negative")
	}
	if c.Parser.BatchSize < 1 {
		return fmt.Errorf("parser.batch_size must be at least 1, got %d", c.Parser.BatchSize)
	}
	if c.Parser.MaxLineSize < 1024 {
		return fmt.Errorf("parser.max_line_size must be at least 1KB")
	}
	if c.Upload.MaxSize < 1 {
		return fmt.Errorf("upload.max_size must be positive")
	}
	return nil
}
