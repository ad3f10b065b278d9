// Package handlers exposes the ingestion and analysis pipeline as a JSON
// HTTP API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/PhilHem/log-sentinel/backend/analysis"
	"github.com/PhilHem/log-sentinel/backend/ingest"
	"github.com/PhilHem/log-sentinel/backend/middleware"
	"github.com/PhilHem/log-sentinel/backend/stats"
	"github.com/PhilHem/log-sentinel/backend/store"

	"github.com/gorilla/sessions"
	"gorm.io/gorm"
)

// API holds the handles every route needs.
type API struct {
	db        *gorm.DB
	sessions  sessions.Store
	store     *store.Store
	ingest    *ingest.Service
	analysis  *analysis.Service
	stats     *stats.Aggregator
	maxUpload int64
}

type Deps struct {
	DB        *gorm.DB
	Sessions  sessions.Store
	Store     *store.Store
	Ingest    *ingest.Service
	Analysis  *analysis.Service
	Stats     *stats.Aggregator
	MaxUpload int64 // bytes accepted per upload request
}

func New(d Deps) (*API, error) {
	if d.DB == nil || d.Sessions == nil || d.Store == nil || d.Ingest == nil || d.Analysis == nil || d.Stats == nil {
		return nil, errors.New("handlers: missing dependency")
	}
	return &API{
		db:        d.DB,
		sessions:  d.Sessions,
		store:     d.Store,
		ingest:    d.Ingest,
		analysis:  d.Analysis,
		stats:     d.Stats,
		maxUpload: d.MaxUpload,
	}, nil
}

// Routes registers every endpoint. authLimiter throttles the
// unauthenticated auth endpoints per client IP.
func (a *API) Routes(authLimiter *middleware.RateLimiter) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(a.sessions)
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux.HandleFunc("GET /health", Health)

	mux.Handle("POST /api/auth/register", authLimiter.LimitFunc(a.Register))
	mux.Handle("POST /api/auth/login", authLimiter.LimitFunc(a.Login))
	mux.Handle("POST /api/auth/2fa/verify", authLimiter.LimitFunc(a.MFAVerify))
	mux.HandleFunc("POST /api/auth/logout", a.Logout)
	mux.Handle("GET /api/auth/me", protect(a.Me))
	mux.Handle("GET /api/auth/2fa/setup", protect(a.MFASetup))
	mux.Handle("POST /api/auth/2fa/enable", protect(a.MFAEnable))
	mux.Handle("POST /api/auth/2fa/disable", protect(a.MFADisable))

	mux.Handle("POST /api/v1/logs/upload", protect(a.Upload))
	mux.Handle("POST /api/v1/logs/parse/{fileId}", protect(a.Parse))
	mux.Handle("GET /api/v1/logs/file-status/{fileId}", protect(a.FileStatus))
	mux.Handle("POST /api/v1/logs/analyze/{fileId}", protect(a.Analyze))
	mux.Handle("GET /api/v1/logs/files", protect(a.ListFiles))
	mux.Handle("DELETE /api/v1/logs/files/{fileId}", protect(a.DeleteFile))

	mux.Handle("GET /api/v1/logs", protect(a.ListLogs))
	mux.Handle("DELETE /api/v1/logs", protect(a.BulkDeleteLogs))
	mux.Handle("GET /api/v1/logs/search", protect(a.SearchLogs))
	mux.Handle("GET /api/v1/logs/{id}", protect(a.GetLog))
	mux.Handle("DELETE /api/v1/logs/{id}", protect(a.DeleteLog))

	mux.Handle("GET /api/v1/alerts", protect(a.ListAlerts))
	mux.Handle("GET /api/v1/alerts/stats", protect(a.AlertStats))
	mux.Handle("PATCH /api/v1/alerts/{id}/resolve", protect(a.ResolveAlert))
	mux.Handle("DELETE /api/v1/alerts/{id}", protect(a.DeleteAlert))

	mux.Handle("GET /api/v1/stats/dashboard", protect(a.Dashboard))
	mux.Handle("GET /api/v1/stats/by-ip", protect(a.StatsByIP))
	mux.Handle("GET /api/v1/stats/severity", protect(a.StatsSeverity))
	mux.Handle("GET /api/v1/stats/timeseries", protect(a.StatsTimeseries))

	return mux
}

// Health is unauthenticated, for load balancers.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
