package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/middleware"
	"github.com/PhilHem/log-sentinel/backend/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound, apperr.NoData:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Unreachable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Internal details are logged, not
// returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) && e.Err != nil {
		msg = e.Err.Error()
	}
	switch kind {
	case apperr.Internal:
		msg = "internal error"
	case apperr.IO:
		msg = "failed to read the uploaded file, please upload it again"
	}

	if status >= 500 {
		slog.Error("request failed", "source", "api",
			"request_id", middleware.RequestIDFrom(r.Context()), "kind", kind.String(), "error", err.Error())
	}
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind.String()})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v); err != nil {
		return apperr.Errorf(apperr.Validation, "decode", "invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.Errorf(apperr.Validation, "path", "invalid %s %q", name, r.PathValue(name))
	}
	return uint(n), nil
}

func pageFrom(r *http.Request) store.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return store.Page{Page: page, Limit: limit}
}

// userID is set by middleware.RequireAuth on every protected route.
func userID(r *http.Request) uint {
	id, _ := middleware.UserID(r.Context())
	return id
}
