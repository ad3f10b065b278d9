package handlers

import (
	"net/http"
	"time"

	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/store"
)

const dateLayout = "2006-01-02"

// parseDate accepts a calendar date or an RFC 3339 timestamp. A bare date
// used as an upper bound covers the whole day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		if endOfDay {
			t = store.EndOfDay(t)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperr.Errorf(apperr.Validation, "parseDate", "invalid date %q (use YYYY-MM-DD)", s)
	}
	if endOfDay {
		t = store.EndOfDay(t)
	}
	t = t.UTC()
	return &t, nil
}

func filterFrom(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{
		Severity: q.Get("severity"),
		IP:       q.Get("ip"),
		Endpoint: q.Get("endpoint"),
		User:     q.Get("user"),
		Search:   q.Get("search"),
	}
	var err error
	if f.From, err = parseDate(q.Get("startDate"), false); err != nil {
		return f, err
	}
	if f.To, err = parseDate(q.Get("endDate"), true); err != nil {
		return f, err
	}
	return f, nil
}

func (a *API) ListLogs(w http.ResponseWriter, r *http.Request) {
	f, err := filterFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := a.store.Query(r.Context(), userID(r), f, pageFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) SearchLogs(w http.ResponseWriter, r *http.Request) {
	records, err := a.store.Search(r.Context(), userID(r), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": records, "count": len(records)})
}

func (a *API) GetLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := a.store.GetRecord(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"log": rec})
}

func (a *API) DeleteLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := a.store.DeleteRecords(r.Context(), userID(r), []uint{id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if n == 0 {
		writeMessage(w, http.StatusNotFound, "log not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type BulkDeleteRequest struct {
	IDs []uint `json:"ids"`
}

func (a *API) BulkDeleteLogs(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := a.store.DeleteRecords(r.Context(), userID(r), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
