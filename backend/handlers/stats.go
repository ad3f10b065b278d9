package handlers

import "net/http"

func (a *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := a.stats.Dashboard(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) StatsByIP(w http.ResponseWriter, r *http.Request) {
	ips, err := a.stats.TopIPs(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ips)
}

func (a *API) StatsSeverity(w http.ResponseWriter, r *http.Request) {
	sev, err := a.stats.Severity(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sev)
}

func (a *API) StatsTimeseries(w http.ResponseWriter, r *http.Request) {
	buckets, err := a.stats.Hourly(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}
