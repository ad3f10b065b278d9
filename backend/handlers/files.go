package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/PhilHem/log-sentinel/backend/apperr"
	"github.com/PhilHem/log-sentinel/backend/ingest"
)

// multipart framing allowance on top of the file size limit
const uploadOverhead = 1 << 20

// Upload streams the multipart "file" part to disk without buffering it.
func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	if a.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload+uploadOverhead)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "expected a multipart upload")
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			writeMessage(w, http.StatusBadRequest, "no file uploaded")
			return
		}
		if err != nil {
			writeUploadError(w, r, err)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		f, err := a.ingest.Upload(r.Context(), part, ingest.UploadMeta{
			OriginalName: part.FileName(),
			OwnerID:      userID(r),
		})
		part.Close()
		if err != nil {
			writeUploadError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "file": f})
		return
	}
}

func writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeMessage(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}
	writeError(w, r, err)
}

// Parse runs the file through the parser and returns the final counts.
// The parse is detached from client disconnects so a file never stays
// stuck in parsing because a browser tab closed.
func (a *API) Parse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "fileId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := a.ingest.Parse(context.WithoutCancel(r.Context()), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"file_id":      f.ID,
		"status":       f.Status,
		"total_lines":  f.TotalLines,
		"parsed_lines": f.ParsedLines,
	})
}

func (a *API) FileStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "fileId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := a.ingest.Status(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := a.ingest.ListFiles(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (a *API) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "fileId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.ingest.DeleteFile(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Analyze sends the file's leading records to the analysis service and
// raises alerts for suspicious ones.
func (a *API) Analyze(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "fileId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.analysis.AnalyzeFile(r.Context(), userID(r), id)
	if err != nil {
		if apperr.Is(err, apperr.NoData) {
			writeMessage(w, http.StatusNotFound, "no logs found for this file")
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}
