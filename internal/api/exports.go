package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/spectrum.report/internal/httputil"
	"github.com/banshee-data/spectrum.report/internal/security"
)

// handleExports lists saved exports (GET) or saves the latest spectrum
// (POST, optional ?name=).
func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 {
				httputil.BadRequest(w, "Invalid 'limit' parameter")
				return
			}
			limit = n
		}
		exports, err := s.store.ListExports(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, exports)
	case http.MethodPost:
		snap, ok := s.latestSpectrum(w)
		if !ok {
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = fmt.Sprintf("spectrum-%d", snap.Spectrum.Seq)
		}
		e, err := s.store.SaveExport(r.Context(), name, snap.Spectrum, snap.Peaks, snap.Dips)
		if err != nil {
			writeError(w, err)
			return
		}
		diagf("saved export %s (%s, frame %d)", e.ID, e.Name, e.FrameSeq)
		httputil.WriteJSON(w, http.StatusCreated, e)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// handleExport serves one saved export: GET returns the CSV table, or the
// metadata with ?format=json; DELETE removes it.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		e, err := s.store.GetExport(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if r.URL.Query().Get("format") == "json" {
			httputil.WriteJSONOK(w, e)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", security.AttachmentDisposition(e.Name, ".csv"))
		_, _ = w.Write([]byte(e.CSV))
	case http.MethodDelete:
		if err := s.store.DeleteExport(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}
