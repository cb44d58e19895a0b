package api

import (
	"net/http"

	"github.com/banshee-data/spectrum.report/internal/config"
	"github.com/banshee-data/spectrum.report/internal/httputil"
)

// Config returns the active configuration document.
func (s *Server) Config() *config.SpectrometerConfig {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.cfg.Merge(nil)
}

// handleConfig serves GET (current document) and PUT (partial update). A
// rejected update leaves the active configuration untouched.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.Config())
	case http.MethodPut, http.MethodPatch:
		data, err := httputil.ReadBody(r)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		patch, err := config.Parse(data)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}

		s.cfgMu.Lock()
		defer s.cfgMu.Unlock()
		merged := s.cfg.Merge(patch)
		pc, err := merged.ToPipelineConfig()
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := s.coord.UpdateConfig(pc); err != nil {
			writeError(w, err)
			return
		}
		s.cfg = merged
		diagf("config updated via API")
		httputil.WriteJSONOK(w, merged)
	default:
		httputil.MethodNotAllowed(w)
	}
}
