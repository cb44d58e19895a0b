package api

import (
	"fmt"
	"net/http"

	"github.com/banshee-data/spectrum.report/internal/httputil"
)

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.newSource == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no frame source configured")
		return
	}
	src, err := s.newSource()
	if err != nil {
		writeError(w, fmt.Errorf("open frame source: %w", err))
		return
	}
	if err := s.coord.Attach(src); err != nil {
		if cerr := src.Close(); cerr != nil {
			opsf("close %s after failed attach: %v", src.Name(), cerr)
		}
		writeError(w, err)
		return
	}
	diagf("capture started from %s", src.Name())
	httputil.WriteJSONOK(w, stateResponse(s.coord.Latest()))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := s.coord.Detach(); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, stateResponse(s.coord.Latest()))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := s.coord.Pause(); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, stateResponse(s.coord.Latest()))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := s.coord.Resume(); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, stateResponse(s.coord.Latest()))
}
