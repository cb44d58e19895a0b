package api

import (
	"net/http"
	"strconv"

	"github.com/banshee-data/spectrum.report/internal/httputil"
	"github.com/banshee-data/spectrum.report/internal/spectro/l4reference"
)

// CalibrationResponse summarises the active calibration factors.
type CalibrationResponse struct {
	RunID          string               `json:"run_id,omitempty"`
	Active         bool                 `json:"active"`
	Reference      string               `json:"reference,omitempty"`
	Bins           int                  `json:"bins"`
	UnreliableBins int                  `json:"unreliable_bins"`
	Factors        *l4reference.Factors `json:"factors,omitempty"`
}

func calibrationResponse(f *l4reference.Factors) CalibrationResponse {
	if f == nil {
		return CalibrationResponse{}
	}
	return CalibrationResponse{
		Active:         true,
		Reference:      f.Reference,
		Bins:           len(f.Values),
		UnreliableBins: f.UnreliableCount(),
		Factors:        f,
	}
}

// handleCalibration serves GET (active factors), POST (calibrate against
// the active reference and the live spectrum) and DELETE (pass-through).
func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := commandContext(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		f, err := s.coord.CalibrationFactors(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, calibrationResponse(f))
	case http.MethodPost:
		f, err := s.coord.Calibrate(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := calibrationResponse(f)
		if s.store != nil {
			run, err := s.store.RecordCalibration(ctx, f)
			if err != nil {
				opsf("record calibration: %v", err)
			} else {
				resp.RunID = run.ID
			}
		}
		diagf("calibrated against %s (%d unreliable bins)", f.Reference, resp.UnreliableBins)
		httputil.WriteJSONOK(w, resp)
	case http.MethodDelete:
		if err := s.coord.ClearCalibration(ctx); err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, CalibrationResponse{})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleListCalibrations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireStore(w) {
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}
	runs, err := s.store.ListCalibrations(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, runs)
}

// handleZero sets (POST) or clears (DELETE) the absorbance zero reference.
func (s *Server) handleZero(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := commandContext(r)
	defer cancel()

	var err error
	switch r.Method {
	case http.MethodPost:
		err = s.coord.SetZeroReference(ctx)
	case http.MethodDelete:
		err = s.coord.ClearZeroReference(ctx)
	default:
		httputil.MethodNotAllowed(w)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, stateResponse(s.coord.Latest()))
}
