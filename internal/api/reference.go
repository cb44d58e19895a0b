package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/banshee-data/spectrum.report/internal/httputil"
	"github.com/banshee-data/spectrum.report/internal/security"
	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l4reference"
)

// ReferenceResponse describes the active reference spectrum. ID is set when
// the reference was stored.
type ReferenceResponse struct {
	ID    string  `json:"id,omitempty"`
	Name  string  `json:"name"`
	Rows  int     `json:"rows"`
	MinNM float64 `json:"min_nm"`
	MaxNM float64 `json:"max_nm"`
}

func referenceResponse(ref *spectro.ReferenceSpectrum) ReferenceResponse {
	lo, hi := ref.Range()
	return ReferenceResponse{Name: ref.Name, Rows: ref.Len(), MinNM: lo, MaxNM: hi}
}

// useReference installs ref on the coordinator, storing it first when save
// is set.
func (s *Server) useReference(ctx context.Context, w http.ResponseWriter, ref *spectro.ReferenceSpectrum, source string, save bool) {
	resp := referenceResponse(ref)
	if save {
		if !s.requireStore(w) {
			return
		}
		info, err := s.store.SaveReference(ctx, ref, source)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.ID = info.ID
	}
	s.coord.SetReference(ref)
	httputil.WriteJSONOK(w, resp)
}

// handleReference manages the active reference: GET describes it, PUT or
// POST replaces it from a wavelength,value CSV body and DELETE clears it.
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ref := s.coord.Reference()
		if ref == nil {
			httputil.NotFound(w, spectro.ErrNoReference.Error())
			return
		}
		httputil.WriteJSONOK(w, referenceResponse(ref))
	case http.MethodPut, http.MethodPost:
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "imported"
		}
		data, err := httputil.ReadBody(r)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		ref, err := l4reference.ReadReferenceCSV(bytes.NewReader(data), name)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		s.useReference(r.Context(), w, ref, "import", queryBool(r, "save"))
	case http.MethodDelete:
		s.coord.ClearReference()
		httputil.WriteJSONOK(w, map[string]string{"status": "cleared"})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleReferenceCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ref := s.coord.Reference()
	if ref == nil {
		httputil.NotFound(w, spectro.ErrNoReference.Error())
		return
	}
	writeReferenceCSV(w, ref)
}

func writeReferenceCSV(w http.ResponseWriter, ref *spectro.ReferenceSpectrum) {
	var buf bytes.Buffer
	if err := l4reference.WriteReferenceCSV(&buf, ref); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", security.AttachmentDisposition(ref.Name, ".csv"))
	_, _ = w.Write(buf.Bytes())
}

// handleTungsten generates a tungsten-halogen reference. Query params:
//   - temp: filament temperature in K (default CIE illuminant A)
//   - step: sample spacing in nm (default 1)
//   - save: also store the reference
func (s *Server) handleTungsten(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	temp, err := queryFloat(r, "temp", l4reference.IlluminantATemp)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	step, err := queryFloat(r, "step", 1)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ref, err := l4reference.Tungsten(temp, step)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	s.useReference(r.Context(), w, ref, "tungsten", queryBool(r, "save"))
}

// handleCaptureReference turns the latest published spectrum into the
// reference.
func (s *Server) handleCaptureReference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	snap, ok := s.latestSpectrum(w)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = fmt.Sprintf("capture-%d", snap.Spectrum.Seq)
	}
	ref, err := l4reference.SpectrumAsReference(name, snap.Spectrum)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	s.useReference(r.Context(), w, ref, "capture", queryBool(r, "save"))
}

func (s *Server) handleListReferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireStore(w) {
		return
	}
	refs, err := s.store.ListReferences(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, refs)
}

// handleStoredReference serves GET (CSV table) and DELETE on a stored
// reference.
func (s *Server) handleStoredReference(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		ref, err := s.store.GetReference(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeReferenceCSV(w, ref)
	case http.MethodDelete:
		if err := s.store.DeleteReference(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// handleUseReference loads a stored reference as the active one.
func (s *Server) handleUseReference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	ref, err := s.store.GetReference(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.coord.SetReference(ref)
	resp := referenceResponse(ref)
	resp.ID = id
	httputil.WriteJSONOK(w, resp)
}
