package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/spectrum.report/internal/feed"
	"github.com/banshee-data/spectrum.report/internal/httputil"
	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l4reference"
	"github.com/banshee-data/spectrum.report/internal/spectro/pipeline"
)

// StateResponse is the /api/state body.
type StateResponse struct {
	State         pipeline.State `json:"state"`
	Seq           uint64         `json:"seq"`
	Source        string         `json:"source,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	Error         string         `json:"error,omitempty"`
	Published     time.Time      `json:"published"`
	SpectrumSeq   uint64         `json:"spectrum_seq,omitempty"`
	Mode          string         `json:"mode,omitempty"`
	Reference     string         `json:"reference,omitempty"`
	Calibrated    bool           `json:"calibrated"`
	ZeroReference bool           `json:"zero_reference"`
}

func stateResponse(snap *pipeline.Snapshot) StateResponse {
	resp := StateResponse{
		State:         snap.State,
		Seq:           snap.Seq,
		Source:        snap.Source,
		SessionID:     snap.SessionID,
		Published:     snap.Published,
		Reference:     snap.Reference,
		Calibrated:    snap.Calibrated,
		ZeroReference: snap.ZeroReference,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	if snap.Spectrum != nil {
		resp.SpectrumSeq = snap.Spectrum.Seq
		resp.Mode = snap.Spectrum.Mode.String()
	}
	return resp
}

// StatsResponse is the /api/stats body.
type StatsResponse struct {
	Pipeline pipeline.Stats `json:"pipeline"`
	Feed     *feed.Stats    `json:"feed,omitempty"`
}

// SpectrumResponse is the JSON form of a published spectrum.
type SpectrumResponse struct {
	Seq         uint64            `json:"seq"`
	SnapshotSeq uint64            `json:"snapshot_seq"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	Mode        string            `json:"mode"`
	Wavelengths []float64         `json:"wavelengths"`
	Values      []float64         `json:"values"`
	R           []float64         `json:"r"`
	G           []float64         `json:"g"`
	B           []float64         `json:"b"`
	Flags       []int             `json:"flags"`
	Peaks       []spectro.Feature `json:"peaks"`
	Dips        []spectro.Feature `json:"dips"`
}

func spectrumResponse(snap *pipeline.Snapshot) SpectrumResponse {
	s := snap.Spectrum
	flags := make([]int, len(s.Flags))
	for i, f := range s.Flags {
		flags[i] = int(f)
	}
	return SpectrumResponse{
		Seq:         s.Seq,
		SnapshotSeq: snap.Seq,
		Start:       s.Start,
		End:         s.End,
		Mode:        s.Mode.String(),
		Wavelengths: s.Wavelengths,
		Values:      s.Intensity,
		R:           s.Channels[spectro.ChannelR],
		G:           s.Channels[spectro.ChannelG],
		B:           s.Channels[spectro.ChannelB],
		Flags:       flags,
		Peaks:       nonNil(snap.Peaks),
		Dips:        nonNil(snap.Dips),
	}
}

func nonNil(fs []spectro.Feature) []spectro.Feature {
	if fs == nil {
		return []spectro.Feature{}
	}
	return fs
}

// latestSpectrum returns the latest snapshot carrying a spectrum, writing
// 409 when there is none yet.
func (s *Server) latestSpectrum(w http.ResponseWriter) (*pipeline.Snapshot, bool) {
	snap := s.coord.Latest()
	if snap.Spectrum == nil {
		writeError(w, spectro.ErrNoSpectrum)
		return nil, false
	}
	return snap, true
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, stateResponse(s.coord.Latest()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := StatsResponse{Pipeline: s.coord.Stats()}
	if s.hub != nil {
		st := s.hub.Stats()
		resp.Feed = &st
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap, ok := s.latestSpectrum(w)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, spectrumResponse(snap))
}

func (s *Server) handleSpectrumCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap, ok := s.latestSpectrum(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := l4reference.WriteSpectrumCSV(&buf, snap.Spectrum); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"spectrum-%d.csv\"", snap.Spectrum.Seq))
	_, _ = w.Write(buf.Bytes())
}

// FeaturesResponse is the /api/features body.
type FeaturesResponse struct {
	Seq   uint64            `json:"seq"`
	Mode  string            `json:"mode"`
	Peaks []spectro.Feature `json:"peaks"`
	Dips  []spectro.Feature `json:"dips"`
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap, ok := s.latestSpectrum(w)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, FeaturesResponse{
		Seq:   snap.Spectrum.Seq,
		Mode:  snap.Spectrum.Mode.String(),
		Peaks: nonNil(snap.Peaks),
		Dips:  nonNil(snap.Dips),
	})
}
