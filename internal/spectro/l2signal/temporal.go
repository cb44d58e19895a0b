package l2signal

import (
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// Filter limits.
const (
	MinDepth = 1
	MaxDepth = 100
	MinOrder = 2
	MaxOrder = 8
)

// FilterParams configures the temporal stage.
type FilterParams struct {
	// Enabled switches the biquad cascade; averaging always runs.
	Enabled bool
	Depth   int     // ring buffer depth in frames
	Cutoff  float64 // fraction of Nyquist, (0, 1)
	Order   int     // even, 2..8
}

// DefaultFilterParams matches the shipped configuration defaults.
func DefaultFilterParams() FilterParams {
	return FilterParams{Enabled: true, Depth: 10, Cutoff: 0.5, Order: 2}
}

// Validate checks the parameter ranges.
func (p FilterParams) Validate() error {
	if p.Depth < MinDepth || p.Depth > MaxDepth {
		return spectro.Invalidf("filter", "depth must be in [%d, %d], got %d", MinDepth, MaxDepth, p.Depth)
	}
	if !(p.Cutoff > 0 && p.Cutoff < 1) {
		return spectro.Invalidf("filter", "cutoff must be in (0, 1), got %g", p.Cutoff)
	}
	if p.Order < MinOrder || p.Order > MaxOrder || p.Order%2 != 0 {
		return spectro.Invalidf("filter", "order must be even in [%d, %d], got %d", MinOrder, MaxOrder, p.Order)
	}
	return nil
}

// ring holds the most recent curves of one channel, oldest first.
type ring struct {
	entries [][]float64
	head    int // index of the oldest entry once full
	depth   int
}

func (r *ring) push(v []float64) {
	if len(r.entries) < r.depth {
		r.entries = append(r.entries, v)
		return
	}
	r.entries[r.head] = v
	r.head = (r.head + 1) % r.depth
}

// ordered returns entries oldest first.
func (r *ring) ordered() [][]float64 {
	out := make([][]float64, 0, len(r.entries))
	out = append(out, r.entries[r.head:]...)
	return append(out, r.entries[:r.head]...)
}

func (r *ring) resize(depth int) {
	entries := r.ordered()
	if len(entries) > depth {
		entries = entries[len(entries)-depth:]
	}
	r.entries, r.head, r.depth = entries, 0, depth
}

func (r *ring) clear() {
	r.entries, r.head = nil, 0
}

// mean writes the sample-wise mean of the filled entries into dst.
func (r *ring) mean(dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
	for _, e := range r.entries {
		floats.Add(dst, e)
	}
	floats.Scale(1/float64(len(r.entries)), dst)
}

// TemporalStage averages the last Depth frames per channel and smooths the
// result with a zero-phase low-pass. It is not safe for concurrent use.
type TemporalStage struct {
	params  FilterParams
	width   int
	rings   [spectro.NumChannels]ring
	filters [spectro.NumChannels]*Cascade
}

// NewTemporalStage validates p and returns an empty stage.
func NewTemporalStage(p FilterParams) (*TemporalStage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &TemporalStage{}
	s.params = p
	for c := range s.rings {
		s.rings[c].depth = p.Depth
	}
	s.design()
	return s, nil
}

func (s *TemporalStage) design() {
	for c := range s.filters {
		s.filters[c] = NewCascade(s.params.Cutoff, s.params.Order)
	}
}

// Params returns the active parameters.
func (s *TemporalStage) Params() FilterParams { return s.params }

// Configure swaps parameters. A depth change keeps the newest entries;
// coefficients are redesigned only when cutoff or order change.
func (s *TemporalStage) Configure(p FilterParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	old := s.params
	s.params = p
	if p.Depth != old.Depth {
		for c := range s.rings {
			s.rings[c].resize(p.Depth)
		}
	}
	if p.Cutoff != old.Cutoff || p.Order != old.Order {
		s.design()
	}
	return nil
}

// Filled is the number of frames currently averaged.
func (s *TemporalStage) Filled() int { return len(s.rings[0].entries) }

// ClearHistory empties the averaging buffers.
func (s *TemporalStage) ClearHistory() {
	for c := range s.rings {
		s.rings[c].clear()
	}
	s.width = 0
}

// Reset returns the stage to its freshly constructed state.
func (s *TemporalStage) Reset() {
	s.ClearHistory()
	s.design()
}

// Process pushes one frame of conditioned curves and returns the filtered
// result. A change in curve width clears the history first.
func (s *TemporalStage) Process(in spectro.Curves) spectro.Curves {
	w := in.Width()
	if w != s.width {
		s.ClearHistory()
		s.width = w
	}
	out := spectro.NewCurves(w, in.FullScale)
	for c := range in.Ch {
		s.rings[c].push(append([]float64(nil), in.Ch[c]...))
		s.rings[c].mean(out.Ch[c])
		if s.params.Enabled {
			s.filters[c].FilterZeroPhase(out.Ch[c])
			for x, v := range out.Ch[c] {
				out.Ch[c][x] = clamp(v, 0, in.FullScale)
			}
		}
	}
	return out
}
