package spectro

import "math"

// MaxGridBins caps the size of an output grid.
const MaxGridBins = 20000

// Grid is the fixed wavelength grid spectra are resampled onto. End is
// inclusive when it falls on a step.
type Grid struct {
	StartNM float64 `json:"start_nm"`
	EndNM   float64 `json:"end_nm"`
	StepNM  float64 `json:"step_nm"`
}

// Validate checks the grid is finite, ordered and not too large.
func (g Grid) Validate() error {
	for _, v := range []float64{g.StartNM, g.EndNM, g.StepNM} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Invalidf("output_grid", "values must be finite")
		}
	}
	if g.StepNM <= 0 {
		return Invalidf("output_grid", "step_nm must be positive, got %g", g.StepNM)
	}
	if g.EndNM <= g.StartNM {
		return Invalidf("output_grid", "end_nm (%g) must exceed start_nm (%g)", g.EndNM, g.StartNM)
	}
	if q := g.steps(); !(q+1 <= MaxGridBins) {
		return Invalidf("output_grid", "%g bins exceeds limit of %d", math.Floor(q)+1, MaxGridBins)
	}
	return nil
}

// steps is the span in steps, before flooring. It may be +Inf or NaN.
func (g Grid) steps() float64 {
	// Tolerate accumulated float error when End lands on a step.
	return (g.EndNM-g.StartNM)/g.StepNM + 1e-9
}

// maxBins bounds Bins so the int conversion cannot overflow.
const maxBins = math.MaxInt32

// Bins is the number of bins in the grid, or 0 when the grid is empty or
// too large to represent.
func (g Grid) Bins() int {
	if !(g.StepNM > 0) || !(g.EndNM >= g.StartNM) {
		return 0
	}
	q := math.Floor(g.steps())
	if !(q < maxBins) {
		return 0
	}
	return int(q) + 1
}

// Wavelengths returns the bin centres.
func (g Grid) Wavelengths() []float64 {
	n := g.Bins()
	out := make([]float64, n)
	for i := range out {
		out[i] = g.StartNM + float64(i)*g.StepNM
	}
	return out
}
