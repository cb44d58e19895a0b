package l4reference

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// Epsilon is the smallest live or reference value treated as signal.
const Epsilon = 1e-6

// Factors are per-bin multipliers computed against one reference on one
// wavelength grid.
type Factors struct {
	Reference   string    `json:"reference"`
	Scale       float64   `json:"scale"`
	Wavelengths []float64 `json:"wavelengths"`
	Values      []float64 `json:"values"`
	Unreliable  []bool    `json:"unreliable"`
}

// UnreliableCount is the number of bins that fell back to a factor of 1.
func (f *Factors) UnreliableCount() int {
	n := 0
	for _, u := range f.Unreliable {
		if u {
			n++
		}
	}
	return n
}

// Resample evaluates ref*scale at each wavelength. ok is false outside the
// reference range.
func Resample(ref *spectro.ReferenceSpectrum, scale float64, wavelengths []float64) (vals []float64, ok []bool, err error) {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(ref.Wavelengths, ref.Intensity); err != nil {
		return nil, nil, fmt.Errorf("resample reference %q: %w", ref.Name, err)
	}
	lo, hi := ref.Range()
	vals = make([]float64, len(wavelengths))
	ok = make([]bool, len(wavelengths))
	for i, wl := range wavelengths {
		if wl < lo || wl > hi {
			continue
		}
		vals[i] = pl.Predict(wl) * scale
		ok[i] = true
	}
	return vals, ok, nil
}

// ComputeFactors derives factor = ref/live for every bin of live. Bins with
// no signal, a live value below Epsilon or no reference coverage get a
// factor of 1 and are marked unreliable.
func ComputeFactors(ref *spectro.ReferenceSpectrum, scale float64, live *spectro.Spectrum) (*Factors, error) {
	if ref == nil {
		return nil, spectro.ErrNoReference
	}
	if live == nil || live.Len() == 0 {
		return nil, spectro.ErrNoSpectrum
	}
	if !(scale > 0) {
		return nil, spectro.Invalidf("reference_scale", "must be positive, got %g", scale)
	}
	refVals, covered, err := Resample(ref, scale, live.Wavelengths)
	if err != nil {
		return nil, err
	}
	n := live.Len()
	f := &Factors{
		Reference:   ref.Name,
		Scale:       scale,
		Wavelengths: append([]float64(nil), live.Wavelengths...),
		Values:      make([]float64, n),
		Unreliable:  make([]bool, n),
	}
	for i := 0; i < n; i++ {
		v := live.Intensity[i]
		if !covered[i] || v < Epsilon || live.Flags[i].Has(spectro.FlagNoSignal) {
			f.Values[i] = 1
			f.Unreliable[i] = true
			continue
		}
		f.Values[i] = refVals[i] / v
	}
	return f, nil
}

// CalibrationEngine holds the active calibration factors.
type CalibrationEngine struct {
	factors *Factors
}

// Set computes and stores factors from ref and the current live spectrum.
func (e *CalibrationEngine) Set(ref *spectro.ReferenceSpectrum, scale float64, live *spectro.Spectrum) (*Factors, error) {
	f, err := ComputeFactors(ref, scale, live)
	if err != nil {
		return nil, err
	}
	e.factors = f
	return f, nil
}

// Clear drops the factors; Apply becomes a pass-through.
func (e *CalibrationEngine) Clear() { e.factors = nil }

// Active reports whether factors are set.
func (e *CalibrationEngine) Active() bool { return e.factors != nil }

// Factors returns the active factors, or nil.
func (e *CalibrationEngine) Factors() *Factors { return e.factors }

// Apply multiplies the combined intensity of s by the factors. Channel
// values are left raw. Spectra on a different grid pass through untouched
// and Apply reports false.
func (e *CalibrationEngine) Apply(s *spectro.Spectrum) bool {
	f := e.factors
	if f == nil || !sameGrid(f.Wavelengths, s.Wavelengths) {
		return false
	}
	for i := range s.Intensity {
		s.Intensity[i] *= f.Values[i]
		if f.Unreliable[i] {
			s.Flags[i] |= spectro.FlagUnreliable
		}
	}
	return true
}

func sameGrid(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
