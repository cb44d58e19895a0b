package l4reference

import (
	"math"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// AbsorptionEngine converts intensity to absorbance against a stored zero
// reference: A = -log10(live/zero).
type AbsorptionEngine struct {
	zero *spectro.Spectrum
}

// Set stores a copy of the current post-calibration spectrum.
func (e *AbsorptionEngine) Set(live *spectro.Spectrum) error {
	if live == nil || live.Len() == 0 {
		return spectro.ErrNoSpectrum
	}
	if live.Mode != spectro.ModeIntensity {
		return spectro.ErrInvalidState
	}
	e.zero = live.Clone()
	return nil
}

func (e *AbsorptionEngine) Clear()                  { e.zero = nil }
func (e *AbsorptionEngine) Active() bool            { return e.zero != nil }
func (e *AbsorptionEngine) Zero() *spectro.Spectrum { return e.zero }

// Apply rewrites s as absorbance. A zero value below Epsilon yields 0 and a
// live value below Epsilon is clamped to Epsilon; both mark the bin
// unreliable. Bins without signal stay 0. Spectra on a different grid pass
// through and Apply reports false.
func (e *AbsorptionEngine) Apply(s *spectro.Spectrum) bool {
	z := e.zero
	if z == nil || !sameGrid(z.Wavelengths, s.Wavelengths) {
		return false
	}
	for i := range s.Intensity {
		if s.Flags[i].Has(spectro.FlagNoSignal) || z.Flags[i].Has(spectro.FlagNoSignal) {
			s.Intensity[i] = 0
			for c := range s.Channels {
				s.Channels[c][i] = 0
			}
			s.Flags[i] |= spectro.FlagNoSignal
			continue
		}
		var unreliable bool
		s.Intensity[i], unreliable = absorbance(s.Intensity[i], z.Intensity[i])
		for c := range s.Channels {
			var u bool
			s.Channels[c][i], u = absorbance(s.Channels[c][i], z.Channels[c][i])
			unreliable = unreliable || u
		}
		if unreliable {
			s.Flags[i] |= spectro.FlagUnreliable
		}
	}
	s.Mode = spectro.ModeAbsorbance
	return true
}

func absorbance(live, zero float64) (float64, bool) {
	if zero < Epsilon {
		return 0, true
	}
	unreliable := false
	if live < Epsilon {
		live = Epsilon
		unreliable = true
	}
	return -math.Log10(live / zero), unreliable
}
