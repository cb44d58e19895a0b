package l4reference

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// Tungsten generator range.
const (
	TungstenStartNM = 340.0
	TungstenEndNM   = 1999.0
	// IlluminantATemp is the CIE illuminant A colour temperature.
	IlluminantATemp = 2856.0
)

const (
	planckH = 6.62607015e-34
	planckC = 2.99792458e8
	boltzK  = 1.380649e-23
)

// planck is black-body spectral radiance at wavelength nm, up to a constant.
func planck(nm, tempK float64) float64 {
	l := nm * 1e-9
	return 1 / (math.Pow(l, 5) * (math.Exp(planckH*planckC/(l*boltzK*tempK)) - 1))
}

// tungstenEmissivity follows Larrabee's fit for tungsten, with wavelength
// in micrometres. It is floored to keep the curve positive in the infrared.
func tungstenEmissivity(nm, tempK float64) float64 {
	um := nm / 1000
	e := 0.4655 + 0.01558*um + 0.2675e-4*tempK - 0.7305e-4*um*tempK
	return math.Max(e, 0.05)
}

// Tungsten returns the normalised emission of a tungsten-halogen filament at
// tempK, sampled every stepNM from 340 to 1999 nm. The maximum is 1.
func Tungsten(tempK, stepNM float64) (*spectro.ReferenceSpectrum, error) {
	if !(tempK >= 1000 && tempK <= 4000) {
		return nil, fmt.Errorf("tungsten temperature %g K outside [1000, 4000]", tempK)
	}
	if !(stepNM > 0) {
		return nil, fmt.Errorf("tungsten step must be positive, got %g", stepNM)
	}
	grid := spectro.Grid{StartNM: TungstenStartNM, EndNM: TungstenEndNM, StepNM: stepNM}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	wl := grid.Wavelengths()
	val := make([]float64, len(wl))
	for i, nm := range wl {
		val[i] = planck(nm, tempK) * tungstenEmissivity(nm, tempK)
	}
	floats.Scale(1/floats.Max(val), val)
	return spectro.NewReferenceSpectrum(fmt.Sprintf("tungsten-%.0fK", tempK), wl, val)
}
