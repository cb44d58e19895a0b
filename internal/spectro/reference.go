package spectro

import (
	"fmt"
	"math"
)

// ReferenceSpectrum is an immutable (wavelength, intensity) table with
// strictly increasing wavelengths.
type ReferenceSpectrum struct {
	Name        string
	Wavelengths []float64
	Intensity   []float64
}

// NewReferenceSpectrum validates and copies the table.
func NewReferenceSpectrum(name string, wavelengths, intensity []float64) (*ReferenceSpectrum, error) {
	if len(wavelengths) != len(intensity) {
		return nil, fmt.Errorf("reference %q: %d wavelengths but %d intensities", name, len(wavelengths), len(intensity))
	}
	if len(wavelengths) < 2 {
		return nil, fmt.Errorf("reference %q: need at least 2 rows, got %d", name, len(wavelengths))
	}
	for i := range wavelengths {
		if math.IsNaN(wavelengths[i]) || math.IsInf(wavelengths[i], 0) ||
			math.IsNaN(intensity[i]) || math.IsInf(intensity[i], 0) {
			return nil, fmt.Errorf("reference %q: non-finite value at row %d", name, i)
		}
	}
	if err := CheckIncreasing("reference wavelengths", wavelengths); err != nil {
		return nil, err
	}
	return &ReferenceSpectrum{
		Name:        name,
		Wavelengths: append([]float64(nil), wavelengths...),
		Intensity:   append([]float64(nil), intensity...),
	}, nil
}

// Len is the number of rows.
func (r *ReferenceSpectrum) Len() int { return len(r.Wavelengths) }

// Range returns the first and last wavelength.
func (r *ReferenceSpectrum) Range() (lo, hi float64) {
	return r.Wavelengths[0], r.Wavelengths[len(r.Wavelengths)-1]
}
