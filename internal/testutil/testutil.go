// Package testutil provides shared test fixtures: synthetic frames and
// spectra, and assertions used across the pipeline and API tests.
package testutil

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewJSONRequest creates a test request with a JSON body.
func NewJSONRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// UniformFrame returns a width x height frame with every sample set to v.
func UniformFrame(width, height int, v uint8) *spectro.Frame {
	f := spectro.NewFrame(width, height)
	for i := range f.Pix {
		f.Pix[i] = v
	}
	return f
}

// ColumnFrame returns a frame where every row repeats cols, the grey level
// of each column.
func ColumnFrame(height int, cols []uint8) *spectro.Frame {
	f := spectro.NewFrame(len(cols), height)
	for y := 0; y < height; y++ {
		for x, v := range cols {
			f.Set(x, y, v, v, v)
		}
	}
	return f
}

// PeakColumns is a flat background with Gaussian bumps of the given height
// (0..255) centred on each column in centres.
func PeakColumns(width int, background float64, height float64, sigma float64, centres ...int) []uint8 {
	cols := make([]uint8, width)
	for x := range cols {
		v := background
		for _, c := range centres {
			d := float64(x-c) / sigma
			v += height * math.Exp(-0.5*d*d)
		}
		cols[x] = uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	return cols
}

// FlatSpectrum returns an intensity spectrum on g where every channel and
// the combined intensity equal v.
func FlatSpectrum(g spectro.Grid, v float64) *spectro.Spectrum {
	s := spectro.NewSpectrum(g.Wavelengths())
	for i := range s.Intensity {
		s.Intensity[i] = v
		for c := range s.Channels {
			s.Channels[c][i] = v
		}
	}
	return s
}

// SpectrumFrom builds a spectrum on explicit wavelengths with the given
// combined intensity.
func SpectrumFrom(wavelengths, intensity []float64) *spectro.Spectrum {
	s := spectro.NewSpectrum(append([]float64(nil), wavelengths...))
	copy(s.Intensity, intensity)
	for c := range s.Channels {
		copy(s.Channels[c], intensity)
	}
	return s
}

// AssertFinite fails if any published value in s is NaN or infinite.
func AssertFinite(t *testing.T, s *spectro.Spectrum) {
	t.Helper()
	for i, v := range s.Intensity {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("intensity[%d] = %v", i, v)
		}
		for c := range s.Channels {
			if w := s.Channels[c][i]; math.IsNaN(w) || math.IsInf(w, 0) {
				t.Fatalf("channel %s[%d] = %v", spectro.Channel(c), i, w)
			}
		}
	}
}

// AssertAllNear fails if any element of got differs from want by more
// than tol.
func AssertAllNear(t *testing.T, got []float64, want, tol float64) {
	t.Helper()
	for i, v := range got {
		if math.Abs(v-want) > tol {
			t.Fatalf("element %d = %v, want %v +/- %v", i, v, want, tol)
		}
	}
}
