package l3wavelength

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// Point ties a pixel column to a known wavelength.
type Point struct {
	Pixel      float64 `json:"pixel"`
	Wavelength float64 `json:"wavelength"`
}

// Model selects how control points are joined.
type Model string

const (
	// ModelPiecewise passes through every point and extends the end
	// segments linearly.
	ModelPiecewise Model = "piecewise"
	// ModelLinear is the least-squares line through all points.
	ModelLinear Model = "linear"
)

// DefaultPoints are the mercury 436 nm and 546 nm lines of a fluorescent
// lamp as seen by the reference hardware.
var DefaultPoints = []Point{
	{Pixel: 261, Wavelength: 436},
	{Pixel: 486, Wavelength: 546},
}

// CalibrationMap converts between pixel column and wavelength.
type CalibrationMap struct {
	model  Model
	points []Point

	// wavelength -> pixel, used for resampling
	inverse interp.PiecewiseLinear
	// linear model, pixel = alpha + beta*wavelength
	alpha, beta float64
}

// NewCalibrationMap validates points and builds the map. Pixels and
// wavelengths must both be strictly increasing.
func NewCalibrationMap(points []Point, model Model) (*CalibrationMap, error) {
	if model == "" {
		model = ModelPiecewise
	}
	if model != ModelPiecewise && model != ModelLinear {
		return nil, spectro.Invalidf("calibration", "unknown model %q", model)
	}
	if len(points) < 2 {
		return nil, spectro.Invalidf("calibration", "need at least 2 points, got %d", len(points))
	}
	px := make([]float64, len(points))
	wl := make([]float64, len(points))
	for i, p := range points {
		if math.IsNaN(p.Pixel) || math.IsInf(p.Pixel, 0) || math.IsNaN(p.Wavelength) || math.IsInf(p.Wavelength, 0) {
			return nil, spectro.Invalidf("calibration", "point %d is not finite", i)
		}
		px[i], wl[i] = p.Pixel, p.Wavelength
	}
	if err := spectro.CheckIncreasing("calibration pixels", px); err != nil {
		return nil, err
	}
	if err := spectro.CheckIncreasing("calibration wavelengths", wl); err != nil {
		return nil, err
	}

	m := &CalibrationMap{model: model, points: append([]Point(nil), points...)}
	switch model {
	case ModelLinear:
		m.alpha, m.beta = stat.LinearRegression(wl, px, nil, false)
		if !(m.beta > 0) {
			return nil, spectro.Invalidf("calibration", "degenerate linear fit (slope %g)", m.beta)
		}
	default:
		if err := m.inverse.Fit(wl, px); err != nil {
			return nil, fmt.Errorf("fit calibration: %w", err)
		}
	}
	return m, nil
}

// Model reports the model in use.
func (m *CalibrationMap) Model() Model { return m.model }

// Points returns a copy of the control points.
func (m *CalibrationMap) Points() []Point { return append([]Point(nil), m.points...) }

// Pixel returns the fractional pixel column for a wavelength.
func (m *CalibrationMap) Pixel(wavelength float64) float64 {
	if m.model == ModelLinear {
		return m.alpha + m.beta*wavelength
	}
	n := len(m.points)
	first, last := m.points[0], m.points[n-1]
	switch {
	case wavelength < first.Wavelength:
		return extend(m.points[0], m.points[1], wavelength)
	case wavelength > last.Wavelength:
		return extend(m.points[n-2], m.points[n-1], wavelength)
	}
	return m.inverse.Predict(wavelength)
}

// Wavelength returns the wavelength seen at a fractional pixel column.
func (m *CalibrationMap) Wavelength(pixel float64) float64 {
	if m.model == ModelLinear {
		return (pixel - m.alpha) / m.beta
	}
	n := len(m.points)
	i := 1
	for i < n-1 && pixel > m.points[i].Pixel {
		i++
	}
	a, b := m.points[i-1], m.points[i]
	return a.Wavelength + (pixel-a.Pixel)*(b.Wavelength-a.Wavelength)/(b.Pixel-a.Pixel)
}

// extend evaluates the line through a and b at wavelength.
func extend(a, b Point, wavelength float64) float64 {
	slope := (b.Pixel - a.Pixel) / (b.Wavelength - a.Wavelength)
	return a.Pixel + (wavelength-a.Wavelength)*slope
}
