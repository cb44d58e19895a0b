package l2signal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// Curve names a linearization transfer function.
type Curve string

const (
	CurveOff    Curve = "off"
	CurveRec601 Curve = "rec601"
	CurveRec709 Curve = "rec709"
	CurveSRGB   Curve = "srgb"
	CurveCustom Curve = "custom"
)

// ControlPoint is one (input, output) pair of a custom curve, both in [0, 1].
type ControlPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Linearization undoes the camera's encoding gamma on normalised samples.
// The zero value is the identity.
type Linearization struct {
	curve  Curve
	points []ControlPoint
	lut    interp.PiecewiseLinear
}

// NewLinearization builds a curve. Points are only used for CurveCustom;
// they need at least two entries, strictly increasing X and non-decreasing Y.
func NewLinearization(curve Curve, points []ControlPoint) (*Linearization, error) {
	l := &Linearization{curve: curve}
	switch curve {
	case "", CurveOff:
		l.curve = CurveOff
	case CurveRec601, CurveRec709, CurveSRGB:
	case CurveCustom:
		if len(points) < 2 {
			return nil, spectro.Invalidf("linearization", "custom curve needs at least 2 points, got %d", len(points))
		}
		xs := make([]float64, len(points))
		ys := make([]float64, len(points))
		for i, p := range points {
			if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
				return nil, spectro.Invalidf("linearization", "point %d (%g, %g) outside [0, 1]", i, p.X, p.Y)
			}
			if i > 0 && p.Y < points[i-1].Y {
				return nil, spectro.Invalidf("linearization", "custom curve output decreases at point %d", i)
			}
			xs[i], ys[i] = p.X, p.Y
		}
		if err := spectro.CheckIncreasing("linearization points", xs); err != nil {
			return nil, err
		}
		if err := l.lut.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("fit custom curve: %w", err)
		}
		l.points = append([]ControlPoint(nil), points...)
	default:
		return nil, spectro.Invalidf("linearization", "unknown curve %q", curve)
	}
	return l, nil
}

// Curve reports which transfer function is in use.
func (l *Linearization) Curve() Curve {
	if l == nil || l.curve == "" {
		return CurveOff
	}
	return l.curve
}

// Points returns the custom control points.
func (l *Linearization) Points() []ControlPoint {
	if l == nil {
		return nil
	}
	return append([]ControlPoint(nil), l.points...)
}

// Apply maps a normalised sample. Inputs are clamped to [0, 1] first.
func (l *Linearization) Apply(v float64) float64 {
	v = clamp(v, 0, 1)
	switch l.Curve() {
	case CurveRec601, CurveRec709:
		if v < 0.081 {
			return v / 4.5
		}
		return math.Pow((v+0.099)/1.099, 1/0.45)
	case CurveSRGB:
		if v <= 0.04045 {
			return v / 12.92
		}
		return math.Pow((v+0.055)/1.055, 2.4)
	case CurveCustom:
		return l.lut.Predict(v)
	}
	return v
}

// Equal reports whether two linearizations produce the same mapping.
func (l *Linearization) Equal(o *Linearization) bool {
	if l.Curve() != o.Curve() {
		return false
	}
	if l.Curve() != CurveCustom {
		return true
	}
	if len(l.points) != len(o.points) {
		return false
	}
	for i := range l.points {
		if l.points[i] != o.points[i] {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
