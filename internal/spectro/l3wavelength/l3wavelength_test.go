package l3wavelength

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

func TestCalibrationMap_DefaultPoints(t *testing.T) {
	m, err := NewCalibrationMap(DefaultPoints, "")
	require.NoError(t, err)
	assert.Equal(t, ModelPiecewise, m.Model())

	assert.InDelta(t, 261, m.Pixel(436), 1e-9)
	assert.InDelta(t, 486, m.Pixel(546), 1e-9)
	assert.InDelta(t, 373.5, m.Pixel(491), 1e-9)
	// Extrapolated from the end segments.
	slope := 225.0 / 110.0
	assert.InDelta(t, 261-36*slope, m.Pixel(400), 1e-9)
	assert.InDelta(t, 486+54*slope, m.Pixel(600), 1e-9)

	for _, px := range []float64{0, 261, 300, 486, 639} {
		assert.InDelta(t, px, m.Pixel(m.Wavelength(px)), 1e-9)
	}
}

func TestCalibrationMap_ThreePointPiecewise(t *testing.T) {
	pts := []Point{{100, 400}, {300, 500}, {400, 600}}
	m, err := NewCalibrationMap(pts, ModelPiecewise)
	require.NoError(t, err)
	assert.InDelta(t, 200, m.Pixel(450), 1e-9)
	assert.InDelta(t, 350, m.Pixel(550), 1e-9)
	assert.InDelta(t, 650, m.Wavelength(450), 1e-9)
	assert.InDelta(t, 350, m.Wavelength(0), 1e-9)
	assert.Equal(t, pts, m.Points())
}

func TestCalibrationMap_LinearModel(t *testing.T) {
	// Exact line pixel = 2*wl - 600 with one noisy point.
	pts := []Point{{200, 400}, {400.5, 500}, {600, 600}}
	m, err := NewCalibrationMap(pts, ModelLinear)
	require.NoError(t, err)
	assert.InDelta(t, 400, m.Pixel(500), 0.5)
	assert.InDelta(t, 500, m.Wavelength(m.Pixel(500)), 1e-9)
}

func TestCalibrationMap_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		points   []Point
		model    Model
		monotone bool
	}{
		{"one point", []Point{{1, 400}}, ModelPiecewise, false},
		{"pixels repeat", []Point{{10, 400}, {10, 500}}, ModelPiecewise, true},
		{"wavelengths decrease", []Point{{10, 500}, {20, 400}}, ModelPiecewise, true},
		{"nan", []Point{{10, math.NaN()}, {20, 400}}, ModelPiecewise, false},
		{"unknown model", DefaultPoints, "cubic", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalibrationMap(tt.points, tt.model)
			require.Error(t, err)
			var nm *spectro.NonMonotonicError
			assert.Equal(t, tt.monotone, errors.As(err, &nm))
		})
	}
}

func rampCurves(width int) spectro.Curves {
	c := spectro.NewCurves(width, 1)
	for x := 0; x < width; x++ {
		v := 0.5 + 0.4*math.Sin(float64(x)/15)
		c.Ch[0][x], c.Ch[1][x], c.Ch[2][x] = v, v/2, v/4
	}
	return c
}

func TestMapper_NoSignalOutsideSensor(t *testing.T) {
	cal, err := NewCalibrationMap([]Point{{0, 400}, {99, 499}}, ModelPiecewise)
	require.NoError(t, err)
	m, err := NewMapper(cal, spectro.Grid{StartNM: 390, EndNM: 510, StepNM: 1})
	require.NoError(t, err)

	s := m.Map(rampCurves(100))
	require.Equal(t, 121, s.Len())
	for i, wl := range s.Wavelengths {
		inside := wl >= 400 && wl <= 499
		assert.Equal(t, !inside, s.Flags[i].Has(spectro.FlagNoSignal), "wl %g", wl)
		if !inside {
			assert.Zero(t, s.Intensity[i])
			assert.Zero(t, s.Channels[spectro.ChannelR][i])
		}
	}
	// Bin at 400 nm reads pixel 0 exactly.
	assert.InDelta(t, 0.5, s.Channels[spectro.ChannelR][10], 1e-12)
	assert.InDelta(t, (0.5+0.25+0.125)/3, s.Intensity[10], 1e-12)
}

func TestMapper_InterpolatesBetweenColumns(t *testing.T) {
	cal, err := NewCalibrationMap([]Point{{0, 400}, {10, 410}}, ModelPiecewise)
	require.NoError(t, err)
	m, err := NewMapper(cal, spectro.Grid{StartNM: 402.25, EndNM: 402.25 + 1, StepNM: 1})
	require.NoError(t, err)

	c := spectro.NewCurves(11, 1)
	for x := range c.Ch[0] {
		c.Ch[0][x] = float64(x) / 10
	}
	s := m.Map(c)
	assert.InDelta(t, 0.225, s.Channels[0][0], 1e-12)
	assert.InDelta(t, 0.325, s.Channels[0][1], 1e-12)
	assert.InDelta(t, 402.25, s.Wavelengths[0], 1e-12)
	assert.InDelta(t, 2.25, m.SourcePixel(0), 1e-12)
}

func TestMapper_FineThenCoarseMatchesDirect(t *testing.T) {
	cal, err := NewCalibrationMap(DefaultPoints, ModelPiecewise)
	require.NoError(t, err)
	curves := rampCurves(640)

	coarse, err := NewMapper(cal, spectro.Grid{StartNM: 380, EndNM: 600, StepNM: 2})
	require.NoError(t, err)
	fine, err := NewMapper(cal, spectro.Grid{StartNM: 380, EndNM: 600, StepNM: 0.25})
	require.NoError(t, err)

	direct := coarse.Map(curves)
	fs := fine.Map(curves)

	var down interp.PiecewiseLinear
	require.NoError(t, down.Fit(fs.Wavelengths, fs.Intensity))
	for i, wl := range direct.Wavelengths {
		if direct.Flags[i].Has(spectro.FlagNoSignal) {
			continue
		}
		assert.InDelta(t, direct.Intensity[i], down.Predict(wl), 1e-3, "wl %g", wl)
	}
	assert.Equal(t, 111, coarse.Bins())
}

func TestNewMapper_InvalidGrid(t *testing.T) {
	cal, err := NewCalibrationMap(DefaultPoints, ModelPiecewise)
	require.NoError(t, err)
	_, err = NewMapper(cal, spectro.Grid{StartNM: 500, EndNM: 400, StepNM: 1})
	var cve *spectro.ConfigValidationError
	assert.True(t, errors.As(err, &cve))
}
