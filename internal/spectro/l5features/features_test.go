package l5features

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

func spectrumOf(vals ...float64) *spectro.Spectrum {
	wl := make([]float64, len(vals))
	for i := range wl {
		wl[i] = 400 + float64(i)
	}
	s := spectro.NewSpectrum(wl)
	copy(s.Intensity, vals)
	return s
}

func TestExtract_SinglePeak(t *testing.T) {
	vals := make([]float64, 21)
	for i := range vals {
		vals[i] = 1
	}
	vals[10] = 10
	peaks, dips := Extract(spectrumOf(vals...), Params{Prominence: 5})

	want := []spectro.Feature{{Wavelength: 410, Intensity: 10, Prominence: 9, Bin: 10}}
	if diff := cmp.Diff(want, peaks); diff != "" {
		t.Errorf("peaks mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, dips)
}

func TestExtract_PeaksAndDipsAlternate(t *testing.T) {
	s := spectrumOf(0, 5, 0, 8, 2, 9, 0)
	peaks, dips := Extract(s, Params{Prominence: 4})

	require.Len(t, peaks, 3)
	assert.Equal(t, []int{1, 3, 5}, []int{peaks[0].Bin, peaks[1].Bin, peaks[2].Bin})
	assert.InDelta(t, 5, peaks[0].Prominence, 1e-12)
	// Bounded by the 0 dip on the left and the 2 dip on the right.
	assert.InDelta(t, 6, peaks[1].Prominence, 1e-12)
	assert.InDelta(t, 7, peaks[2].Prominence, 1e-12)

	require.Len(t, dips, 2)
	assert.Equal(t, 2, dips[0].Bin)
	assert.InDelta(t, 5, dips[0].Prominence, 1e-12)
	assert.Equal(t, 4, dips[1].Bin)
	assert.InDelta(t, 6, dips[1].Prominence, 1e-12)
}

func TestExtract_BelowThresholdIgnored(t *testing.T) {
	peaks, dips := Extract(spectrumOf(1, 1.5, 1, 1.4, 1), Params{Prominence: 1})
	assert.Empty(t, peaks)
	assert.Empty(t, dips)
}

func TestExtract_BoundaryNeverQualifies(t *testing.T) {
	// Monotonic ramps have their extremes at the edges only.
	peaks, dips := Extract(spectrumOf(0, 2, 4, 6, 8), Params{Prominence: 1})
	assert.Empty(t, peaks)
	assert.Empty(t, dips)

	peaks, dips = Extract(spectrumOf(9, 0, 0, 0, 9), Params{Prominence: 1})
	assert.Empty(t, peaks)
	require.Len(t, dips, 1)
	assert.Equal(t, 1, dips[0].Bin, "ties resolve to the first bin")
}

func TestExtract_PlateauTieFirstIndex(t *testing.T) {
	peaks, _ := Extract(spectrumOf(0, 7, 7, 7, 0), Params{Prominence: 3})
	require.Len(t, peaks, 1)
	assert.Equal(t, 1, peaks[0].Bin)
}

func TestExtract_SkipsNoSignal(t *testing.T) {
	s := spectrumOf(0, 0, 5, 0, 0)
	s.Flags[2] = spectro.FlagNoSignal
	peaks, dips := Extract(s, Params{Prominence: 1})
	assert.Empty(t, peaks)
	assert.Empty(t, dips)
}

func TestExtract_UniqueWindow(t *testing.T) {
	s := spectrumOf(0, 6, 0, 9, 0, 0, 0, 0, 0, 7, 0)
	all, _ := Extract(s, Params{Prominence: 3})
	require.Len(t, all, 3)

	peaks, dips := Extract(s, Params{Prominence: 3, UniqueWindowNM: 4})
	require.Len(t, peaks, 2)
	assert.Equal(t, 403.0, peaks[0].Wavelength)
	assert.Equal(t, 409.0, peaks[1].Wavelength)
	assert.LessOrEqual(t, len(dips), 2)
}

func TestExtract_NoNaNProminence(t *testing.T) {
	s := spectrumOf()
	peaks, dips := Extract(s, Params{Prominence: 1})
	assert.Empty(t, peaks)
	assert.Empty(t, dips)

	s = spectrumOf(3)
	peaks, _ = Extract(s, Params{Prominence: 1})
	assert.Empty(t, peaks)
	for _, p := range peaks {
		assert.False(t, math.IsNaN(p.Prominence))
	}
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, Params{Prominence: 0.05}.Validate())
	require.NoError(t, Params{Prominence: 0.05, UniqueWindowNM: 10}.Validate())

	for _, p := range []Params{
		{Prominence: 0},
		{Prominence: -1},
		{Prominence: math.Inf(1)},
		{Prominence: 1, UniqueWindowNM: -2},
		{Prominence: 1, UniqueWindowNM: math.NaN()},
	} {
		var cve *spectro.ConfigValidationError
		assert.True(t, errors.As(p.Validate(), &cve), "%+v", p)
	}
}
