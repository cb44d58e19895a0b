package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

func TestUniformFrame(t *testing.T) {
	t.Parallel()

	f := UniformFrame(4, 3, 77)
	require.NoError(t, f.Validate())
	r, g, b := f.At(3, 2)
	assert.Equal(t, [3]uint8{77, 77, 77}, [3]uint8{r, g, b})
}

func TestColumnFrame(t *testing.T) {
	t.Parallel()

	f := ColumnFrame(2, []uint8{1, 2, 3})
	require.NoError(t, f.Validate())
	assert.Equal(t, 3, f.Width)
	r, _, _ := f.At(2, 1)
	assert.Equal(t, uint8(3), r)
}

func TestPeakColumns(t *testing.T) {
	t.Parallel()

	cols := PeakColumns(50, 10, 200, 2, 20)
	assert.Equal(t, uint8(210), cols[20])
	assert.Equal(t, uint8(10), cols[0])
	assert.Less(t, cols[18], cols[20])
}

func TestFlatSpectrum(t *testing.T) {
	t.Parallel()

	s := FlatSpectrum(spectro.Grid{StartNM: 400, EndNM: 410, StepNM: 1}, 0.5)
	assert.Equal(t, 11, s.Len())
	AssertAllNear(t, s.Intensity, 0.5, 0)
	AssertAllNear(t, s.Channels[spectro.ChannelB], 0.5, 0)
	AssertFinite(t, s)
}

func TestSpectrumFromCopies(t *testing.T) {
	t.Parallel()

	wl := []float64{1, 2}
	s := SpectrumFrom(wl, []float64{3, 4})
	wl[0] = 9
	assert.Equal(t, 1.0, s.Wavelengths[0])
	assert.Equal(t, []float64{3, 4}, s.Channels[spectro.ChannelG])
}

func TestNewJSONRequest(t *testing.T) {
	t.Parallel()

	req := NewJSONRequest(http.MethodPut, "/api/config", `{"flip":true}`)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
}
