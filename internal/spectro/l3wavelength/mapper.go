package l3wavelength

import (
	"math"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// Mapper resamples per-column curves onto a fixed wavelength grid.
type Mapper struct {
	cal         *CalibrationMap
	grid        spectro.Grid
	wavelengths []float64
	pixels      []float64 // fractional source column for every bin
}

// NewMapper precomputes the source column of every output bin.
func NewMapper(cal *CalibrationMap, grid spectro.Grid) (*Mapper, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	m := &Mapper{cal: cal, grid: grid, wavelengths: grid.Wavelengths()}
	m.pixels = make([]float64, len(m.wavelengths))
	for i, wl := range m.wavelengths {
		m.pixels[i] = cal.Pixel(wl)
	}
	return m, nil
}

func (m *Mapper) Grid() spectro.Grid           { return m.grid }
func (m *Mapper) Calibration() *CalibrationMap { return m.cal }
func (m *Mapper) Wavelengths() []float64       { return m.wavelengths }
func (m *Mapper) SourcePixel(bin int) float64  { return m.pixels[bin] }
func (m *Mapper) Bins() int                    { return len(m.wavelengths) }

// Map builds a spectrum from filtered curves. Bins whose source column falls
// outside [0, width-1] read zero and carry FlagNoSignal. The combined
// intensity is the mean of the three resampled channels.
func (m *Mapper) Map(c spectro.Curves) *spectro.Spectrum {
	s := spectro.NewSpectrum(append([]float64(nil), m.wavelengths...))
	width := c.Width()
	last := float64(width - 1)
	for i, p := range m.pixels {
		if width == 0 || p < 0 || p > last || math.IsNaN(p) {
			s.Flags[i] |= spectro.FlagNoSignal
			continue
		}
		x0 := int(math.Floor(p))
		frac := p - float64(x0)
		x1 := x0 + 1
		if x1 >= width {
			x1, frac = x0, 0
		}
		sum := 0.0
		for ch := range c.Ch {
			v := c.Ch[ch][x0]*(1-frac) + c.Ch[ch][x1]*frac
			s.Channels[ch][i] = v
			sum += v
		}
		s.Intensity[i] = sum / spectro.NumChannels
	}
	return s
}
