package spectro

import (
	"fmt"
	"math"
	"time"
)

// Channel indexes the colour channels of a frame.
type Channel int

const (
	ChannelR Channel = iota
	ChannelG
	ChannelB
)

// NumChannels is the number of colour channels carried through the chain.
const NumChannels = 3

func (c Channel) String() string {
	switch c {
	case ChannelR:
		return "r"
	case ChannelG:
		return "g"
	case ChannelB:
		return "b"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Frame is one captured RGB8 image. Pix is row-major, three bytes per pixel
// in R, G, B order.
type Frame struct {
	Seq     uint64
	Session uint64
	Width   int
	Height  int
	Pix     []uint8
	Start   time.Time
	End     time.Time
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]uint8, width*height*NumChannels)}
}

// Validate checks that the pixel buffer matches the frame dimensions.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}
	if want := f.Width * f.Height * NumChannels; len(f.Pix) != want {
		return fmt.Errorf("frame buffer has %d bytes, want %d for %dx%d", len(f.Pix), want, f.Width, f.Height)
	}
	return nil
}

// At returns the RGB value of pixel (x, y).
func (f *Frame) At(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * NumChannels
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Set writes the RGB value of pixel (x, y).
func (f *Frame) Set(x, y int, r, g, b uint8) {
	i := (y*f.Width + x) * NumChannels
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// Curves holds one sample per pixel column for every channel. Samples lie in
// [0, FullScale].
type Curves struct {
	Ch        [NumChannels][]float64
	FullScale float64
}

// NewCurves allocates curves of the given width.
func NewCurves(width int, fullScale float64) Curves {
	var c Curves
	for i := range c.Ch {
		c.Ch[i] = make([]float64, width)
	}
	c.FullScale = fullScale
	return c
}

// Width is the number of pixel columns.
func (c Curves) Width() int { return len(c.Ch[0]) }

// BinFlag marks per-bin conditions on a Spectrum.
type BinFlag uint8

const (
	// FlagNoSignal marks bins whose wavelength maps outside the sensor.
	FlagNoSignal BinFlag = 1 << iota
	// FlagUnreliable marks bins where a correction hit a near-zero divisor.
	FlagUnreliable
)

func (f BinFlag) Has(o BinFlag) bool { return f&o != 0 }

// Mode says what a spectrum's values mean.
type Mode int

const (
	ModeIntensity Mode = iota
	ModeAbsorbance
)

func (m Mode) String() string {
	if m == ModeAbsorbance {
		return "absorbance"
	}
	return "intensity"
}

// Spectrum is intensity (or absorbance) on a fixed wavelength grid.
// Intensity is the combined value; Channels carries the per-channel values.
type Spectrum struct {
	Seq         uint64
	Session     uint64
	Start       time.Time
	End         time.Time
	Mode        Mode
	Wavelengths []float64
	Intensity   []float64
	Channels    [NumChannels][]float64
	Flags       []BinFlag
}

// NewSpectrum allocates a spectrum over the given wavelengths. The
// wavelength slice is shared, not copied.
func NewSpectrum(wavelengths []float64) *Spectrum {
	n := len(wavelengths)
	s := &Spectrum{
		Wavelengths: wavelengths,
		Intensity:   make([]float64, n),
		Flags:       make([]BinFlag, n),
	}
	for i := range s.Channels {
		s.Channels[i] = make([]float64, n)
	}
	return s
}

// Len is the number of bins.
func (s *Spectrum) Len() int { return len(s.Wavelengths) }

// Clone returns a deep copy.
func (s *Spectrum) Clone() *Spectrum {
	if s == nil {
		return nil
	}
	c := *s
	c.Wavelengths = append([]float64(nil), s.Wavelengths...)
	c.Intensity = append([]float64(nil), s.Intensity...)
	c.Flags = append([]BinFlag(nil), s.Flags...)
	for i := range s.Channels {
		c.Channels[i] = append([]float64(nil), s.Channels[i]...)
	}
	return &c
}

// Sanitize replaces NaN and Inf values with zero and flags the bin
// unreliable. It reports how many values were replaced.
func (s *Spectrum) Sanitize() int {
	n := 0
	fix := func(v []float64, i int) {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			v[i] = 0
			s.Flags[i] |= FlagUnreliable
			n++
		}
	}
	for i := range s.Intensity {
		fix(s.Intensity, i)
		for c := range s.Channels {
			fix(s.Channels[c], i)
		}
	}
	return n
}

// Feature is a peak or dip found in a spectrum.
type Feature struct {
	Wavelength float64 `json:"wavelength"`
	Intensity  float64 `json:"intensity"`
	Prominence float64 `json:"prominence"`
	Bin        int     `json:"bin"`
}
