package l1frames

import (
	"context"
	"io"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/timeutil"
)

// EmissionLine is a Gaussian line in a synthetic spectrum.
type EmissionLine struct {
	WavelengthNM float64
	Amplitude    float64 // 0..1 of full scale
	WidthNM      float64 // standard deviation
}

// FluorescentLines approximates a compact fluorescent lamp: mercury lines
// at 436 and 546 nm and the europium line near 611 nm.
var FluorescentLines = []EmissionLine{
	{WavelengthNM: 436, Amplitude: 0.7, WidthNM: 1.5},
	{WavelengthNM: 488, Amplitude: 0.25, WidthNM: 3},
	{WavelengthNM: 546, Amplitude: 0.95, WidthNM: 1.5},
	{WavelengthNM: 611, Amplitude: 0.8, WidthNM: 2},
}

// SyntheticSource renders frames of a simulated grating spectrometer. Light
// falls in a horizontal band across the middle third of the frame with
// wavelength increasing left to right.
type SyntheticSource struct {
	Width     int
	Height    int
	FrameRate float64 // frames per second, 0 for unpaced
	// MaxFrames ends the stream with io.EOF after this many frames; 0 is unbounded.
	MaxFrames int
	// Dispersion maps pixel x to wavelength as StartNM + x*NMPerPixel.
	StartNM    float64
	NMPerPixel float64
	Lines      []EmissionLine
	Continuum  float64 // flat background, 0..1
	Noise      float64 // uniform noise amplitude, 0..1

	clock timeutil.Clock

	mu      sync.Mutex
	rng     *rand.Rand
	seq     uint64
	last    time.Time
	closed  bool
	profile [spectro.NumChannels][]float64
}

// NewSyntheticSource returns a 640x480 source whose dispersion matches the
// default two-point calibration (436 nm at pixel 261, 546 nm at pixel 486).
func NewSyntheticSource(clock timeutil.Clock, seed int64) *SyntheticSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	nmPerPx := (546.0 - 436.0) / (486.0 - 261.0)
	return &SyntheticSource{
		Width:      640,
		Height:     480,
		FrameRate:  30,
		StartNM:    436 - 261*nmPerPx,
		NMPerPixel: nmPerPx,
		Lines:      FluorescentLines,
		Continuum:  0.02,
		Noise:      0.01,
		clock:      clock,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

// Close ends the stream.
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// channelResponse is a crude RGB sensor sensitivity curve.
func channelResponse(c int, nm float64) float64 {
	centres := [spectro.NumChannels]float64{605, 540, 455}
	widths := [spectro.NumChannels]float64{40, 40, 30}
	d := (nm - centres[c]) / widths[c]
	return math.Exp(-0.5 * d * d)
}

func (s *SyntheticSource) buildProfile() {
	for c := range s.profile {
		s.profile[c] = make([]float64, s.Width)
	}
	for x := 0; x < s.Width; x++ {
		nm := s.StartNM + float64(x)*s.NMPerPixel
		v := s.Continuum
		for _, l := range s.Lines {
			d := (nm - l.WavelengthNM) / l.WidthNM
			v += l.Amplitude * math.Exp(-0.5*d*d)
		}
		for c := range s.profile {
			s.profile[c][x] = v * channelResponse(c, nm)
		}
	}
}

// Next renders the next frame, sleeping on the clock to honour FrameRate.
func (s *SyntheticSource) Next(ctx context.Context) (*spectro.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, io.ErrClosedPipe
	}
	if s.MaxFrames > 0 && s.seq >= uint64(s.MaxFrames) {
		return nil, io.EOF
	}
	if s.profile[0] == nil || len(s.profile[0]) != s.Width {
		s.buildProfile()
	}
	if s.FrameRate > 0 && !s.last.IsZero() {
		period := time.Duration(float64(time.Second) / s.FrameRate)
		if wait := period - s.clock.Since(s.last); wait > 0 {
			s.clock.Sleep(wait)
		}
	}

	f := spectro.NewFrame(s.Width, s.Height)
	f.Start = s.clock.Now()
	bandTop, bandBottom := s.Height/3, 2*s.Height/3
	for y := bandTop; y < bandBottom; y++ {
		for x := 0; x < s.Width; x++ {
			var px [spectro.NumChannels]uint8
			for c := range px {
				v := s.profile[c][x] + (s.rng.Float64()*2-1)*s.Noise
				px[c] = uint8(math.Round(255 * math.Max(0, math.Min(1, v))))
			}
			f.Set(x, y, px[0], px[1], px[2])
		}
	}
	s.seq++
	f.Seq = s.seq
	f.End = s.clock.Now()
	s.last = f.Start
	return f, nil
}
