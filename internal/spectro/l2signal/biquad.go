package l2signal

import "math"

// Sample rate used to normalise the cutoff: with fs = 2 the cutoff is a
// fraction of Nyquist.
const filterSampleRate = 2.0

// Cutoff bounds after clamping.
const (
	MinCutoff = 0.001
	MaxCutoff = 0.999
)

// section is one second-order low-pass stage in Direct Form II transposed.
type section struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

func lowpassSection(cutoff, q float64) section {
	w0 := 2 * math.Pi * cutoff / filterSampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)
	a0 := 1 + alpha
	return section{
		b0: (1 - cw) / 2 / a0,
		b1: (1 - cw) / a0,
		b2: (1 - cw) / 2 / a0,
		a1: -2 * cw / a0,
		a2: (1 - alpha) / a0,
	}
}

// dcGain is H(z=1).
func (s *section) dcGain() float64 {
	return (s.b0 + s.b1 + s.b2) / (1 + s.a1 + s.a2)
}

// prime loads the delay line with the steady state for a constant input x0,
// so a flat signal passes without a start-up transient.
func (s *section) prime(x0 float64) {
	y := s.dcGain() * x0
	s.z2 = s.b2*x0 - s.a2*y
	s.z1 = s.b1*x0 - s.a1*y + s.z2
}

func (s *section) step(x float64) float64 {
	y := s.b0*x + s.z1
	s.z1 = s.b1*x - s.a1*y + s.z2
	s.z2 = s.b2*x - s.a2*y
	return y
}

// Cascade is an even-order Butterworth low-pass built from biquad sections.
type Cascade struct {
	cutoff   float64
	order    int
	sections []section
}

// NewCascade designs a Butterworth low-pass. Cutoff is a fraction of Nyquist
// and is clamped to [MinCutoff, MaxCutoff]; order must be even.
func NewCascade(cutoff float64, order int) *Cascade {
	cutoff = clamp(cutoff, MinCutoff, MaxCutoff)
	c := &Cascade{cutoff: cutoff, order: order}
	n := float64(order)
	for k := 1; k <= order/2; k++ {
		q := 1 / (2 * math.Sin(float64(2*k-1)*math.Pi/(2*n)))
		c.sections = append(c.sections, lowpassSection(cutoff, q))
	}
	return c
}

// DCGain is the product of the section gains at zero frequency.
func (c *Cascade) DCGain() float64 {
	g := 1.0
	for i := range c.sections {
		g *= c.sections[i].dcGain()
	}
	return g
}

func (c *Cascade) pass(buf []float64, reverse bool) {
	n := len(buf)
	if n == 0 {
		return
	}
	for i := range c.sections {
		s := &c.sections[i]
		if reverse {
			s.prime(buf[n-1])
			for x := n - 1; x >= 0; x-- {
				buf[x] = s.step(buf[x])
			}
		} else {
			s.prime(buf[0])
			for x := 0; x < n; x++ {
				buf[x] = s.step(buf[x])
			}
		}
	}
}

// FilterZeroPhase runs the cascade forward then backward over buf in place,
// which cancels the phase shift so peaks stay on their pixel.
func (c *Cascade) FilterZeroPhase(buf []float64) {
	c.pass(buf, false)
	c.pass(buf, true)
}
