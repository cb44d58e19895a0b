package l2signal

import (
	"math"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// MaxGain bounds a single channel gain.
const MaxGain = 16.0

// Gain is the per-channel multiplier applied before linearization.
type Gain [spectro.NumChannels]float64

// UnityGain leaves samples unchanged.
var UnityGain = Gain{1, 1, 1}

// gainPresets are luma weights scaled by three, so a grey input keeps its
// combined (r+g+b)/3 intensity.
var gainPresets = map[string]Gain{
	"unity":  UnityGain,
	"rec601": {0.299 * 3, 0.587 * 3, 0.114 * 3},
	"rec709": {0.2126 * 3, 0.7152 * 3, 0.0722 * 3},
	"srgb":   {0.2126 * 3, 0.7152 * 3, 0.0722 * 3},
}

// GainPreset looks up a named gain preset.
func GainPreset(name string) (Gain, error) {
	g, ok := gainPresets[name]
	if !ok {
		return Gain{}, spectro.Invalidf("gain", "unknown preset %q", name)
	}
	return g, nil
}

// Validate rejects negative, non-finite or oversized gains.
func (g Gain) Validate() error {
	for c, v := range g {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > MaxGain {
			return spectro.Invalidf("gain", "%s must be in [0, %g], got %g", spectro.Channel(c), MaxGain, v)
		}
	}
	return nil
}

// ConditionParams configures the channel conditioner.
type ConditionParams struct {
	Gain          Gain
	Linearization *Linearization
}

// Equal reports whether two parameter sets condition identically.
func (p ConditionParams) Equal(o ConditionParams) bool {
	return p.Gain == o.Gain && p.Linearization.Equal(o.Linearization)
}

// Condition applies gain and linearization to every channel:
// out = clamp(linearize(raw*gain/FS)*FS, 0, FS). The input is not modified.
func Condition(in spectro.Curves, p ConditionParams) spectro.Curves {
	fs := in.FullScale
	out := spectro.NewCurves(in.Width(), fs)
	if fs <= 0 {
		return out
	}
	for c := range in.Ch {
		g := p.Gain[c]
		src, dst := in.Ch[c], out.Ch[c]
		for x, v := range src {
			dst[x] = clamp(p.Linearization.Apply(v*g/fs)*fs, 0, fs)
		}
	}
	return out
}

// Combined is the per-column mean of the three channels.
func Combined(c spectro.Curves) []float64 {
	out := make([]float64, c.Width())
	for x := range out {
		out[x] = (c.Ch[0][x] + c.Ch[1][x] + c.Ch[2][x]) / spectro.NumChannels
	}
	return out
}
