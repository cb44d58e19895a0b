package l5features

import (
	"math"
	"sort"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// Params configures extraction.
type Params struct {
	// Prominence is the minimum rise and fall, in spectrum units, on both
	// sides of an extremum.
	Prominence float64
	// UniqueWindowNM keeps only the most extreme feature of each kind within
	// this distance. Zero disables the filter.
	UniqueWindowNM float64
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	if !(p.Prominence > 0) || math.IsInf(p.Prominence, 0) {
		return spectro.Invalidf("peak_prominence", "must be positive and finite, got %g", p.Prominence)
	}
	if p.UniqueWindowNM < 0 || math.IsNaN(p.UniqueWindowNM) || math.IsInf(p.UniqueWindowNM, 0) {
		return spectro.Invalidf("peak_unique_window_nm", "must be a non-negative number, got %g", p.UniqueWindowNM)
	}
	return nil
}

type kind int

const (
	kindBase kind = iota // bounding extreme, never reported
	kindPeak
	kindDip
)

type turn struct {
	kind kind
	bin  int
	v    float64
}

type scanState int

const (
	undetermined scanState = iota
	seekingPeak
	seekingDip
)

// Extract finds peaks and dips in the combined intensity of s. An extremum
// qualifies when the signal moves at least Prominence towards it from the
// previous opposite extreme and away from it before the next one, so the
// first and last bins never qualify. Ties resolve to the first bin. Bins
// flagged FlagNoSignal are skipped. Both results are sorted by wavelength.
func Extract(s *spectro.Spectrum, p Params) (peaks, dips []spectro.Feature) {
	turns := scan(s, p.Prominence)

	for j := 1; j < len(turns)-1; j++ {
		t := turns[j]
		left, right := turns[j-1].v, turns[j+1].v
		f := spectro.Feature{Wavelength: s.Wavelengths[t.bin], Intensity: t.v, Bin: t.bin}
		switch t.kind {
		case kindPeak:
			f.Prominence = t.v - math.Max(left, right)
			if f.Prominence >= p.Prominence {
				peaks = append(peaks, f)
			}
		case kindDip:
			f.Prominence = math.Min(left, right) - t.v
			if f.Prominence >= p.Prominence {
				dips = append(dips, f)
			}
		}
	}

	if p.UniqueWindowNM > 0 {
		peaks = unique(peaks, p.UniqueWindowNM, func(a, b spectro.Feature) bool { return a.Intensity > b.Intensity })
		dips = unique(dips, p.UniqueWindowNM, func(a, b spectro.Feature) bool { return a.Intensity < b.Intensity })
	}
	return peaks, dips
}

// scan walks the spectrum once and returns alternating extremes, starting and
// ending with the bounding extremes on either side of the reported ones.
func scan(s *spectro.Spectrum, delta float64) []turn {
	var turns []turn
	var mx, mn turn
	state := undetermined
	seen := false
	for i, v := range s.Intensity {
		if s.Flags[i].Has(spectro.FlagNoSignal) {
			continue
		}
		if !seen {
			mx = turn{kind: kindPeak, bin: i, v: v}
			mn = turn{kind: kindDip, bin: i, v: v}
			seen = true
			continue
		}
		switch state {
		case undetermined:
			if v > mx.v {
				mx = turn{kind: kindPeak, bin: i, v: v}
			}
			if v < mn.v {
				mn = turn{kind: kindDip, bin: i, v: v}
			}
			if v > mn.v+delta {
				turns = append(turns, turn{kind: kindBase, bin: mn.bin, v: mn.v})
				mx = turn{kind: kindPeak, bin: i, v: v}
				state = seekingPeak
			} else if v < mx.v-delta {
				turns = append(turns, turn{kind: kindBase, bin: mx.bin, v: mx.v})
				mn = turn{kind: kindDip, bin: i, v: v}
				state = seekingDip
			}
		case seekingPeak:
			if v > mx.v {
				mx = turn{kind: kindPeak, bin: i, v: v}
			} else if v < mx.v-delta {
				turns = append(turns, mx)
				mn = turn{kind: kindDip, bin: i, v: v}
				state = seekingDip
			}
		case seekingDip:
			if v < mn.v {
				mn = turn{kind: kindDip, bin: i, v: v}
			} else if v > mn.v+delta {
				turns = append(turns, mn)
				mx = turn{kind: kindPeak, bin: i, v: v}
				state = seekingPeak
			}
		}
	}
	switch state {
	case seekingPeak:
		turns = append(turns, turn{kind: kindBase, bin: mx.bin, v: mx.v})
	case seekingDip:
		turns = append(turns, turn{kind: kindBase, bin: mn.bin, v: mn.v})
	}
	return turns
}

// unique keeps the best feature within every window, then restores
// wavelength order. better must be a strict ordering.
func unique(fs []spectro.Feature, window float64, better func(a, b spectro.Feature) bool) []spectro.Feature {
	if len(fs) < 2 {
		return fs
	}
	ranked := append([]spectro.Feature(nil), fs...)
	sort.SliceStable(ranked, func(i, j int) bool { return better(ranked[i], ranked[j]) })

	var kept []spectro.Feature
	for _, f := range ranked {
		free := true
		for _, k := range kept {
			if math.Abs(k.Wavelength-f.Wavelength) < window {
				free = false
				break
			}
		}
		if free {
			kept = append(kept, f)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Wavelength < kept[j].Wavelength })
	return kept
}
