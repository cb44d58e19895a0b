package l1frames

import (
	"fmt"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// Reduce selects how rows of the window are combined into one sample.
type Reduce int

const (
	ReduceMean Reduce = iota
	ReduceSum
)

// ParseReduce maps "mean" or "sum" to a Reduce.
func ParseReduce(s string) (Reduce, error) {
	switch s {
	case "", "mean":
		return ReduceMean, nil
	case "sum":
		return ReduceSum, nil
	}
	return ReduceMean, spectro.Invalidf("reduce", "unknown mode %q (want mean or sum)", s)
}

func (r Reduce) String() string {
	if r == ReduceSum {
		return "sum"
	}
	return "mean"
}

// Window is the half-open row range [Top, Bottom) read from each frame.
// Bottom <= 0 reads through the last row.
type Window struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// Clamp fits the window into a frame of the given height. The result always
// holds at least one row: an empty or inverted window collapses to the single
// row at Top.
func (w Window) Clamp(height int) Window {
	top, bottom := w.Top, w.Bottom
	if bottom <= 0 || bottom > height {
		bottom = height
	}
	if top < 0 {
		top = 0
	}
	if top > height-1 {
		top = height - 1
	}
	if bottom <= top {
		bottom = top + 1
	}
	return Window{Top: top, Bottom: bottom}
}

// Rows is the number of rows in a clamped window.
func (w Window) Rows() int { return w.Bottom - w.Top }

// ExtractParams configures the column extractor.
type ExtractParams struct {
	Window Window
	Reduce Reduce
	// Flip mirrors the frame horizontally, for gratings mounted with red on
	// the left.
	Flip bool
}

// Extract reduces every pixel column of f to one sample per channel.
// Mean samples are normalised to [0, 1]; sum samples to [0, rows].
func Extract(f *spectro.Frame, p ExtractParams) (spectro.Curves, error) {
	if err := f.Validate(); err != nil {
		return spectro.Curves{}, fmt.Errorf("extract: %w", err)
	}
	w := p.Window.Clamp(f.Height)
	rows := w.Rows()

	fullScale := 1.0
	if p.Reduce == ReduceSum {
		fullScale = float64(rows)
	}
	out := spectro.NewCurves(f.Width, fullScale)

	var acc [spectro.NumChannels][]uint32
	for c := range acc {
		acc[c] = make([]uint32, f.Width)
	}
	stride := f.Width * spectro.NumChannels
	for y := w.Top; y < w.Bottom; y++ {
		row := f.Pix[y*stride : (y+1)*stride]
		for x := 0; x < f.Width; x++ {
			px := row[x*spectro.NumChannels:]
			acc[0][x] += uint32(px[0])
			acc[1][x] += uint32(px[1])
			acc[2][x] += uint32(px[2])
		}
	}

	scale := 1.0 / 255
	if p.Reduce == ReduceMean {
		scale /= float64(rows)
	}
	for c := range acc {
		dst := out.Ch[c]
		for x, v := range acc[c] {
			col := x
			if p.Flip {
				col = f.Width - 1 - x
			}
			dst[col] = float64(v) * scale
		}
	}
	return out, nil
}
