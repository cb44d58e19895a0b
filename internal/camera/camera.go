// Package camera provides frame sources for the spectrometer: a webcam
// read through OpenCV and a directory of still images replayed as frames.
package camera

import (
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for image.Decode
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/spectrum.report/internal/security"
	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l1frames"
)

// Options configure a camera device. Zero Width, Height or FrameRate keep
// the driver default.
type Options struct {
	Device    int
	Width     int
	Height    int
	FrameRate float64
}

// FromImage converts img to an RGB8 frame. Alpha is dropped.
func FromImage(img image.Image) *spectro.Frame {
	b := img.Bounds()
	f := spectro.NewFrame(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			f.Set(x, y, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
		}
	}
	return f
}

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// OpenDir loads every PNG and JPEG in dir, in file name order, as a replay
// source. Frames are stamped one frame period apart. Symlinks that resolve
// outside dir are skipped.
func OpenDir(dir string, loop bool) (*l1frames.ReplaySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		if err := security.ValidatePathWithinDirectory(filepath.Join(dir, e.Name()), dir); err != nil {
			opsf("skipping %s: %v", e.Name(), err)
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	sort.Strings(names)

	const period = time.Second / 30
	start := time.Now()
	frames := make([]*spectro.Frame, 0, len(names))
	for _, name := range names {
		img, err := decodeFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		f := FromImage(img)
		if len(frames) > 0 && (f.Width != frames[0].Width || f.Height != frames[0].Height) {
			diagf("%s is %dx%d, first image is %dx%d", name, f.Width, f.Height, frames[0].Width, frames[0].Height)
		}
		f.Start = start.Add(time.Duration(len(frames)) * period)
		f.End = f.Start.Add(period)
		frames = append(frames, f)
	}
	diagf("loaded %d frames from %s", len(frames), dir)
	return l1frames.NewReplaySource("dir:"+filepath.Base(dir), frames, loop), nil
}

func decodeFile(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
