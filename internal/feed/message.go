package feed

import (
	"encoding/json"
	"time"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// Point is one bin of a feed message.
type Point struct {
	Wavelength float64 `json:"wavelength"`
	Value      float64 `json:"value"`
}

// Message is the wire form of one published spectrum. Start and End bound
// the capture window of the frames that produced it.
type Message struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Seq      uint64    `json:"seq"`
	Mode     string    `json:"mode"`
	Spectrum []Point   `json:"spectrum"`
}

// NewMessage converts s. Bins with no signal are omitted.
func NewMessage(s *spectro.Spectrum) Message {
	m := Message{
		Start:    s.Start,
		End:      s.End,
		Seq:      s.Seq,
		Mode:     s.Mode.String(),
		Spectrum: make([]Point, 0, s.Len()),
	}
	for i, wl := range s.Wavelengths {
		if s.Flags[i].Has(spectro.FlagNoSignal) {
			continue
		}
		m.Spectrum = append(m.Spectrum, Point{Wavelength: wl, Value: s.Intensity[i]})
	}
	return m
}

// Encode renders s as a single JSON line without the trailing newline.
func Encode(s *spectro.Spectrum) ([]byte, error) {
	return json.Marshal(NewMessage(s))
}
