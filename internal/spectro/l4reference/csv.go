package l4reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// ReadReferenceCSV parses a wavelength,value table. A leading header row,
// blank lines and '#' comments are allowed; extra columns are ignored.
func ReadReferenceCSV(r io.Reader, name string) (*spectro.ReferenceSpectrum, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var wl, val []float64
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read reference csv: %w", err)
		}
		line++
		if len(rec) < 2 {
			return nil, fmt.Errorf("reference csv row %d: want 2 columns, got %d", line, len(rec))
		}
		w, errW := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		v, errV := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if errW != nil || errV != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("reference csv row %d: not numeric: %q", line, rec[:2])
		}
		wl = append(wl, w)
		val = append(val, v)
	}
	return spectro.NewReferenceSpectrum(name, wl, val)
}

// WriteReferenceCSV writes a reference as wavelength,value rows.
func WriteReferenceCSV(w io.Writer, ref *spectro.ReferenceSpectrum) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"wavelength", "value"}); err != nil {
		return err
	}
	for i := range ref.Wavelengths {
		if err := cw.Write([]string{formatFloat(ref.Wavelengths[i]), formatFloat(ref.Intensity[i])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSpectrumCSV exports a spectrum in wavelength order. The second column
// is named after the spectrum mode (intensity or absorbance).
func WriteSpectrumCSV(w io.Writer, s *spectro.Spectrum) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"wavelength", s.Mode.String(), "r", "g", "b", "flags"}); err != nil {
		return err
	}
	for i := range s.Wavelengths {
		row := []string{
			formatFloat(s.Wavelengths[i]),
			formatFloat(s.Intensity[i]),
			formatFloat(s.Channels[spectro.ChannelR][i]),
			formatFloat(s.Channels[spectro.ChannelG][i]),
			formatFloat(s.Channels[spectro.ChannelB][i]),
			strconv.Itoa(int(s.Flags[i])),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SpectrumAsReference turns a captured spectrum into a reference table,
// skipping bins without signal.
func SpectrumAsReference(name string, s *spectro.Spectrum) (*spectro.ReferenceSpectrum, error) {
	var wl, val []float64
	for i := range s.Wavelengths {
		if s.Flags[i].Has(spectro.FlagNoSignal) {
			continue
		}
		wl = append(wl, s.Wavelengths[i])
		val = append(val, s.Intensity[i])
	}
	return spectro.NewReferenceSpectrum(name, wl, val)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
