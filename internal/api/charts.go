package api

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/spectrum.report/internal/httputil"
	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// PNG plot size.
const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 4 * vg.Inch
)

type series struct {
	name   string
	values []float64
	color  color.RGBA
}

// seriesOf lists the combined curve first, then the channels.
func seriesOf(s *spectro.Spectrum) []series {
	return []series{
		{name: s.Mode.String(), values: s.Intensity, color: color.RGBA{A: 255}},
		{name: "r", values: s.Channels[spectro.ChannelR], color: color.RGBA{R: 220, A: 255}},
		{name: "g", values: s.Channels[spectro.ChannelG], color: color.RGBA{G: 160, A: 255}},
		{name: "b", values: s.Channels[spectro.ChannelB], color: color.RGBA{B: 220, A: 255}},
	}
}

// handleSpectrumPNG renders the latest spectrum with gonum/plot.
func (s *Server) handleSpectrumPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap, ok := s.latestSpectrum(w)
	if !ok {
		return
	}
	spec := snap.Spectrum

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Spectrum frame %d (%s)", spec.Seq, spec.Mode)
	p.X.Label.Text = "Wavelength (nm)"
	p.Y.Label.Text = spec.Mode.String()
	p.Add(plotter.NewGrid())

	for _, sr := range seriesOf(spec) {
		pts := make(plotter.XYs, 0, spec.Len())
		for i, wl := range spec.Wavelengths {
			if spec.Flags[i].Has(spectro.FlagNoSignal) {
				continue
			}
			pts = append(pts, plotter.XY{X: wl, Y: sr.values[i]})
		}
		if len(pts) < 2 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			writeError(w, fmt.Errorf("plot %s: %w", sr.name, err))
			return
		}
		line.Color = sr.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(sr.name, line)
	}

	if len(snap.Peaks) > 0 {
		pts := make(plotter.XYs, len(snap.Peaks))
		for i, f := range snap.Peaks {
			pts[i] = plotter.XY{X: f.Wavelength, Y: f.Intensity}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			writeError(w, fmt.Errorf("plot peaks: %w", err))
			return
		}
		sc.GlyphStyle.Color = color.RGBA{R: 255, G: 140, A: 255}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("peaks", sc)
	}

	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		writeError(w, fmt.Errorf("render plot: %w", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		writeError(w, fmt.Errorf("render plot: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// handleSpectrumChart renders the latest spectrum as an interactive
// go-echarts page, with peaks and dips overlaid.
func (s *Server) handleSpectrumChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap, ok := s.latestSpectrum(w)
	if !ok {
		return
	}
	spec := snap.Spectrum

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Spectrum", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Live Spectrum",
			Subtitle: fmt.Sprintf("frame=%d mode=%s peaks=%d dips=%d", spec.Seq, spec.Mode, len(snap.Peaks), len(snap.Dips)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "value", Name: "Wavelength (nm)", NameLocation: "middle", NameGap: 25,
			Min: spec.Wavelengths[0], Max: spec.Wavelengths[spec.Len()-1],
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: spec.Mode.String()}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
	)

	for _, sr := range seriesOf(spec) {
		data := make([]opts.LineData, 0, spec.Len())
		for i, wl := range spec.Wavelengths {
			if spec.Flags[i].Has(spectro.FlagNoSignal) {
				continue
			}
			data = append(data, opts.LineData{Value: []interface{}{wl, sr.values[i]}})
		}
		line.AddSeries(sr.name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	features := charts.NewScatter()
	features.AddSeries("peaks", featureData(snap.Peaks), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	features.AddSeries("dips", featureData(snap.Dips), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	line.Overlap(features)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func featureData(fs []spectro.Feature) []opts.ScatterData {
	data := make([]opts.ScatterData, len(fs))
	for i, f := range fs {
		data[i] = opts.ScatterData{
			Name:  fmt.Sprintf("%.1f nm", f.Wavelength),
			Value: []interface{}{f.Wavelength, f.Intensity},
		}
	}
	return data
}
