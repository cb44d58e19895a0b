package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l1frames"
	"github.com/banshee-data/spectrum.report/internal/spectro/l2signal"
	"github.com/banshee-data/spectrum.report/internal/spectro/l3wavelength"
	"github.com/banshee-data/spectrum.report/internal/spectro/l5features"
	"github.com/banshee-data/spectrum.report/internal/spectro/pipeline"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/spectrometer.defaults.json"

// maxFileSize caps config files and PUT bodies.
const maxFileSize = 1 * 1024 * 1024

// SpectrometerConfig is the JSON form of the processing configuration. The
// schema matches /api/config so the same document serves for startup and
// runtime updates. Omitted fields fall back to defaults via the Get*
// methods, or keep their current value when merged into a running config.
type SpectrometerConfig struct {
	// Frame extraction
	VerticalWindow *[2]int `json:"vertical_window,omitempty"` // [top, bottom); bottom 0 is the frame height
	Reduce         *string `json:"reduce,omitempty"`          // "mean" or "sum"
	Flip           *bool   `json:"flip,omitempty"`

	// Conditioning. Gain wins over GainPreset when both are set.
	Gain                *[3]float64             `json:"gain,omitempty"`
	GainPreset          *string                 `json:"gain_preset,omitempty"`
	LinearizationCurve  *string                 `json:"linearization_curve,omitempty"`
	LinearizationPoints []l2signal.ControlPoint `json:"linearization_points,omitempty"`

	Filter *FilterConfig `json:"filter,omitempty"`

	// Wavelength calibration
	CalibrationModel  *string              `json:"calibration_model,omitempty"`
	CalibrationPoints []l3wavelength.Point `json:"calibration_points,omitempty"`
	OutputGrid        *spectro.Grid        `json:"output_grid,omitempty"`

	// Features
	PeakProminence     *float64 `json:"peak_prominence,omitempty"`
	PeakUniqueWindowNM *float64 `json:"peak_unique_window_nm,omitempty"`

	ReferenceScale *float64 `json:"reference_scale,omitempty"`
	QueueDepth     *int     `json:"queue_depth,omitempty"`
}

// FilterConfig is the temporal filter block.
type FilterConfig struct {
	Enabled *bool    `json:"enabled,omitempty"`
	Depth   *int     `json:"depth,omitempty"`
	Cutoff  *float64 `json:"cutoff,omitempty"` // fraction of Nyquist
	Order   *int     `json:"order,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a config with every field unset.
func EmptyConfig() *SpectrometerConfig {
	return &SpectrometerConfig{}
}

// DefaultConfig returns a fully populated config holding the built-in
// defaults.
func DefaultConfig() *SpectrometerConfig {
	return FromPipelineConfig(pipeline.DefaultConfig())
}

// LoadConfig loads a config from a JSON file. The file must have a .json
// extension and be under 1 MB. Fields omitted from the file keep their
// defaults, so partial configs are safe.
func LoadConfig(path string) (*SpectrometerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes a JSON document. Unknown fields are rejected so typos do
// not silently fall back to defaults.
func Parse(data []byte) (*SpectrometerConfig, error) {
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("config too large: %d bytes (max %d)", len(data), maxFileSize)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	cfg := EmptyConfig()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching parent
// directories. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *SpectrometerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the configuration by building the pipeline snapshot.
func (c *SpectrometerConfig) Validate() error {
	_, err := c.ToPipelineConfig()
	return err
}

// Merge returns a copy of c with every field set in patch applied on top.
func (c *SpectrometerConfig) Merge(patch *SpectrometerConfig) *SpectrometerConfig {
	out := *c
	if c.Filter != nil {
		f := *c.Filter
		out.Filter = &f
	}
	if patch == nil {
		return &out
	}
	if patch.VerticalWindow != nil {
		out.VerticalWindow = patch.VerticalWindow
	}
	if patch.Reduce != nil {
		out.Reduce = patch.Reduce
	}
	if patch.Flip != nil {
		out.Flip = patch.Flip
	}
	if patch.Gain != nil {
		out.Gain = patch.Gain
		out.GainPreset = nil
	}
	if patch.GainPreset != nil {
		out.GainPreset = patch.GainPreset
		if patch.Gain == nil {
			out.Gain = nil
		}
	}
	if patch.LinearizationCurve != nil {
		out.LinearizationCurve = patch.LinearizationCurve
	}
	if patch.LinearizationPoints != nil {
		out.LinearizationPoints = patch.LinearizationPoints
	}
	if patch.Filter != nil {
		if out.Filter == nil {
			out.Filter = &FilterConfig{}
		}
		if patch.Filter.Enabled != nil {
			out.Filter.Enabled = patch.Filter.Enabled
		}
		if patch.Filter.Depth != nil {
			out.Filter.Depth = patch.Filter.Depth
		}
		if patch.Filter.Cutoff != nil {
			out.Filter.Cutoff = patch.Filter.Cutoff
		}
		if patch.Filter.Order != nil {
			out.Filter.Order = patch.Filter.Order
		}
	}
	if patch.CalibrationModel != nil {
		out.CalibrationModel = patch.CalibrationModel
	}
	if patch.CalibrationPoints != nil {
		out.CalibrationPoints = patch.CalibrationPoints
	}
	if patch.OutputGrid != nil {
		out.OutputGrid = patch.OutputGrid
	}
	if patch.PeakProminence != nil {
		out.PeakProminence = patch.PeakProminence
	}
	if patch.PeakUniqueWindowNM != nil {
		out.PeakUniqueWindowNM = patch.PeakUniqueWindowNM
	}
	if patch.ReferenceScale != nil {
		out.ReferenceScale = patch.ReferenceScale
	}
	if patch.QueueDepth != nil {
		out.QueueDepth = patch.QueueDepth
	}
	return &out
}

// ToPipelineConfig converts to the typed processing snapshot, validating
// every field.
func (c *SpectrometerConfig) ToPipelineConfig() (pipeline.Config, error) {
	reduce, err := l1frames.ParseReduce(c.GetReduce())
	if err != nil {
		return pipeline.Config{}, err
	}
	gain, err := c.GetGain()
	if err != nil {
		return pipeline.Config{}, err
	}
	lin, err := l2signal.NewLinearization(l2signal.Curve(c.GetLinearizationCurve()), c.LinearizationPoints)
	if err != nil {
		return pipeline.Config{}, err
	}
	win := c.GetVerticalWindow()
	cfg := pipeline.Config{
		Extract: l1frames.ExtractParams{
			Window: l1frames.Window{Top: win[0], Bottom: win[1]},
			Reduce: reduce,
			Flip:   c.GetFlip(),
		},
		Condition:         l2signal.ConditionParams{Gain: gain, Linearization: lin},
		Filter:            c.GetFilter(),
		CalibrationModel:  l3wavelength.Model(c.GetCalibrationModel()),
		CalibrationPoints: c.GetCalibrationPoints(),
		Grid:              c.GetOutputGrid(),
		Features: l5features.Params{
			Prominence:     c.GetPeakProminence(),
			UniqueWindowNM: c.GetPeakUniqueWindowNM(),
		},
		ReferenceScale: c.GetReferenceScale(),
		QueueDepth:     c.GetQueueDepth(),
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return cfg, nil
}

// FromPipelineConfig renders a pipeline snapshot as a fully populated
// config.
func FromPipelineConfig(p pipeline.Config) *SpectrometerConfig {
	gain := [3]float64(p.Condition.Gain)
	grid := p.Grid
	c := &SpectrometerConfig{
		VerticalWindow:     &[2]int{p.Extract.Window.Top, p.Extract.Window.Bottom},
		Reduce:             ptrString(p.Extract.Reduce.String()),
		Flip:               ptrBool(p.Extract.Flip),
		Gain:               &gain,
		LinearizationCurve: ptrString(string(p.Condition.Linearization.Curve())),
		Filter: &FilterConfig{
			Enabled: ptrBool(p.Filter.Enabled),
			Depth:   ptrInt(p.Filter.Depth),
			Cutoff:  ptrFloat64(p.Filter.Cutoff),
			Order:   ptrInt(p.Filter.Order),
		},
		CalibrationModel:   ptrString(string(p.CalibrationModel)),
		CalibrationPoints:  append([]l3wavelength.Point(nil), p.CalibrationPoints...),
		OutputGrid:         &grid,
		PeakProminence:     ptrFloat64(p.Features.Prominence),
		PeakUniqueWindowNM: ptrFloat64(p.Features.UniqueWindowNM),
		ReferenceScale:     ptrFloat64(p.ReferenceScale),
		QueueDepth:         ptrInt(p.QueueDepth),
	}
	if pts := p.Condition.Linearization.Points(); len(pts) > 0 {
		c.LinearizationPoints = pts
	}
	return c
}

var defaults = pipeline.DefaultConfig()

// GetVerticalWindow returns [top, bottom) or the full frame.
func (c *SpectrometerConfig) GetVerticalWindow() [2]int {
	if c.VerticalWindow == nil {
		return [2]int{defaults.Extract.Window.Top, defaults.Extract.Window.Bottom}
	}
	return *c.VerticalWindow
}

// GetReduce returns the reduce mode or "mean".
func (c *SpectrometerConfig) GetReduce() string {
	if c.Reduce == nil {
		return defaults.Extract.Reduce.String()
	}
	return *c.Reduce
}

// GetFlip returns the flip value or the default.
func (c *SpectrometerConfig) GetFlip() bool {
	if c.Flip == nil {
		return defaults.Extract.Flip
	}
	return *c.Flip
}

// GetGain returns the explicit gain, the named preset, or unity.
func (c *SpectrometerConfig) GetGain() (l2signal.Gain, error) {
	if c.Gain != nil {
		return l2signal.Gain(*c.Gain), nil
	}
	if c.GainPreset != nil {
		return l2signal.GainPreset(*c.GainPreset)
	}
	return defaults.Condition.Gain, nil
}

// GetLinearizationCurve returns the curve name or "off".
func (c *SpectrometerConfig) GetLinearizationCurve() string {
	if c.LinearizationCurve == nil {
		return string(l2signal.CurveOff)
	}
	return *c.LinearizationCurve
}

// GetFilter returns the filter parameters, filling unset fields with
// defaults.
func (c *SpectrometerConfig) GetFilter() l2signal.FilterParams {
	p := defaults.Filter
	if c.Filter == nil {
		return p
	}
	if c.Filter.Enabled != nil {
		p.Enabled = *c.Filter.Enabled
	}
	if c.Filter.Depth != nil {
		p.Depth = *c.Filter.Depth
	}
	if c.Filter.Cutoff != nil {
		p.Cutoff = *c.Filter.Cutoff
	}
	if c.Filter.Order != nil {
		p.Order = *c.Filter.Order
	}
	return p
}

// GetCalibrationModel returns the model name or "piecewise".
func (c *SpectrometerConfig) GetCalibrationModel() string {
	if c.CalibrationModel == nil {
		return string(defaults.CalibrationModel)
	}
	return *c.CalibrationModel
}

// GetCalibrationPoints returns the calibration points or the two-point
// mercury default.
func (c *SpectrometerConfig) GetCalibrationPoints() []l3wavelength.Point {
	if c.CalibrationPoints == nil {
		return append([]l3wavelength.Point(nil), defaults.CalibrationPoints...)
	}
	return append([]l3wavelength.Point(nil), c.CalibrationPoints...)
}

// GetOutputGrid returns the output grid or 380-750 nm in 1 nm steps.
func (c *SpectrometerConfig) GetOutputGrid() spectro.Grid {
	if c.OutputGrid == nil {
		return defaults.Grid
	}
	return *c.OutputGrid
}

// GetPeakProminence returns the peak_prominence value or the default.
func (c *SpectrometerConfig) GetPeakProminence() float64 {
	if c.PeakProminence == nil {
		return defaults.Features.Prominence
	}
	return *c.PeakProminence
}

// GetPeakUniqueWindowNM returns the peak_unique_window_nm value or 0.
func (c *SpectrometerConfig) GetPeakUniqueWindowNM() float64 {
	if c.PeakUniqueWindowNM == nil {
		return defaults.Features.UniqueWindowNM
	}
	return *c.PeakUniqueWindowNM
}

// GetReferenceScale returns the reference_scale value or 1.
func (c *SpectrometerConfig) GetReferenceScale() float64 {
	if c.ReferenceScale == nil {
		return defaults.ReferenceScale
	}
	return *c.ReferenceScale
}

// GetQueueDepth returns the queue_depth value or the default.
func (c *SpectrometerConfig) GetQueueDepth() int {
	if c.QueueDepth == nil {
		return defaults.QueueDepth
	}
	return *c.QueueDepth
}
