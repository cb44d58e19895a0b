package pipeline

import (
	"math"

	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l1frames"
	"github.com/banshee-data/spectrum.report/internal/spectro/l2signal"
	"github.com/banshee-data/spectrum.report/internal/spectro/l3wavelength"
	"github.com/banshee-data/spectrum.report/internal/spectro/l5features"
)

// Queue depth limits.
const (
	DefaultQueueDepth = 2
	MaxQueueDepth     = 64
)

// Config is an immutable processing snapshot. Values are copied in; callers
// must not mutate slices after handing a Config to the Coordinator.
type Config struct {
	Extract           l1frames.ExtractParams
	Condition         l2signal.ConditionParams
	Filter            l2signal.FilterParams
	CalibrationModel  l3wavelength.Model
	CalibrationPoints []l3wavelength.Point
	Grid              spectro.Grid
	Features          l5features.Params
	ReferenceScale    float64
	QueueDepth        int
}

// DefaultConfig is a full-frame, unity-gain configuration on the visible
// 380-750 nm grid with the two-point mercury calibration.
func DefaultConfig() Config {
	return Config{
		Extract:           l1frames.ExtractParams{Reduce: l1frames.ReduceMean},
		Condition:         l2signal.ConditionParams{Gain: l2signal.UnityGain},
		Filter:            l2signal.DefaultFilterParams(),
		CalibrationModel:  l3wavelength.ModelPiecewise,
		CalibrationPoints: append([]l3wavelength.Point(nil), l3wavelength.DefaultPoints...),
		Grid:              spectro.Grid{StartNM: 380, EndNM: 750, StepNM: 1},
		Features:          l5features.Params{Prominence: 0.05},
		ReferenceScale:    1,
		QueueDepth:        DefaultQueueDepth,
	}
}

// compiled is a validated Config plus the objects derived from it.
type compiled struct {
	cfg    Config
	cal    *l3wavelength.CalibrationMap
	mapper *l3wavelength.Mapper
}

// Validate checks every field without changing any state.
func (c Config) Validate() error {
	_, err := compile(c)
	return err
}

func compile(c Config) (*compiled, error) {
	w := c.Extract.Window
	if w.Top < 0 || w.Bottom < 0 {
		return nil, spectro.Invalidf("vertical_window", "rows must be non-negative, got [%d, %d)", w.Top, w.Bottom)
	}
	if w.Bottom > 0 && w.Bottom <= w.Top {
		return nil, spectro.Invalidf("vertical_window", "bottom (%d) must exceed top (%d)", w.Bottom, w.Top)
	}
	if c.Extract.Reduce != l1frames.ReduceMean && c.Extract.Reduce != l1frames.ReduceSum {
		return nil, spectro.Invalidf("reduce", "unknown mode %d", c.Extract.Reduce)
	}
	if err := c.Condition.Gain.Validate(); err != nil {
		return nil, err
	}
	if err := c.Filter.Validate(); err != nil {
		return nil, err
	}
	if err := c.Features.Validate(); err != nil {
		return nil, err
	}
	if !(c.ReferenceScale > 0) || math.IsInf(c.ReferenceScale, 0) {
		return nil, spectro.Invalidf("reference_scale", "must be positive and finite, got %g", c.ReferenceScale)
	}
	if c.QueueDepth < 1 || c.QueueDepth > MaxQueueDepth {
		return nil, spectro.Invalidf("queue_depth", "must be in [1, %d], got %d", MaxQueueDepth, c.QueueDepth)
	}
	cal, err := l3wavelength.NewCalibrationMap(c.CalibrationPoints, c.CalibrationModel)
	if err != nil {
		return nil, err
	}
	mapper, err := l3wavelength.NewMapper(cal, c.Grid)
	if err != nil {
		return nil, err
	}
	c.CalibrationPoints = cal.Points()
	c.CalibrationModel = cal.Model()
	return &compiled{cfg: c, cal: cal, mapper: mapper}, nil
}
