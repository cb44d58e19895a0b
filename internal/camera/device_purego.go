//go:build purego

package camera

import (
	"context"
	"errors"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// ErrNoCamera is returned by Open in builds without OpenCV.
var ErrNoCamera = errors.New("camera capture needs a build with OpenCV (built with -tags purego)")

// Device is unavailable in purego builds.
type Device struct{}

// Open always fails in purego builds; use OpenDir or the synthetic source.
func Open(Options) (*Device, error) { return nil, ErrNoCamera }

func (*Device) Name() string { return "camera" }

func (*Device) Next(context.Context) (*spectro.Frame, error) { return nil, ErrNoCamera }

func (*Device) Close() error { return nil }
