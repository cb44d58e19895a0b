//go:build !purego

package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// Device reads RGB frames from a webcam through OpenCV.
type Device struct {
	name string

	// mu keeps Close from releasing the capture mid-read.
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	bgr    gocv.Mat
	rgb    gocv.Mat
	closed bool
}

// Open starts capture on the given device.
func Open(o Options) (*Device, error) {
	vc, err := gocv.OpenVideoCapture(o.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", o.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %d: device not available", o.Device)
	}
	if o.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(o.Width))
	}
	if o.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(o.Height))
	}
	if o.FrameRate > 0 {
		vc.Set(gocv.VideoCaptureFPS, o.FrameRate)
	}
	d := &Device{
		name: fmt.Sprintf("camera:%d", o.Device),
		cap:  vc,
		bgr:  gocv.NewMat(),
		rgb:  gocv.NewMat(),
	}
	diagf("opened %s at %.0fx%.0f %.0f fps", d.name,
		vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight), vc.Get(gocv.VideoCaptureFPS))
	return d, nil
}

func (d *Device) Name() string { return d.name }

// Next blocks until the driver delivers a frame.
func (d *Device) Next(ctx context.Context) (*spectro.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, io.ErrClosedPipe
	}

	start := time.Now()
	if ok := d.cap.Read(&d.bgr); !ok {
		return nil, errors.New("camera read failed")
	}
	end := time.Now()
	if d.bgr.Empty() {
		return nil, errors.New("camera returned an empty frame")
	}
	if ch := d.bgr.Channels(); ch != 3 {
		return nil, fmt.Errorf("camera returned %d channels, want 3", ch)
	}
	gocv.CvtColor(d.bgr, &d.rgb, gocv.ColorBGRToRGB)

	f := &spectro.Frame{
		Width:  d.rgb.Cols(),
		Height: d.rgb.Rows(),
		Pix:    d.rgb.ToBytes(),
		Start:  start,
		End:    end,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Close releases the device. It is safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.bgr.Close()
	d.rgb.Close()
	if err := d.cap.Close(); err != nil {
		opsf("close %s: %v", d.name, err)
		return err
	}
	return nil
}
