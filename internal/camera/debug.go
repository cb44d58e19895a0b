package camera

import (
	"io"

	"github.com/banshee-data/spectrum.report/internal/monitoring"
)

var (
	opsLogger  *monitoring.Stream
	diagLogger *monitoring.Stream
)

// SetLogWriters configures the camera streams. Frame timing is traced by
// the pipeline, so the trace writer is ignored.
func SetLogWriters(ops, diag, _ io.Writer) {
	opsLogger = monitoring.NewStream("camera", monitoring.StreamOps, ops)
	diagLogger = monitoring.NewStream("camera", monitoring.StreamDiag, diag)
}

func opsf(format string, args ...interface{})  { opsLogger.Printf(format, args...) }
func diagf(format string, args ...interface{}) { diagLogger.Printf(format, args...) }
