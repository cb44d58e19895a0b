package api

import (
	"io"

	"github.com/banshee-data/spectrum.report/internal/monitoring"
)

var (
	opsLogger  *monitoring.Stream
	diagLogger *monitoring.Stream
)

// SetLogWriters configures the api streams. The api has no per-frame work,
// so the trace writer is accepted for symmetry and ignored.
func SetLogWriters(ops, diag, _ io.Writer) {
	opsLogger = monitoring.NewStream("api", monitoring.StreamOps, ops)
	diagLogger = monitoring.NewStream("api", monitoring.StreamDiag, diag)
}

// SetLegacyLogger routes all streams to a single writer.
func SetLegacyLogger(w io.Writer) {
	SetLogWriters(w, w, w)
}

func opsf(format string, args ...interface{})  { opsLogger.Printf(format, args...) }
func diagf(format string, args ...interface{}) { diagLogger.Printf(format, args...) }
