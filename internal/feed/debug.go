package feed

import (
	"io"

	"github.com/banshee-data/spectrum.report/internal/monitoring"
)

var (
	opsLogger   *monitoring.Stream
	diagLogger  *monitoring.Stream
	traceLogger *monitoring.Stream
)

// SetLogWriters configures the three logging streams for the feed package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = monitoring.NewStream("feed", monitoring.StreamOps, ops)
	diagLogger = monitoring.NewStream("feed", monitoring.StreamDiag, diag)
	traceLogger = monitoring.NewStream("feed", monitoring.StreamTrace, trace)
}

// SetLegacyLogger routes all three streams to a single writer.
func SetLegacyLogger(w io.Writer) {
	SetLogWriters(w, w, w)
}

func opsf(format string, args ...interface{})   { opsLogger.Printf(format, args...) }
func diagf(format string, args ...interface{})  { diagLogger.Printf(format, args...) }
func tracef(format string, args ...interface{}) { traceLogger.Printf(format, args...) }
