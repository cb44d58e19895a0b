package pipeline

import (
	"io"

	"github.com/banshee-data/spectrum.report/internal/monitoring"
)

var (
	opsLogger   *monitoring.Stream
	diagLogger  *monitoring.Stream
	traceLogger *monitoring.Stream
)

// SetLogWriters configures the three logging streams for the pipeline package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = monitoring.NewStream("pipeline", monitoring.StreamOps, ops)
	diagLogger = monitoring.NewStream("pipeline", monitoring.StreamDiag, diag)
	traceLogger = monitoring.NewStream("pipeline", monitoring.StreamTrace, trace)
}

// SetLegacyLogger routes all three streams to a single writer.
// Pass nil to disable all logging.
func SetLegacyLogger(w io.Writer) {
	SetLogWriters(w, w, w)
}

// opsf logs to the ops stream (device failures, dropped frames).
func opsf(format string, args ...interface{}) { opsLogger.Printf(format, args...) }

// diagf logs to the diag stream (state changes, config swaps, periodic stats).
func diagf(format string, args ...interface{}) { diagLogger.Printf(format, args...) }

// tracef logs to the trace stream (per-frame timing).
func tracef(format string, args ...interface{}) { traceLogger.Printf(format, args...) }
