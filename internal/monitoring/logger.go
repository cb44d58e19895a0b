// Package monitoring builds the log streams used by the spectrometer
// daemon and its processing packages.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logf is the process-level printf logger. It defaults to log.Printf and is
// swapped by SetLogger in tests or when the daemon runs quietly.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Stream levels. Ops carries data loss and failures, diag carries routine
// diagnostics and trace carries per-frame telemetry.
const (
	StreamOps   = "ops"
	StreamDiag  = "diag"
	StreamTrace = "trace"
)

func streamLevel(stream string) zerolog.Level {
	switch stream {
	case StreamOps:
		return zerolog.WarnLevel
	case StreamTrace:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Stream is a printf-style view over a zerolog logger. A nil *Stream
// discards everything, so package loggers can be left unset.
type Stream struct {
	zl    zerolog.Logger
	level zerolog.Level
}

// NewStream returns a stream tagged with component and stream name, or nil
// when w is nil.
func NewStream(component, stream string, w io.Writer) *Stream {
	if w == nil {
		return nil
	}
	zl := zerolog.New(w).With().
		Timestamp().
		Str("component", component).
		Str("stream", stream).
		Logger()
	return &Stream{zl: zl, level: streamLevel(stream)}
}

// Printf formats and writes one event.
func (s *Stream) Printf(format string, args ...interface{}) {
	if s == nil {
		return
	}
	s.zl.WithLevel(s.level).Msg(fmt.Sprintf(format, args...))
}

// Event starts a structured event at the stream's level. It returns nil for a
// nil stream; zerolog treats a nil *Event as disabled.
func (s *Stream) Event() *zerolog.Event {
	if s == nil {
		return nil
	}
	return s.zl.WithLevel(s.level)
}

// ConsoleWriter returns a human-readable writer for interactive use.
func ConsoleWriter(out io.Writer) io.Writer {
	if out == nil {
		out = os.Stderr
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
}
