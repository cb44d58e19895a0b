package pipeline

import (
	"fmt"
	"time"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// State is the coordinator lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "running":
		*s = StateRunning
	case "paused":
		*s = StatePaused
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// Snapshot is one published, read-only view of the instrument. Readers must
// not modify it.
type Snapshot struct {
	Seq       uint64 // publication counter, strictly increasing
	State     State
	Source    string
	SessionID string
	Err       error // last device error, cleared on attach
	Published time.Time

	Spectrum *spectro.Spectrum
	Peaks    []spectro.Feature
	Dips     []spectro.Feature

	Reference     string // name of the stored reference, if any
	Calibrated    bool
	ZeroReference bool
}

// Stats are cumulative coordinator counters.
type Stats struct {
	FramesCaptured  uint64        `json:"frames_captured"`
	FramesProcessed uint64        `json:"frames_processed"`
	FramesDropped   uint64        `json:"frames_dropped"`
	FramesPaused    uint64        `json:"frames_dropped_paused"`
	FramesStale     uint64        `json:"frames_stale"`
	FramesInvalid   uint64        `json:"frames_invalid"`
	Published       uint64        `json:"published"`
	LastLatency     time.Duration `json:"last_latency_ns"`
	Queued          int           `json:"queued"`
	QueueDepth      int           `json:"queue_depth"`
}
