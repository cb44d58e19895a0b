package l1frames

import (
	"context"
	"io"
	"sync"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// FrameSource yields frames from a capture device. Next blocks until a frame
// is ready. It returns io.EOF when a finite source is exhausted; any other
// error is a device failure.
type FrameSource interface {
	Next(ctx context.Context) (*spectro.Frame, error)
	Close() error
	Name() string
}

// ReplaySource yields a fixed list of frames, optionally looping.
type ReplaySource struct {
	name   string
	frames []*spectro.Frame
	loop   bool

	mu     sync.Mutex
	pos    int
	closed bool
}

// NewReplaySource returns a source over frames. Frames are copied on every
// Next so callers may mutate them.
func NewReplaySource(name string, frames []*spectro.Frame, loop bool) *ReplaySource {
	return &ReplaySource{name: name, frames: frames, loop: loop}
}

func (s *ReplaySource) Name() string { return s.name }

func (s *ReplaySource) Next(ctx context.Context) (*spectro.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, io.ErrClosedPipe
	}
	if s.pos >= len(s.frames) {
		if !s.loop || len(s.frames) == 0 {
			return nil, io.EOF
		}
		s.pos = 0
	}
	src := s.frames[s.pos]
	s.pos++
	f := *src
	f.Pix = append([]uint8(nil), src.Pix...)
	return &f, nil
}

func (s *ReplaySource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
