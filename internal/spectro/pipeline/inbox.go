package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

// inbox is the bounded hand-off from capture to processing. Push never
// blocks: when the queue is full the oldest frame is discarded. Ready is
// signalled whenever frames are waiting.
type inbox struct {
	mu    sync.Mutex
	buf   []*spectro.Frame
	head  int
	count int

	ready   chan struct{}
	dropped atomic.Uint64
}

func newInbox(depth int) *inbox {
	if depth < 1 {
		depth = 1
	}
	return &inbox{buf: make([]*spectro.Frame, depth), ready: make(chan struct{}, 1)}
}

func (q *inbox) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready fires when at least one frame may be waiting.
func (q *inbox) Ready() <-chan struct{} { return q.ready }

// Push appends f, overwriting the oldest frame if full. It reports whether
// a frame was dropped.
func (q *inbox) Push(f *spectro.Frame) bool {
	q.mu.Lock()
	dropped := false
	if q.count == len(q.buf) {
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		dropped = true
	}
	q.buf[(q.head+q.count)%len(q.buf)] = f
	q.count++
	q.mu.Unlock()

	if dropped {
		q.dropped.Add(1)
	}
	q.signal()
	return dropped
}

// Pop removes the oldest frame.
func (q *inbox) Pop() (*spectro.Frame, bool) {
	q.mu.Lock()
	if q.count == 0 {
		q.mu.Unlock()
		return nil, false
	}
	f := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	more := q.count > 0
	q.mu.Unlock()

	if more {
		q.signal()
	}
	return f, true
}

// Drain discards everything queued and returns how many frames were removed.
func (q *inbox) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.count
	for i := range q.buf {
		q.buf[i] = nil
	}
	q.head, q.count = 0, 0
	return n
}

// Resize changes the capacity, keeping the newest frames.
func (q *inbox) Resize(depth int) {
	if depth < 1 {
		depth = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if depth == len(q.buf) {
		return
	}
	keep := q.count
	if keep > depth {
		q.dropped.Add(uint64(keep - depth))
		keep = depth
	}
	buf := make([]*spectro.Frame, depth)
	skip := q.count - keep
	for i := 0; i < keep; i++ {
		buf[i] = q.buf[(q.head+skip+i)%len(q.buf)]
	}
	q.buf, q.head, q.count = buf, 0, keep
}

// Len is the number of queued frames.
func (q *inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap is the queue capacity.
func (q *inbox) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Dropped is the number of frames discarded because the queue was full.
func (q *inbox) Dropped() uint64 { return q.dropped.Load() }
