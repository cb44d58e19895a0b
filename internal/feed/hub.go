// Package feed broadcasts published spectra to streaming clients over TCP,
// server-sent events and gRPC. Encoding happens on the hub goroutine so the
// processing loop never waits on a client.
package feed

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/pipeline"
)

// DefaultClientBuffer is the number of encoded messages queued per client
// before messages to that client are dropped.
const DefaultClientBuffer = 4

// Hub fans encoded spectra out to subscribers. Slow subscribers miss
// messages rather than stall the hub.
type Hub struct {
	in chan *spectro.Spectrum

	mu          sync.Mutex
	subscribers map[string]chan []byte
	closed      bool
	buffer      int

	published atomic.Uint64
	encoded   atomic.Uint64
	dropped   atomic.Uint64
	skipped   atomic.Uint64
}

// NewHub returns a hub; buffer <= 0 uses DefaultClientBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Hub{
		in:          make(chan *spectro.Spectrum, 1),
		subscribers: make(map[string]chan []byte),
		buffer:      buffer,
	}
}

// Hook returns a pipeline publish hook feeding the hub. Snapshots that only
// change state, not the spectrum, are ignored.
func (h *Hub) Hook() pipeline.PublishHook {
	var last *spectro.Spectrum
	return func(snap *pipeline.Snapshot) {
		if snap.Spectrum == nil || snap.Spectrum == last {
			return
		}
		last = snap.Spectrum
		h.Publish(snap.Spectrum)
	}
}

// Publish queues s for broadcast without blocking. If the hub is behind,
// the queued spectrum is replaced.
func (h *Hub) Publish(s *spectro.Spectrum) {
	h.published.Add(1)
	for {
		select {
		case h.in <- s:
			return
		default:
		}
		select {
		case <-h.in:
			h.skipped.Add(1)
		default:
		}
	}
}

// Run encodes and broadcasts queued spectra until ctx is cancelled, then
// closes every subscriber.
func (h *Hub) Run(ctx context.Context) error {
	defer h.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-h.in:
			msg, err := Encode(s)
			if err != nil {
				opsf("encode spectrum %d: %v", s.Seq, err)
				continue
			}
			h.encoded.Add(1)
			h.broadcast(msg)
		}
	}
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			h.dropped.Add(1)
			tracef("client %s slow, dropped message", id)
		}
	}
}

// Subscribe registers a client. The channel is closed by Unsubscribe or
// when the hub shuts down. Received messages are shared between clients and
// are read-only.
func (h *Hub) Subscribe() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subscribers[id] = ch
	diagf("client %s subscribed (total %d)", id, len(h.subscribers))
	return id, ch
}

// Unsubscribe removes a client.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
		diagf("client %s unsubscribed (remaining %d)", id, len(h.subscribers))
	}
}

// Close disconnects every subscriber. Later subscriptions get a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Stats are cumulative hub counters.
type Stats struct {
	Clients   int    `json:"clients"`
	Published uint64 `json:"published"`
	Encoded   uint64 `json:"encoded"`
	Skipped   uint64 `json:"skipped"` // replaced before encoding
	Dropped   uint64 `json:"dropped"` // per-client drops
}

// Stats returns a snapshot of the counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	n := len(h.subscribers)
	h.mu.Unlock()
	return Stats{
		Clients:   n,
		Published: h.published.Load(),
		Encoded:   h.encoded.Load(),
		Skipped:   h.skipped.Load(),
		Dropped:   h.dropped.Load(),
	}
}
