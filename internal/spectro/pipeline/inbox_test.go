package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectrum.report/internal/spectro"
)

func seqFrame(seq uint64) *spectro.Frame { return &spectro.Frame{Seq: seq} }

func popSeqs(q *inbox) []uint64 {
	var out []uint64
	for {
		f, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, f.Seq)
	}
}

func TestInbox_DropsOldest(t *testing.T) {
	t.Parallel()

	q := newInbox(3)
	for i := uint64(1); i <= 5; i++ {
		q.Push(seqFrame(i))
	}
	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []uint64{3, 4, 5}, popSeqs(q))

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestInbox_ReadySignal(t *testing.T) {
	t.Parallel()

	q := newInbox(2)
	select {
	case <-q.Ready():
		t.Fatal("empty inbox must not be ready")
	default:
	}

	q.Push(seqFrame(1))
	q.Push(seqFrame(2))
	<-q.Ready()
	_, ok := q.Pop()
	require.True(t, ok)

	// One frame remains, so Pop re-arms the signal.
	select {
	case <-q.Ready():
	default:
		t.Fatal("inbox with a queued frame must be ready")
	}
}

func TestInbox_ResizeKeepsNewest(t *testing.T) {
	t.Parallel()

	q := newInbox(4)
	for i := uint64(1); i <= 4; i++ {
		q.Push(seqFrame(i))
	}
	q.Resize(2)
	assert.Equal(t, 2, q.Cap())
	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, []uint64{3, 4}, popSeqs(q))

	q.Push(seqFrame(5))
	q.Resize(8)
	q.Push(seqFrame(6))
	assert.Equal(t, []uint64{5, 6}, popSeqs(q))
}

func TestInbox_Drain(t *testing.T) {
	t.Parallel()

	q := newInbox(0)
	assert.Equal(t, 1, q.Cap())
	q.Push(seqFrame(1))
	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Drain())
}
