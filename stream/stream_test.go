package stream

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// bufSink is an in-memory Sink for tests; Flush is a no-op.
type bufSink struct {
	bytes.Buffer
}

func (b *bufSink) Flush() {}

func TestChunkFramingRoundTrip(t *testing.T) {
	sink := &bufSink{}
	c := New(sink)

	assert.NoError(t, c.WriteChunk([]byte("Hello, ")))
	assert.NoError(t, c.WriteChunk([]byte("world")))
	assert.NoError(t, c.Finish())

	assert.Equal(t, "7\r\nHello, \r\n5\r\nworld\r\n0\r\n\r\n", sink.String())
}

func TestWriteAfterFinishReturnsErrClosed(t *testing.T) {
	sink := &bufSink{}
	c := New(sink)
	assert.NoError(t, c.Finish())

	err := c.WriteChunk([]byte("late"))
	assert.Equal(t, ErrClosed, err)
}

func TestBackpressureTransitionsToDrainingAndBack(t *testing.T) {
	sink := &bufSink{}
	c := New(sink, WithWatermarks(4, 8))

	var active int32
	c.SetCallbacks(nil, func(a bool) {
		if a {
			atomic.StoreInt32(&active, 1)
		} else {
			atomic.StoreInt32(&active, 0)
		}
	}, nil)

	assert.NoError(t, c.WriteChunk([]byte("123456789"))) // 9 bytes > watermarkHi(8)
	assert.Equal(t, Draining, c.State())
	assert.EqualValues(t, 1, atomic.LoadInt32(&active))

	err := c.WriteChunk([]byte("more"))
	assert.Equal(t, ErrBackpressure, err)

	c.NotifyDrained(6) // 9 - 6 = 3 <= watermarkLo(4)
	assert.Equal(t, Open, c.State())
	assert.EqualValues(t, 0, atomic.LoadInt32(&active))

	assert.NoError(t, c.WriteChunk([]byte("ok")))
}

func TestWaitForDrainUnblocksOnDrain(t *testing.T) {
	sink := &bufSink{}
	c := New(sink, WithWatermarks(0, 4))

	assert.NoError(t, c.WriteChunk([]byte("12345")))
	assert.Equal(t, Draining, c.State())

	done := make(chan bool, 1)
	go func() {
		done <- c.WaitForDrain(time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	c.NotifyDrained(5)

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not unblock after drain")
	}
}

func TestWaitForDrainTimesOut(t *testing.T) {
	sink := &bufSink{}
	c := New(sink, WithWatermarks(0, 1))
	assert.NoError(t, c.WriteChunk([]byte("xx")))
	assert.Equal(t, Draining, c.State())

	ok := c.WaitForDrain(20 * time.Millisecond)
	assert.False(t, ok)
}

func TestFinishOnErrorStateReturnsOriginalError(t *testing.T) {
	sink := &bufSink{}
	c := New(sink)
	c.Destroy()

	err := c.Finish()
	assert.Equal(t, ErrClosed, err)
}

func TestZeroLengthWriteChunkIsNoOp(t *testing.T) {
	sink := &bufSink{}
	c := New(sink)
	assert.NoError(t, c.WriteChunk(nil))
	assert.Equal(t, "", sink.String())
}
