// Package stream implements Catzilla's chunked streaming response context:
// a per-connection write path with HTTP/1.1 chunked framing and cooperative
// backpressure, generalized from air/response.go's chunked-writing branch
// (Response.Write over an http.Flusher) with an explicit high/low watermark
// drain signal in the shape of etalazz-vsa's Worker
// (commitThreshold/lowCommitThreshold hysteresis over a sync.Cond instead of
// a ticker).
package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// State is a StreamContext's lifecycle state.
type State uint8

const (
	// Open accepts writes normally.
	Open State = iota
	// Draining means outstanding bytes exceeded WatermarkHigh; writes
	// are rejected with ErrBackpressure until the sink reports enough
	// has drained to fall back below WatermarkLow.
	Draining
	// Finished is terminal: the zero-length chunk has been emitted.
	Finished
	// Error is terminal: a write failed and the connection is being
	// torn down.
	Error
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Draining:
		return "draining"
	case Finished:
		return "finished"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ErrBackpressure is returned by Write when the stream is Draining.
var ErrBackpressure = errors.New("stream: backpressure active, write rejected")

// ErrClosed is returned by Write/Finish once the stream has reached a
// terminal state (Finished or Error).
var ErrClosed = errors.New("stream: stream is finished or in error state")

// Sink is the underlying byte destination a Context frames chunks onto. In
// production this is the HTTP response writer for the connection;
// *httptest.ResponseRecorder and any io.Writer satisfy it for tests as long
// as a Flush method is present (http.ResponseWriter always provides one
// behind http.Flusher, wrapped here so Context itself doesn't need to type
// assert on every write).
type Sink interface {
	io.Writer
	Flush()
}

// flusherSink adapts an io.Writer that may or may not implement
// http.Flusher, matching air's pattern of probing hrw for optional
// interfaces instead of requiring callers to wrap everything themselves.
type flusherSink struct {
	w io.Writer
}

func (f flusherSink) Write(p []byte) (int, error) { return f.w.Write(p) }

func (f flusherSink) Flush() {
	if fl, ok := f.w.(http.Flusher); ok {
		fl.Flush()
	}
}

// NewSink wraps an arbitrary io.Writer as a Sink, using its http.Flusher
// implementation if it has one.
func NewSink(w io.Writer) Sink { return flusherSink{w: w} }

// Context is a single streaming response's write-side state machine.
// Context is not safe for concurrent calls to Write from multiple
// goroutines; WaitForDrain may be called concurrently with Write from a
// single producer/consumer pair the way a handler and its backpressure
// callback would.
type Context struct {
	mu    sync.Mutex
	cond  *sync.Cond
	sink  Sink
	state State

	pendingBytes int64
	watermarkHi  int64
	watermarkLo  int64

	onChunk        func(n int)
	onBackpressure func(active bool)
	userCtx        interface{}

	wroteHeader bool
	err         error
}

// Option configures a new Context.
type Option func(*Context)

// WithWatermarks sets the high/low backpressure watermarks, in pending
// bytes. high must be >= low; both default to 0 (no backpressure) if unset.
func WithWatermarks(low, high int64) Option {
	return func(c *Context) {
		c.watermarkLo = low
		c.watermarkHi = high
	}
}

// New returns a new Context writing chunks to sink.
func New(sink Sink, opts ...Option) *Context {
	c := &Context{sink: sink, state: Open}
	c.cond = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCallbacks installs the on-chunk and on-backpressure callbacks plus an
// opaque user context passed back to the handler runtime unchanged. Either
// callback may be nil.
func (c *Context) SetCallbacks(onChunk func(n int), onBackpressure func(active bool), userCtx interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChunk = onChunk
	c.onBackpressure = onBackpressure
	c.userCtx = userCtx
}

// UserContext returns the opaque value passed to SetCallbacks.
func (c *Context) UserContext() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userCtx
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WriteChunk frames b as one chunked-encoding chunk ("hexlen CRLF data
// CRLF") and writes it to the sink, in write-call order, returning
// ErrBackpressure if the stream is currently Draining and ErrClosed if it
// has reached a terminal state. A zero-length b is a no-op — the
// terminating chunk is only ever emitted by Finish.
func (c *Context) WriteChunk(b []byte) error {
	c.mu.Lock()

	switch c.state {
	case Finished, Error:
		c.mu.Unlock()
		return ErrClosed
	case Draining:
		c.mu.Unlock()
		return ErrBackpressure
	}

	if len(b) == 0 {
		c.mu.Unlock()
		return nil
	}

	if err := c.writeFrame(b); err != nil {
		c.state = Error
		c.err = err
		c.cond.Broadcast()
		c.mu.Unlock()
		return err
	}

	c.pendingBytes += int64(len(b))
	if c.onChunk != nil {
		onChunk := c.onChunk
		n := len(b)
		c.mu.Unlock()
		onChunk(n)
		c.mu.Lock()
	}

	if c.watermarkHi > 0 && c.pendingBytes > c.watermarkHi && c.state == Open {
		c.state = Draining
		cb := c.onBackpressure
		c.mu.Unlock()
		if cb != nil {
			cb(true)
		}
		return nil
	}

	c.mu.Unlock()
	return nil
}

// writeFrame writes one chunked-encoding frame and flushes it. Caller must
// hold c.mu.
func (c *Context) writeFrame(b []byte) error {
	if _, err := fmt.Fprintf(c.sink, "%x\r\n", len(b)); err != nil {
		return err
	}
	if _, err := c.sink.Write(b); err != nil {
		return err
	}
	if _, err := io.WriteString(c.sink, "\r\n"); err != nil {
		return err
	}
	c.sink.Flush()
	return nil
}

// NotifyDrained reports that the underlying connection has drained n bytes
// from its send buffer. Once pending bytes falls back to or below
// WatermarkLow, a Draining stream returns to Open, backpressure_active
// clears, on_backpressure(false) fires, and any WaitForDrain callers wake.
func (c *Context) NotifyDrained(n int64) {
	c.mu.Lock()
	if n > 0 {
		c.pendingBytes -= n
		if c.pendingBytes < 0 {
			c.pendingBytes = 0
		}
	}

	if c.state == Draining && c.pendingBytes <= c.watermarkLo {
		c.state = Open
		cb := c.onBackpressure
		c.cond.Broadcast()
		c.mu.Unlock()
		if cb != nil {
			cb(false)
		}
		return
	}
	c.mu.Unlock()
}

// WaitForDrain blocks until backpressure clears (state leaves Draining) or
// timeout elapses, whichever comes first. A non-positive timeout blocks
// indefinitely. Returns false on timeout, true once drained (or if the
// stream was never Draining to begin with, or has reached a terminal
// state).
func (c *Context) WaitForDrain(timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Draining {
		return true
	}

	if timeout <= 0 {
		for c.state == Draining {
			c.cond.Wait()
		}
		return true
	}

	done := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		c.mu.Lock()
		close(done)
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer timer.Stop()

	for c.state == Draining {
		select {
		case <-done:
			return false
		default:
		}
		c.cond.Wait()
	}
	return true
}

// Finish flushes any pending chunk (there is none buffered by this
// implementation — every WriteChunk call is flushed immediately — so this
// only emits the terminating zero-length chunk) and transitions the stream
// to Finished. Finish on an already-terminal stream is a no-op returning
// the original error, if any.
func (c *Context) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Finished:
		return nil
	case Error:
		return c.err
	}

	if _, err := io.WriteString(c.sink, "0\r\n\r\n"); err != nil {
		c.state = Error
		c.err = err
		c.cond.Broadcast()
		return err
	}
	c.sink.Flush()

	c.state = Finished
	c.cond.Broadcast()
	return nil
}

// Destroy releases the Context. Any goroutine blocked in WaitForDrain is
// woken. It is safe to call Destroy more than once.
func (c *Context) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Finished && c.state != Error {
		c.state = Error
		if c.err == nil {
			c.err = ErrClosed
		}
	}
	c.cond.Broadcast()
}

// PendingBytes returns the current outstanding byte count used for
// watermark comparisons.
func (c *Context) PendingBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingBytes
}

// WriteHeaders writes the response status line and header block for a
// streaming response, setting Transfer-Encoding: chunked. It does not set
// or touch Connection at all: HTTP/1.1's keep-alive default already
// applies, and whatever the caller put in header (including any
// Connection value, under any letter casing http.Header canonicalizes to)
// is copied through unmodified.
func WriteHeaders(w http.ResponseWriter, status int, header http.Header) {
	h := w.Header()
	for k, vs := range header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	h.Set("Transfer-Encoding", "chunked")
	h.Del("Content-Length")
	w.WriteHeader(status)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
