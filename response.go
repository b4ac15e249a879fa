package catzilla

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"

	"github.com/catzilla-org/catzilla/arena"
	"github.com/catzilla-org/catzilla/internal/minifier"
	"github.com/catzilla-org/catzilla/internal/render"
	"github.com/catzilla-org/catzilla/stream"
)

// Response is Catzilla's outbound-response view, grounded on
// air/response.go's field shape and Write* method family, generalized with
// a per-request arena.Arena and with its chunked/streaming writes routed
// through the stream package instead of air's ad hoc flush-on-write,
// giving it the backpressure bookkeeping spec.md §4.4 requires.
type Response struct {
	Catzilla *Catzilla

	Status        int
	Header        http.Header
	Body          io.Writer
	ContentLength int64
	Written       bool
	Minified      bool

	req           *Request
	hrw           http.ResponseWriter
	deferredFuncs []func()
	stream        *stream.Context

	arena *arena.Arena
}

func newResponse() *Response {
	return &Response{Header: http.Header{}, ContentLength: -1}
}

func (r *Response) reset() {
	r.Catzilla = nil
	r.Status = http.StatusOK
	r.Header = http.Header{}
	r.Body = nil
	r.ContentLength = -1
	r.Written = false
	r.Minified = false
	r.req = nil
	r.hrw = nil
	r.deferredFuncs = nil
	if r.stream != nil {
		r.stream.Destroy()
		r.stream = nil
	}
	r.arena = nil
}

// Arena returns the RESPONSE-tagged arena backing this response's
// short-lived allocations.
func (r *Response) Arena() *arena.Arena { return r.arena }

// Writer returns the underlying http.ResponseWriter backing this response.
func (r *Response) Writer() http.ResponseWriter { return r.hrw }

// SetWriter replaces the underlying http.ResponseWriter backing this
// response, letting a Gas wrap transport-level behavior (such as gzip
// compression) in front of every subsequent Write.
func (r *Response) SetWriter(w http.ResponseWriter) { r.hrw = w }

// SetCookie adds a Set-Cookie header built from c.
func (r *Response) SetCookie(c *Cookie) {
	if s := c.String(); s != "" {
		r.Header.Add("Set-Cookie", s)
	}
}

// Defer registers f to run after the handler chain completes, in FILO
// order, mirroring air/response.go's Defer.
func (r *Response) Defer(f func()) {
	r.deferredFuncs = append(r.deferredFuncs, f)
}

func (r *Response) runDeferred() {
	for i := len(r.deferredFuncs) - 1; i >= 0; i-- {
		r.deferredFuncs[i]()
	}
}

// writeHeader writes the status line and headers exactly once.
func (r *Response) writeHeader() {
	if r.Written {
		return
	}
	r.Written = true
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			r.hrw.Header().Add(k, v)
		}
	}
	r.hrw.WriteHeader(r.Status)
}

// Write writes content as the full, non-chunked response body, setting
// Content-Length from len(content) unless it is already set.
func (r *Response) Write(content []byte) (int, error) {
	if r.ContentLength < 0 {
		r.ContentLength = int64(len(content))
		r.Header.Set("Content-Length", fmt.Sprintf("%d", r.ContentLength))
	}
	r.writeHeader()
	return r.hrw.Write(content)
}

// WriteString writes s as a "text/plain" response.
func (r *Response) WriteString(s string) error {
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}
	_, err := r.Write([]byte(s))
	return err
}

// WriteHTML writes html as a "text/html" response, minifying it first if
// Minified is set.
func (r *Response) WriteHTML(html string) error {
	r.Header.Set("Content-Type", "text/html; charset=utf-8")
	b := []byte(html)
	if r.Minified {
		mb, err := minifier.Singleton.Minify("text/html", b)
		if err == nil {
			b = mb
		}
	}
	_, err := r.Write(b)
	return err
}

// WriteJSON writes v marshaled as "application/json".
func (r *Response) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return Wrap(InternalError, err, "")
	}
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	_, err = r.Write(b)
	return err
}

// WriteXML writes v marshaled as "application/xml".
func (r *Response) WriteXML(v interface{}) error {
	b, err := xml.Marshal(v)
	if err != nil {
		return Wrap(InternalError, err, "")
	}
	r.Header.Set("Content-Type", "application/xml; charset=utf-8")
	_, err = r.Write(b)
	return err
}

// WriteMsgpack writes v marshaled as "application/msgpack".
func (r *Response) WriteMsgpack(v interface{}) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return Wrap(InternalError, err, "")
	}
	r.Header.Set("Content-Type", "application/msgpack")
	_, err = r.Write(b)
	return err
}

// WriteProtobuf writes m marshaled as "application/protobuf".
func (r *Response) WriteProtobuf(m proto.Message) error {
	b, err := proto.Marshal(m)
	if err != nil {
		return Wrap(InternalError, err, "")
	}
	r.Header.Set("Content-Type", "application/protobuf")
	_, err = r.Write(b)
	return err
}

// WriteYAML writes v marshaled as "application/yaml".
func (r *Response) WriteYAML(v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return Wrap(InternalError, err, "")
	}
	r.Header.Set("Content-Type", "application/yaml")
	_, err = r.Write(b)
	return err
}

// Render renders templateName via the Catzilla instance's Renderer into a
// "text/html" response.
func (r *Response) Render(templateName string, data render.Data) error {
	buf := &bytes.Buffer{}
	if err := r.Catzilla.renderer.Render(buf, templateName, data); err != nil {
		return Wrap(InternalError, err, "")
	}
	return r.WriteHTML(buf.String())
}

// Redirect writes an HTTP redirect to url with the given status code.
func (r *Response) Redirect(url string, status int) error {
	r.Header.Set("Location", url)
	r.Status = status
	_, err := r.Write(nil)
	return err
}

// NoContent writes an empty 204 response.
func (r *Response) NoContent() error {
	r.Status = http.StatusNoContent
	_, err := r.Write(nil)
	return err
}

// Flush flushes any buffered data to the client, if the underlying
// http.ResponseWriter supports it.
func (r *Response) Flush() {
	r.writeHeader()
	if f, ok := r.hrw.(http.Flusher); ok {
		f.Flush()
	}
}

// WebSocket switches the connection backing this response to the WebSocket
// protocol, per RFC 6455, grounded on air/response.go's WebSocket.
func (r *Response) WebSocket() (*WebSocket, error) {
	if r.Written {
		return nil, Wrap(InternalError, errors.New("response already written"), "")
	}

	r.Status = http.StatusSwitchingProtocols

	conn, err := (&websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
		Error: func(_ http.ResponseWriter, _ *http.Request, status int, _ error) {
			r.Status = status
		},
	}).Upgrade(r.hrw, r.req.raw, r.Header)
	if err != nil {
		return nil, Wrap(InternalError, err, "")
	}

	ws := &WebSocket{conn: conn}

	conn.SetCloseHandler(func(status int, reason string) error {
		ws.closed = true
		if ws.ConnectionCloseHandler != nil {
			return ws.ConnectionCloseHandler(status, reason)
		}
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(status, ""), time.Now().Add(time.Second))
		return nil
	})

	conn.SetPingHandler(func(appData string) error {
		if ws.PingHandler != nil {
			return ws.PingHandler(appData)
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Temporary() {
			return nil
		}
		return err
	})

	conn.SetPongHandler(func(appData string) error {
		if ws.PongHandler != nil {
			return ws.PongHandler(appData)
		}
		return nil
	})

	r.Written = true

	return ws, nil
}

// BeginStream switches the response into chunked-transfer streaming mode
// per spec.md §4.4/§6, returning a *stream.Context the handler writes
// chunks to. It writes the response headers (including
// "Transfer-Encoding: chunked") immediately.
func (r *Response) BeginStream(opts ...stream.Option) *stream.Context {
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/octet-stream")
	}
	r.ContentLength = -1
	r.Status = http.StatusOK
	stream.WriteHeaders(r.hrw, r.Status, r.Header)
	r.Written = true
	r.stream = stream.New(stream.NewSink(r.hrw), opts...)
	return r.stream
}
