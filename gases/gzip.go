package gases

import (
	"bufio"
	"compress/gzip"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"strings"

	"github.com/catzilla-org/catzilla"
)

// GzipConfig defines the config for the Gzip gas.
type GzipConfig struct {
	// Skipper defines a function to skip the gas.
	Skipper Skipper

	// Level is the gzip compression level.
	// Optional. Default value -1.
	Level int
}

// DefaultGzipConfig is the default Gzip gas config.
var DefaultGzipConfig = GzipConfig{
	Skipper: defaultSkipper,
	Level:   -1,
}

func (c *GzipConfig) fill() {
	if c.Skipper == nil {
		c.Skipper = DefaultGzipConfig.Skipper
	}
	if c.Level == 0 {
		c.Level = DefaultGzipConfig.Level
	}
}

// Gzip returns a gas that compresses the response body using gzip, when the
// request's Accept-Encoding header allows it.
func Gzip() catzilla.Gas {
	return GzipWithConfig(DefaultGzipConfig)
}

// GzipWithConfig returns a Gzip gas from config. See Gzip.
func GzipWithConfig(config GzipConfig) catzilla.Gas {
	config.fill()

	const scheme = "gzip"

	return func(next catzilla.Handler) catzilla.Handler {
		return func(req *catzilla.Request, res *catzilla.Response) error {
			if config.Skipper(req) {
				return next(req, res)
			}

			res.Header.Add("Vary", "Accept-Encoding")
			if !strings.Contains(req.Header("Accept-Encoding"), scheme) {
				return next(req, res)
			}

			rw := res.Writer()
			w, err := gzip.NewWriterLevel(rw, config.Level)
			if err != nil {
				return catzilla.Wrap(catzilla.InternalError, err, "")
			}
			defer func() {
				if !res.Written {
					res.SetWriter(rw)
					res.Header.Del("Content-Encoding")
					w.Reset(ioutil.Discard)
				}
				w.Close()
			}()

			res.Header.Set("Content-Encoding", scheme)
			res.SetWriter(&gzipResponseWriter{Writer: w, ResponseWriter: rw})
			return next(req, res)
		}
	}
}

type gzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (grw *gzipResponseWriter) Write(b []byte) (int, error) {
	if grw.Header().Get("Content-Type") == "" {
		grw.Header().Set("Content-Type", http.DetectContentType(b))
	}
	return grw.Writer.Write(b)
}

func (grw *gzipResponseWriter) Flush() {
	grw.Writer.(*gzip.Writer).Flush()
	if f, ok := grw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (grw *gzipResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return grw.ResponseWriter.(http.Hijacker).Hijack()
}
