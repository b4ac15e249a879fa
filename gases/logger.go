package gases

import (
	"bytes"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/catzilla-org/catzilla"
)

// LoggerConfig defines the config for the request-logging gas.
type LoggerConfig struct {
	// Format is the log line template, built from the following tags:
	//
	// - time_rfc3339
	// - remote_ip
	// - uri
	// - host
	// - method
	// - path
	// - referer
	// - user_agent
	// - status
	// - latency (in microseconds)
	// - latency_human
	// - rx_bytes (bytes received)
	// - tx_bytes (bytes sent)
	//
	// Example "${remote_ip} ${status}".
	// Optional. Default value DefaultLoggerConfig.Format.
	Format string

	// Output is where log lines are written.
	// Optional. Default value os.Stdout.
	Output io.Writer

	template   *fasttemplate.Template
	bufferPool *sync.Pool
}

// DefaultLoggerConfig is the default request-logging gas config.
var DefaultLoggerConfig = LoggerConfig{
	Format: `{"time":"${time_rfc3339}","remote_ip":"${remote_ip}",` +
		`"method":"${method}","uri":"${uri}","status":${status},"latency":${latency},` +
		`"latency_human":"${latency_human}","rx_bytes":${rx_bytes},` +
		`"tx_bytes":${tx_bytes}}` + "\n",
	Output: os.Stdout,
}

// Logger returns a gas that logs every handled request.
func Logger() catzilla.Gas {
	return LoggerWithConfig(DefaultLoggerConfig)
}

// LoggerWithConfig returns a request-logging gas from config. See Logger.
func LoggerWithConfig(config LoggerConfig) catzilla.Gas {
	if config.Format == "" {
		config.Format = DefaultLoggerConfig.Format
	}
	if config.Output == nil {
		config.Output = DefaultLoggerConfig.Output
	}

	config.template = fasttemplate.New(config.Format, "${", "}")
	config.bufferPool = &sync.Pool{
		New: func() interface{} { return bytes.NewBuffer(make([]byte, 0, 256)) },
	}

	return func(next catzilla.Handler) catzilla.Handler {
		return func(req *catzilla.Request, res *catzilla.Response) error {
			start := time.Now()
			err := next(req, res)
			stop := time.Now()

			buf := config.bufferPool.Get().(*bytes.Buffer)
			buf.Reset()
			defer config.bufferPool.Put(buf)

			_, tmplErr := config.template.ExecuteFunc(buf, func(w io.Writer, tag string) (int, error) {
				switch tag {
				case "time_rfc3339":
					return w.Write([]byte(time.Now().Format(time.RFC3339)))
				case "remote_ip":
					ra := req.RemoteAddr
					if ip := req.Header("X-Real-IP"); ip != "" {
						ra = ip
					} else if ip := req.Header("X-Forwarded-For"); ip != "" {
						ra = ip
					} else if host, _, splitErr := net.SplitHostPort(ra); splitErr == nil {
						ra = host
					}
					return w.Write([]byte(ra))
				case "host":
					return w.Write([]byte(req.URL.Host))
				case "uri":
					return w.Write([]byte(req.URL.String()))
				case "method":
					return w.Write([]byte(req.Method))
				case "path":
					p := req.Path
					if p == "" {
						p = "/"
					}
					return w.Write([]byte(p))
				case "referer":
					return w.Write([]byte(req.Header("Referer")))
				case "user_agent":
					return w.Write([]byte(req.Header("User-Agent")))
				case "status":
					return w.Write([]byte(strconv.Itoa(res.Status)))
				case "latency":
					l := stop.Sub(start).Nanoseconds() / 1000
					return w.Write([]byte(strconv.FormatInt(l, 10)))
				case "latency_human":
					return w.Write([]byte(stop.Sub(start).String()))
				case "rx_bytes":
					b := req.Header("Content-Length")
					if b == "" {
						b = "0"
					}
					return w.Write([]byte(b))
				case "tx_bytes":
					if res.ContentLength < 0 {
						return w.Write([]byte("0"))
					}
					return w.Write([]byte(strconv.FormatInt(res.ContentLength, 10)))
				}
				return 0, nil
			})
			if tmplErr == nil {
				config.Output.Write(buf.Bytes())
			}
			return err
		}
	}
}
