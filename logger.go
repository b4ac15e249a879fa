package catzilla

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"text/template"
	"time"
)

// loggerLevel is a Logger severity, grounded on air/logger.go's level
// constants.
type loggerLevel int

const (
	levelDebug loggerLevel = iota
	levelInfo
	levelWarn
	levelError
	levelFatal
)

var loggerLevelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l loggerLevel) String() string {
	if l < 0 || int(l) >= len(loggerLevelNames) {
		return "UNKNOWN"
	}
	return loggerLevelNames[l]
}

// defaultLoggerFormat mirrors air.go's default `LoggerFormat`: a
// text/template string rendered once per log line.
const defaultLoggerFormat = `{"app_name":"{{.app_name}}","time":"{{.time_rfc3339}}",` +
	`"level":"{{.level}}","file":"{{.short_file}}","line":"{{.line}}","message":"{{.message}}"}`

// Logger is Catzilla's leveled logger, grounded on air/logger.go: a single
// text/template compiled lazily from a format string, rendered through a
// pooled bytes.Buffer to avoid a per-line allocation, with the output
// written to Output (defaulting to os.Stdout).
type Logger struct {
	appName string
	format  string

	mu         sync.Mutex
	template   *template.Template
	compiledOf string

	bufferPool *sync.Pool

	Output io.Writer
}

// NewLogger returns a new Logger for appName, rendering with format (or
// defaultLoggerFormat if empty).
func NewLogger(appName, format string) *Logger {
	if format == "" {
		format = defaultLoggerFormat
	}
	return &Logger{
		appName: appName,
		format:  format,
		bufferPool: &sync.Pool{
			New: func() interface{} { return new(bytes.Buffer) },
		},
		Output: os.Stdout,
	}
}

func (l *Logger) compile() (*template.Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.template != nil && l.compiledOf == l.format {
		return l.template, nil
	}
	t, err := template.New("logger").Parse(l.format)
	if err != nil {
		return nil, err
	}
	l.template = t
	l.compiledOf = l.format
	return t, nil
}

func (l *Logger) log(lvl loggerLevel, format string, args ...interface{}) {
	if l == nil || l.Output == nil {
		return
	}

	t, err := l.compile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "catzilla: logger format error: %v\n", err)
		return
	}

	_, file, line, ok := runtime.Caller(3)
	shortFile := file
	if ok {
		if i := strings.LastIndexByte(file, '/'); i >= 0 {
			shortFile = file[i+1:]
		}
	}

	data := map[string]interface{}{
		"app_name":     l.appName,
		"time_rfc3339": time.Now().Format(time.RFC3339),
		"level":        lvl.String(),
		"short_file":   shortFile,
		"long_file":    file,
		"line":         line,
		"message":      fmt.Sprintf(format, args...),
	}

	buf := l.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer l.bufferPool.Put(buf)

	if err := t.Execute(buf, data); err != nil {
		fmt.Fprintf(os.Stderr, "catzilla: logger template error: %v\n", err)
		return
	}

	buf.WriteByte('\n')

	l.mu.Lock()
	l.Output.Write(buf.Bytes())
	l.mu.Unlock()
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(levelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(levelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(levelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(levelError, format, args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(levelFatal, format, args...)
	os.Exit(1)
}
