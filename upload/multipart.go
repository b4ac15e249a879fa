// Package upload implements Catzilla's multipart/form-data pipeline: an
// incremental, part-by-part parser over mime/multipart that dispatches
// each file field to a Sink (disk or memory, chosen by size), plus the
// per-file size/MIME/signature validation spec.md §4.4 requires.
//
// Grounded on air/binder.go's multipart/form-data branch (which calls
// http.Request.ParseMultipartForm, a whole-body parse); this package
// replaces that with mime/multipart.Reader.NextPart so large files never
// need to buffer entirely before a sink is chosen, matching spec.md's
// "consumes the body stream incrementally" requirement.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
)

// Kind classifies why parsing stopped, so the HTTP core can translate it
// into the right status code per spec.md §4.4's failure semantics.
type Kind uint8

const (
	// KindIO is a 500: I/O error reading the body or writing a sink.
	KindIO Kind = iota
	// KindParse is a 400: malformed multipart framing.
	KindParse
	// KindSizeExceeded is a 413: a part or the whole body exceeded its
	// configured limit.
	KindSizeExceeded
	// KindRejected is a 400: MIME whitelist or signature check failed.
	KindRejected
)

// Error wraps an underlying cause with the Kind the HTTP core needs to
// choose a status code.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// File describes one completed file part.
type File struct {
	FieldName   string
	FileName    string
	ContentType string
	Sink        Sink
	Size        int64
}

// Field is one completed non-file form field.
type Field struct {
	Name  string
	Value string
}

// Result is the outcome of a successful Parse.
type Result struct {
	Files  []*File
	Fields []Field
}

// Options configures a Parse call.
type Options struct {
	// MaxFieldBytes bounds a single non-file field's value size. 0 means
	// unlimited.
	MaxFieldBytes int64
	// MaxFileBytes bounds a single file part's size. 0 means unlimited
	// — spec.md §4.4: "There is no hard-coded upper bound in the core
	// parser; all limits come from per-field or per-app configuration."
	MaxFileBytes int64
	// StreamThreshold: a file whose part declares a Content-Length of
	// at most this many bytes uses a MemorySink; a larger or
	// size-unknown file, or any file when StreamThreshold is 0, uses a
	// DiskSink via NewSink. When NewSink is nil, every file uses a
	// MemorySink.
	StreamThreshold int64
	// NewSink creates the DiskSink backing a file part whose size is
	// expected to exceed StreamThreshold. expectedSize is a hint, not a
	// guarantee (multipart parts rarely declare Content-Length).
	NewSink func(fieldName, fileName string, expectedSize int64) (Sink, error)
	// MIMEWhitelist maps field name to an allowed MIME type list; a
	// field absent from the map has no whitelist restriction.
	MIMEWhitelist map[string][]string
	// SniffHeadBytes is how many leading bytes of each file are kept
	// for the signature check. 512 (net/http's own sniff window) if
	// zero.
	SniffHeadBytes int
}

// Parse incrementally reads a multipart/form-data body (r, with the
// boundary parsed from the request's Content-Type header) and dispatches
// each part as it arrives. On any error, every sink opened so far is
// aborted (temp files removed) before returning, per spec.md's cleanup
// requirement.
func Parse(r io.Reader, boundary string, opts Options) (*Result, error) {
	if opts.SniffHeadBytes <= 0 {
		opts.SniffHeadBytes = 512
	}

	mr := multipart.NewReader(r, boundary)
	res := &Result{}

	cleanup := func() {
		for _, f := range res.Files {
			f.Sink.Abort()
		}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			cleanup()
			return nil, &Error{Kind: KindParse, Err: fmt.Errorf("upload: reading part: %w", err)}
		}

		if part.FileName() == "" {
			val, ferr := readField(part, opts.MaxFieldBytes)
			part.Close()
			if ferr != nil {
				cleanup()
				return nil, ferr
			}
			res.Fields = append(res.Fields, Field{Name: part.FormName(), Value: val})
			continue
		}

		file, ferr := readFile(part, opts)
		part.Close()
		if ferr != nil {
			cleanup()
			return nil, ferr
		}
		res.Files = append(res.Files, file)
	}

	return res, nil
}

func readField(part *multipart.Part, max int64) (string, error) {
	var limited io.Reader = part
	if max > 0 {
		limited = io.LimitReader(part, max+1)
	}

	b, err := io.ReadAll(limited)
	if err != nil {
		return "", &Error{Kind: KindIO, Err: err}
	}
	if max > 0 && int64(len(b)) > max {
		return "", &Error{Kind: KindSizeExceeded, Err: fmt.Errorf("upload: field %q exceeds max size", part.FormName())}
	}
	return string(b), nil
}

func readFile(part *multipart.Part, opts Options) (*File, error) {
	declaredCT := part.Header.Get("Content-Type")
	if declaredCT == "" {
		declaredCT = "application/octet-stream"
	}

	head := make([]byte, 0, opts.SniffHeadBytes)

	useDisk := opts.StreamThreshold <= 0 || declaredSizeExceeds(part.Header, opts.StreamThreshold)

	var sink Sink
	var err error
	if useDisk && opts.NewSink != nil {
		sink, err = opts.NewSink(part.FormName(), filepath.Base(part.FileName()), 0)
		if err != nil {
			return nil, &Error{Kind: KindIO, Err: err}
		}
	} else {
		sink = NewMemorySink(opts.MaxFileBytes)
	}

	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := part.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if len(head) < opts.SniffHeadBytes {
				room := opts.SniffHeadBytes - len(head)
				if room > len(chunk) {
					room = len(chunk)
				}
				head = append(head, chunk[:room]...)
			}

			if opts.MaxFileBytes > 0 && written+int64(n) > opts.MaxFileBytes {
				sink.Abort()
				return nil, &Error{
					Kind: KindSizeExceeded,
					Err:  fmt.Errorf("upload: file %q exceeds max size", part.FileName()),
				}
			}

			if _, werr := sink.Write(chunk); werr != nil {
				sink.Abort()
				if errors.Is(werr, ErrSizeExceeded) {
					return nil, &Error{Kind: KindSizeExceeded, Err: werr}
				}
				return nil, &Error{Kind: KindIO, Err: werr}
			}
			written += int64(n)
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			sink.Abort()
			return nil, &Error{Kind: KindIO, Err: rerr}
		}
	}

	if whitelist := opts.MIMEWhitelist[part.FormName()]; whitelist != nil || len(head) > 0 {
		if err := CheckSignature(declaredCT, head, whitelist); err != nil {
			sink.Abort()
			return nil, &Error{Kind: KindRejected, Err: err}
		}
	}

	if err := sink.Close(); err != nil {
		return nil, &Error{Kind: KindIO, Err: err}
	}

	return &File{
		FieldName:   part.FormName(),
		FileName:    part.FileName(),
		ContentType: declaredCT,
		Sink:        sink,
		Size:        written,
	}, nil
}

func declaredSizeExceeds(h textproto.MIMEHeader, threshold int64) bool {
	// Multipart parts almost never declare Content-Length; when absent,
	// err toward disk to avoid unbounded memory growth on an unknown-
	// size upload.
	cl := h.Get("Content-Length")
	if cl == "" {
		return true
	}
	var n int64
	if _, err := fmt.Sscanf(cl, "%d", &n); err != nil {
		return true
	}
	return n > threshold
}
