package upload

import (
	"bytes"
	"mime/multipart"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildMultipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		assert.NoError(t, w.WriteField(name, value))
	}
	for name, content := range files {
		fw, err := w.CreateFormFile(name, name+".bin")
		assert.NoError(t, err)
		_, err = fw.Write(content)
		assert.NoError(t, err)
	}
	assert.NoError(t, w.Close())

	return &buf, w.Boundary()
}

func TestParseSeparatesFieldsAndFiles(t *testing.T) {
	body, boundary := buildMultipartBody(t,
		map[string]string{"name": "gopher"},
		map[string][]byte{"avatar": []byte("fake png bytes")},
	)

	res, err := Parse(body, boundary, Options{StreamThreshold: 1 << 20})
	assert.NoError(t, err)

	assert.Len(t, res.Fields, 1)
	assert.Equal(t, "gopher", res.Fields[0].Value)

	if assert.Len(t, res.Files, 1) {
		f := res.Files[0]
		assert.Equal(t, "avatar", f.FieldName)
		assert.EqualValues(t, len("fake png bytes"), f.Size)
		ms, ok := f.Sink.(*MemorySink)
		if assert.True(t, ok) {
			assert.Equal(t, "fake png bytes", string(ms.Bytes()))
		}
	}
}

func TestParseUsesDiskSinkWhenRequested(t *testing.T) {
	dir := t.TempDir()
	body, boundary := buildMultipartBody(t, nil, map[string][]byte{"doc": bytes.Repeat([]byte("x"), 4096)})

	res, err := Parse(body, boundary, Options{
		StreamThreshold: 1, // force disk
		NewSink: func(field, fileName string, expectedSize int64) (Sink, error) {
			return NewDiskSink(filepath.Join(dir, fileName), 0, expectedSize)
		},
	})
	assert.NoError(t, err)

	if assert.Len(t, res.Files, 1) {
		f := res.Files[0]
		_, ok := f.Sink.(*DiskSink)
		assert.True(t, ok)
		assert.EqualValues(t, 4096, f.Size)
	}
}

func TestParseEnforcesMaxFileBytes(t *testing.T) {
	body, boundary := buildMultipartBody(t, nil, map[string][]byte{"big": bytes.Repeat([]byte("z"), 1024)})

	_, err := Parse(body, boundary, Options{MaxFileBytes: 100})
	if assert.Error(t, err) {
		uerr, ok := err.(*Error)
		if assert.True(t, ok) {
			assert.Equal(t, KindSizeExceeded, uerr.Kind)
		}
	}
}

func TestParseEnforcesMaxFieldBytes(t *testing.T) {
	body, boundary := buildMultipartBody(t, map[string]string{"bio": "this value is definitely long enough to exceed the tiny limit"}, nil)

	_, err := Parse(body, boundary, Options{MaxFieldBytes: 8})
	if assert.Error(t, err) {
		uerr, ok := err.(*Error)
		if assert.True(t, ok) {
			assert.Equal(t, KindSizeExceeded, uerr.Kind)
		}
	}
}

func TestParseMalformedBodyReturnsParseKind(t *testing.T) {
	body := bytes.NewBufferString("not a multipart body at all")
	_, err := Parse(body, "whatever", Options{})
	if assert.Error(t, err) {
		uerr, ok := err.(*Error)
		if assert.True(t, ok) {
			assert.Equal(t, KindParse, uerr.Kind)
		}
	}
}
