package upload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptimalBufferSizeBrackets(t *testing.T) {
	assert.Equal(t, 64*1024, optimalBufferSize(0))
	assert.Equal(t, 4*1024, optimalBufferSize(1024))
	assert.Equal(t, 64*1024, optimalBufferSize(1<<20))
	assert.Equal(t, 1<<20, optimalBufferSize(16<<20))
	assert.Equal(t, 4<<20, optimalBufferSize(128<<20))
}

func TestDiskSinkWritesAndCloses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	d, err := NewDiskSink(path, 0, 0)
	assert.NoError(t, err)

	n, err := d.Write([]byte("hello world"))
	assert.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.NoError(t, d.Close())

	b, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(b))
}

func TestDiskSinkRejectsOverSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	d, err := NewDiskSink(path, 4, 0)
	assert.NoError(t, err)

	_, err = d.Write([]byte("way too long"))
	assert.Equal(t, ErrSizeExceeded, err)
}

func TestDiskSinkAbortRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	d, err := NewDiskSink(path, 0, 0)
	assert.NoError(t, err)
	d.Write([]byte("data"))
	assert.NoError(t, d.Abort())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDiskSinkPreallocationIsTruncatedBackOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	d, err := NewDiskSink(path, 0, 1<<20)
	assert.NoError(t, err)
	assert.NoError(t, err)

	d.Write([]byte("small"))
	assert.NoError(t, d.Close())

	fi, err := os.Stat(path)
	assert.NoError(t, err)
	assert.EqualValues(t, 5, fi.Size())
}

func TestMemorySinkGrowsByDoubling(t *testing.T) {
	m := NewMemorySink(0)

	total := 0
	for i := 0; i < 20; i++ {
		chunk := make([]byte, 1024)
		n, err := m.Write(chunk)
		assert.NoError(t, err)
		total += n
	}

	assert.EqualValues(t, total, m.Size())
	assert.Len(t, m.Bytes(), total)
}

func TestMemorySinkRejectsOverSizeLimit(t *testing.T) {
	m := NewMemorySink(10)
	_, err := m.Write(make([]byte, 20))
	assert.Equal(t, ErrSizeExceeded, err)
}

func TestMemorySinkAbortClearsBuffers(t *testing.T) {
	m := NewMemorySink(0)
	m.Write([]byte("data"))
	assert.NoError(t, m.Abort())
	assert.EqualValues(t, 0, m.Size())
	assert.Empty(t, m.Bytes())
}
