package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArenaAllocContainment(t *testing.T) {
	a := New(Request)

	b := a.Alloc(16)
	assert.Len(t, b, 16)

	s := a.AllocString("hello")
	assert.Equal(t, "hello", s)
	assert.Greater(t, a.Used(), 0)

	a.Reset()
	assert.Equal(t, 0, a.Used())
}

func TestArenaGrowsAcrossBlocks(t *testing.T) {
	a := New(Cache)

	for i := 0; i < 10; i++ {
		a.Alloc(defaultBlockSize)
	}

	assert.Greater(t, len(a.blocks), 1)
	a.Reset()
	assert.LessOrEqual(t, len(a.blocks), 1)
}

func TestPoolsRoundTrip(t *testing.T) {
	p := NewPools()

	a := p.Get(Task)
	assert.Equal(t, Task, a.Tag())

	a.Alloc(8)
	p.Put(a)

	a2 := p.Get(Task)
	assert.Equal(t, 0, a2.Used())
}
