package cursor

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorLayout(t *testing.T) {
	require.Equal(t, uintptr(Size), unsafe.Sizeof(Cursor{}))
}

func TestCursorAdvanceConsume(t *testing.T) {
	var c Cursor
	c.Init(4)

	for i := uint64(0); i < 3; i++ {
		idx, epoch, overwrote := c.Advance()
		assert.Equal(t, i, idx)
		assert.Equal(t, i+1, epoch)
		assert.False(t, overwrote)
	}
	require.Equal(t, uint64(3), c.Count)

	newest, ok := c.Newest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), newest)

	idx, ok := c.Consume()
	require.True(t, ok)
	assert.Equal(t, uint64(0), idx)
	assert.Equal(t, uint64(2), c.Count)
	assert.Equal(t, uint64(1), c.Received)
}

func TestCursorOverwrite(t *testing.T) {
	var c Cursor
	c.Init(3)

	for i := 0; i < 5; i++ {
		c.Advance()
	}
	assert.Equal(t, uint64(3), c.Count)
	assert.Equal(t, uint64(2), c.Dropped)
	assert.Equal(t, uint64(5), c.LatestEpoch())
	assert.True(t, c.Full())

	// slots hold epochs 4,5,3 => oldest is at slot 2
	oldest, ok := c.Oldest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), oldest)

	newest, ok := c.Newest()
	require.True(t, ok)
	assert.Equal(t, uint64(1), newest)
}

func TestCursorNewestWraps(t *testing.T) {
	var c Cursor
	c.Init(2)
	c.Advance()
	c.Advance()
	require.Equal(t, uint64(0), c.Write)

	newest, ok := c.Newest()
	require.True(t, ok)
	assert.Equal(t, uint64(1), newest)
}

func TestCursorEmpty(t *testing.T) {
	var c Cursor
	c.Init(1)

	_, ok := c.Consume()
	assert.False(t, ok)
	_, ok = c.Newest()
	assert.False(t, ok)
	_, ok = c.Oldest()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), c.LatestEpoch())

	c.Advance()
	c.Consume()
	_, ok = c.Newest()
	assert.False(t, ok, "consumed ring has nothing to peek")
	assert.Equal(t, uint64(1), c.LatestEpoch())
}
