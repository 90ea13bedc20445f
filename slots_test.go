package embedstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotPool(t *testing.T) {
	p := newSlotPool(4)
	assert.Equal(t, 4, p.len())

	got, ok := p.take(3)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.False(t, p.contains(1))
	assert.True(t, p.contains(3))

	_, ok = p.take(2)
	assert.False(t, ok)
	assert.Equal(t, 1, p.len())

	require.NoError(t, p.put(1))
	got, ok = p.take(1)
	require.True(t, ok)
	assert.Equal(t, []int{1}, got, "LIFO")
}

func TestSlotPool_RejectsBadFrees(t *testing.T) {
	p := newSlotPool(2)

	assert.Error(t, p.put(0), "already free")
	assert.Error(t, p.put(2), "out of range")
	assert.Error(t, p.put(-1))

	_, ok := p.take(2)
	require.True(t, ok)
	assert.Error(t, p.put(0, 0), "freed twice in one call")
	assert.Zero(t, p.len())

	require.NoError(t, p.put(0, 1))
	assert.Equal(t, uint64(2), p.bitmap().GetCardinality())
}
