package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFOAndWrap(t *testing.T) {
	rq := NewRingQueue[int](3)
	assert.True(t, rq.IsEmpty())

	require.NoError(t, rq.Enqueue(1))
	require.NoError(t, rq.Enqueue(2))
	require.NoError(t, rq.Enqueue(3))
	assert.True(t, rq.IsFull())
	assert.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	v, err := rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, rq.Enqueue(4))
	got := []int{}
	for !rq.IsEmpty() {
		head, err := rq.Peek()
		require.NoError(t, err)
		v, err := rq.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, head, v)
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3, 4}, got)

	_, err = rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	_, err = rq.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRingQueueDrainWhile(t *testing.T) {
	rq := NewRingQueue[int](4)
	assert.Equal(t, 4, rq.Cap())
	for _, v := range []int{1, 2, 5, 3} {
		require.NoError(t, rq.Enqueue(v))
	}

	var seen []int
	n := rq.DrainWhile(func(v int) bool { return v <= 2 }, func(v int) { seen = append(seen, v) })
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 2, rq.Len())

	// stops at the first value that fails, even when later ones would pass
	n = rq.DrainWhile(func(v int) bool { return v <= 4 }, func(int) {})
	assert.Zero(t, n)

	n = rq.DrainWhile(nil, func(v int) { seen = append(seen, v) })
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, 2, 5, 3}, seen)
	assert.True(t, rq.IsEmpty())
}

func TestRingQueueMinimumCapacity(t *testing.T) {
	rq := NewRingQueue[string](0)
	assert.Equal(t, 1, rq.Cap())
	require.NoError(t, rq.Enqueue("a"))
	assert.ErrorIs(t, rq.Enqueue("b"), ErrQueueFull)
}
