package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueWrapsAround(t *testing.T) {
	q := NewRingQueue[int](3)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	require.NoError(t, q.Enqueue(3))
	assert.ErrorIs(t, q.Enqueue(4), ErrQueueFull)

	v, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, q.Enqueue(4))

	var got []int
	for !q.IsEmpty() {
		v, err := q.Dequeue()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3, 4}, got)

	_, err = q.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	_, err = q.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestArenaReusesFreedIndices(t *testing.T) {
	a := NewArena[string]()
	x := a.Insert("x")
	y := a.Insert("y")
	assert.NotZero(t, x)
	assert.NotEqual(t, x, y)
	assert.Equal(t, 2, a.Len())

	v, ok := a.Remove(x)
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = a.Get(x)
	assert.False(t, ok)
	_, ok = a.Remove(x)
	assert.False(t, ok)

	z := a.Insert("z")
	assert.Equal(t, x, z)

	var seen []string
	a.Each(func(_ uint32, v string) { seen = append(seen, v) })
	assert.Equal(t, []string{"z", "y"}, seen)

	_, ok = a.Get(0)
	assert.False(t, ok)
	assert.False(t, a.Set(99, "nope"))
}
