package bucket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New[int, string](-1, 4)
	assert.Error(t, err)

	_, err = New[int, string](0, 0)
	assert.Error(t, err)

	b, err := New[int, string](0, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, b.LocalDepth())
	assert.Equal(t, 4, b.Capacity())
	assert.Equal(t, 0, b.Len())
}

func TestInsert_UpsertAndRefusal(t *testing.T) {
	b, err := New[int, string](1, 2)
	require.NoError(t, err)

	_, existed, ok := b.Insert(1, "one")
	assert.True(t, ok)
	assert.False(t, existed)

	_, existed, ok = b.Insert(2, "two")
	assert.True(t, ok)
	assert.False(t, existed)
	assert.True(t, b.IsFull())

	// Full bucket refuses a new key.
	_, existed, ok = b.Insert(3, "three")
	assert.False(t, ok)
	assert.False(t, existed)
	assert.Equal(t, 2, b.Len())

	// But still upserts an existing key.
	prev, existed, ok := b.Insert(2, "TWO")
	assert.True(t, ok)
	assert.True(t, existed)
	assert.Equal(t, "two", prev)

	v, found := b.Get(2)
	assert.True(t, found)
	assert.Equal(t, "TWO", v)
}

func TestRemove(t *testing.T) {
	b, err := New[string, int](0, 4)
	require.NoError(t, err)

	b.Insert("a", 1)

	prev, existed := b.Remove("a")
	assert.True(t, existed)
	assert.Equal(t, 1, prev)

	_, existed = b.Remove("a")
	assert.False(t, existed)
	assert.False(t, b.ContainsKey("a"))
}

func TestSnapshotItems_DefensiveCopy(t *testing.T) {
	b, err := New[int, int](0, 4)
	require.NoError(t, err)

	b.Insert(1, 10)
	b.Insert(2, 20)

	snapshot := b.SnapshotItems()
	b.Clear()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, map[int]int{1: 10, 2: 20}, snapshot)
}
