package mph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Lookup(t *testing.T) {
	keys := []string{"apple", "banana", "cherry", "date", "elderberry"}

	table, err := Build(keys, 42)
	require.NoError(t, err)
	assert.Equal(t, len(keys), table.Len())

	for i, k := range keys {
		idx, ok := table.Lookup(k)
		require.True(t, ok, "key %s", k)
		assert.Equal(t, i, idx)
		assert.True(t, table.Contains(k))
	}

	assert.False(t, table.Contains("fig"))
	assert.False(t, table.Contains(""))
}

func TestBuild_DuplicateKeys(t *testing.T) {
	_, err := Build([]string{"a", "b", "a"}, 42)
	assert.ErrorContains(t, err, "duplicate key")
}

func TestBuild_Empty(t *testing.T) {
	table, err := Build(nil, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.False(t, table.Contains("anything"))
}

func TestBuild_SingleKey(t *testing.T) {
	table, err := Build([]string{"only"}, 42)
	require.NoError(t, err)
	assert.True(t, table.Contains("only"))
	assert.False(t, table.Contains("other"))
}

func TestBuild_LargerSet(t *testing.T) {
	keys := make([]string, 200)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	table, err := Build(keys, 7)
	require.NoError(t, err)

	for i, k := range keys {
		idx, ok := table.Lookup(k)
		require.True(t, ok)
		require.Equal(t, i, idx)
	}
	for i := 200; i < 400; i++ {
		assert.False(t, table.Contains(fmt.Sprintf("key-%d", i)))
	}
}
