package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrie_AddAndCount(t *testing.T) {
	tr := New()
	tr.Add([]string{"a"}, 1)
	tr.Add([]string{"a", "b"}, 2)
	tr.Add([]string{"a", "b"}, 1)
	tr.Add([]string{"a", "c", "d"}, 1)

	assert.Equal(t, int64(1), tr.Count([]string{"a"}))
	assert.Equal(t, int64(3), tr.Count([]string{"a", "b"}))
	assert.Equal(t, int64(0), tr.Count([]string{"a", "c"}), "intermediate node is not stored")
	assert.Equal(t, int64(1), tr.Count([]string{"a", "c", "d"}))
	assert.Equal(t, int64(0), tr.Count([]string{"z"}))
	assert.Equal(t, int64(0), tr.Count(nil))

	assert.Equal(t, int64(3), tr.Len())
	assert.Equal(t, int64(5), tr.Total())
	assert.Equal(t, 4, tr.SymbolCount())
}

func TestTrie_Children(t *testing.T) {
	tr := New()
	tr.Add([]string{"x", "b"}, 1)
	tr.Add([]string{"x", "a"}, 4)
	tr.Add([]string{"x", "c", "d"}, 1)
	tr.Add([]string{"y"}, 1)

	assert.Equal(t, []string{"a", "b"}, tr.Children([]string{"x"}))
	assert.Equal(t, int64(5), tr.ChildrenTotal([]string{"x"}))
	assert.Equal(t, []string{"y"}, tr.Children(nil))
	assert.Nil(t, tr.Children([]string{"missing"}))
	assert.Equal(t, int64(0), tr.ChildrenTotal([]string{"y"}))
}

func TestTrie_WalkIsSortedAndCopies(t *testing.T) {
	tr := New()
	tr.Add([]string{"b"}, 1)
	tr.Add([]string{"a", "c"}, 2)
	tr.Add([]string{"a"}, 3)

	var got [][]string
	var counts []int64
	tr.Walk(func(symbols []string, count int64) {
		got = append(got, symbols)
		counts = append(counts, count)
	})

	require.Len(t, got, 3)
	assert.Equal(t, [][]string{{"a"}, {"a", "c"}, {"b"}}, got)
	assert.Equal(t, []int64{3, 2, 1}, counts)
}

func TestTrie_Merge(t *testing.T) {
	left := New()
	left.Add([]string{"a", "b"}, 1)
	left.Add([]string{"c"}, 2)

	right := New()
	right.Add([]string{"a", "b"}, 3)
	right.Add([]string{"d"}, 1)

	left.Merge(right)
	assert.Equal(t, int64(4), left.Count([]string{"a", "b"}))
	assert.Equal(t, int64(2), left.Count([]string{"c"}))
	assert.Equal(t, int64(1), left.Count([]string{"d"}))
	assert.Equal(t, int64(7), left.Total())

	left.Merge(left)
	assert.Equal(t, int64(7), left.Total(), "self merge is a no-op")
}

func TestTrie_MemoryStats(t *testing.T) {
	tr := New()
	tr.Add([]string{"a", "b", "c"}, 1)

	stats := tr.MemoryStats()
	assert.Equal(t, int64(4), stats.TotalNodes)
	assert.Equal(t, int64(1), stats.StoredSequences)
	assert.Equal(t, 3, stats.SymbolCount)
	assert.Equal(t, stats.SymbolMemoryBytes+stats.NodeMemoryBytes, stats.TotalMemoryBytes())
}
