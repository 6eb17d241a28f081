package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePair stores a pair with the given trigram->ids postings.
func writePair(t *testing.T, s *Store, name string, postings map[uint32][]uint32) {
	t.Helper()
	ix := NewIndexer(s)
	for trigram, ids := range postings {
		list := &CompressedIds{}
		for _, id := range ids {
			require.NoError(t, list.Append(id))
		}
		ix.postings[trigram] = list
	}
	_, _, err := ix.flushPostings(name)
	require.NoError(t, err)
}

func readPair(t *testing.T, s *Store, name string) map[uint32][]uint32 {
	t.Helper()
	r, err := s.OpenPair(name)
	require.NoError(t, err)
	defer r.Close()

	postings := make(map[uint32][]uint32)
	var prev uint32
	first := true
	for {
		entry, ok := r.Peek()
		if !ok {
			break
		}
		if !first {
			require.True(t, prev < entry.Trigram, "list out of order")
		}
		prev, first = entry.Trigram, false

		_, blob, err := r.Next()
		require.NoError(t, err)
		var ids CompressedIds
		copy(ids.SetData(len(blob), entry.LastID), blob)
		require.NoError(t, ids.Validate())
		decoded, err := ids.Decode()
		require.NoError(t, err)
		postings[entry.Trigram] = decoded
	}
	return postings
}

func TestMergePairs(t *testing.T) {
	store := newTestStore(t)
	writePair(t, store, "a", map[uint32][]uint32{
		1: {0, 2},
		5: {1},
		9: {0, 1, 2},
	})
	writePair(t, store, "b", map[uint32][]uint32{
		1: {3},
		7: {4},
	})

	n, size, err := mergePairs(store, "a", "b", "out")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, size > 0)

	assert.Equal(t, map[uint32][]uint32{
		1: {0, 2, 3},
		5: {1},
		7: {4},
		9: {0, 1, 2},
	}, readPair(t, store, "out"))
}

func TestMergePairsOneEmpty(t *testing.T) {
	store := newTestStore(t)
	writePair(t, store, "a", map[uint32][]uint32{3: {0}})
	writePair(t, store, "b", map[uint32][]uint32{})

	_, _, err := mergePairs(store, "a", "b", "out")
	require.NoError(t, err)
	assert.Equal(t, map[uint32][]uint32{3: {0}}, readPair(t, store, "out"))
}

func TestMergePairsOverlappingIds(t *testing.T) {
	store := newTestStore(t)
	// duplicate ids across chunks collapse during the merge
	writePair(t, store, "a", map[uint32][]uint32{2: {0, 5}})
	writePair(t, store, "b", map[uint32][]uint32{2: {0, 3, 5}})

	_, _, err := mergePairs(store, "a", "b", "out")
	require.NoError(t, err)
	assert.Equal(t, map[uint32][]uint32{2: {0, 3, 5}}, readPair(t, store, "out"))
}

func TestCopyPair(t *testing.T) {
	store := newTestStore(t)
	postings := map[uint32][]uint32{
		10: {1, 2},
		20: {0},
	}
	writePair(t, store, "a", postings)

	n, _, err := copyPair(store, "a", "out")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, postings, readPair(t, store, "out"))
}
