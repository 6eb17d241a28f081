package index

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIds(t *testing.T, ids ...uint32) *CompressedIds {
	var c CompressedIds
	for _, id := range ids {
		require.NoError(t, c.Append(id))
	}
	return &c
}

func TestCompressedIdsAppend(t *testing.T) {
	c := buildIds(t, 0, 1, 5, 1000)
	assert.Equal(t, uint32(1000), c.LastID())

	ids, err := c.Decode()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 5, 1000}, ids)
}

func TestCompressedIdsAppendOutOfOrder(t *testing.T) {
	c := buildIds(t, 10)
	err := c.Append(10)
	assert.Equal(t, ErrOrdering, errors.Cause(err))
	err = c.Append(3)
	assert.Equal(t, ErrOrdering, errors.Cause(err))
}

func TestCompressedIdsEmpty(t *testing.T) {
	var c CompressedIds
	assert.True(t, c.Empty())
	assert.Equal(t, 0, c.Size())
	assert.NoError(t, c.Validate())

	ids, err := c.Decode()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCompressedIdsValidate(t *testing.T) {
	c := buildIds(t, 2, 4, 260)
	require.NoError(t, c.Validate())

	// the blob decodes but sums to the wrong last id
	var d CompressedIds
	copy(d.SetData(c.Size(), c.LastID()+1), c.Bytes())
	err := d.Validate()
	assert.Equal(t, ErrCorruptList, errors.Cause(err))

	// truncated trailing varint
	var e CompressedIds
	copy(e.SetData(c.Size()-1, c.LastID()), c.Bytes())
	err = e.Validate()
	assert.Equal(t, ErrCorruptList, errors.Cause(err))

	// a zero delta past the first position is a duplicate id
	var f CompressedIds
	copy(f.SetData(3, 7), []byte{7, 0, 1})
	err = f.Validate()
	assert.Equal(t, ErrCorruptList, errors.Cause(err))
}

func TestCompressedIdsRoundTrip(t *testing.T) {
	in := []uint32{0, 1, 2, 127, 128, 300, 1 << 20, 1 << 30}
	var c CompressedIds
	for _, id := range in {
		require.NoError(t, c.Append(id))
	}
	require.NoError(t, c.Validate())
	out, err := c.Decode()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCompressedIdsMerge(t *testing.T) {
	a := buildIds(t, 1, 3, 5)
	b := buildIds(t, 0, 3, 8)

	m, err := a.Merge(b)
	require.NoError(t, err)
	ids, err := m.Decode()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 3, 5, 8}, ids)
	assert.Equal(t, uint32(8), m.LastID())

	// commutative
	m2, err := b.Merge(a)
	require.NoError(t, err)
	ids2, err := m2.Decode()
	require.NoError(t, err)
	assert.Equal(t, ids, ids2)
}

func TestCompressedIdsMergeAssociative(t *testing.T) {
	a := buildIds(t, 1, 4)
	b := buildIds(t, 2, 4, 9)
	c := buildIds(t, 0, 9)

	ab, err := a.Merge(b)
	require.NoError(t, err)
	abc1, err := ab.Merge(c)
	require.NoError(t, err)

	bc, err := b.Merge(c)
	require.NoError(t, err)
	abc2, err := a.Merge(bc)
	require.NoError(t, err)

	ids1, err := abc1.Decode()
	require.NoError(t, err)
	ids2, err := abc2.Decode()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 4, 9}, ids1)
	assert.Equal(t, ids1, ids2)
}

func TestCompressedIdsMergeEmpty(t *testing.T) {
	a := buildIds(t, 2, 6)
	var empty CompressedIds

	m, err := a.Merge(&empty)
	require.NoError(t, err)
	ids, err := m.Decode()
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 6}, ids)
}
