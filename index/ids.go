// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

package index

import (
	"github.com/pkg/errors"

	"github.com/tex/grip/util/intcompress"
)

// CompressedIds is a posting list: a strictly increasing sequence of file
// ids stored as base-128 varint deltas. The delta of the first id is the id
// itself, so the deltas always sum to the last id written.
type CompressedIds struct {
	data   []byte
	lastID uint32
	count  int
}

// Append adds an id to the end of the list. The id must be greater than
// any id already present.
func (c *CompressedIds) Append(id uint32) error {
	if c.count > 0 && id <= c.lastID {
		return errors.Wrapf(ErrOrdering, "id %d after %d", id, c.lastID)
	}
	c.data = intcompress.AppendUvarint32(c.data, id-c.lastID)
	c.lastID = id
	c.count++
	return nil
}

// LastID returns the largest id written so far, 0 for an empty list.
func (c *CompressedIds) LastID() uint32 {
	return c.lastID
}

// Size returns the encoded size of the list in bytes.
func (c *CompressedIds) Size() int {
	return len(c.data)
}

// Empty reports whether the list contains no ids.
func (c *CompressedIds) Empty() bool {
	return len(c.data) == 0
}

// Bytes returns the encoded form. The slice is owned by the list.
func (c *CompressedIds) Bytes() []byte {
	return c.data
}

// SetData discards the current contents and returns a buffer of the given
// size for the caller to fill with encoded data read from the index. The
// contents are not trusted until Validate has been called.
func (c *CompressedIds) SetData(size int, lastID uint32) []byte {
	c.data = make([]byte, size)
	c.lastID = lastID
	c.count = 0
	return c.data
}

// Decode expands the list into a slice of ids.
func (c *CompressedIds) Decode() ([]uint32, error) {
	if len(c.data) == 0 {
		return nil, nil
	}
	ids := make([]uint32, 0, c.count)
	var id uint32
	data := c.data
	for i := 0; len(data) > 0; i++ {
		delta, n := intcompress.Uvarint32(data)
		if n == 0 {
			return nil, errors.Wrap(ErrCorruptList, "truncated varint")
		}
		if n < 0 {
			return nil, errors.Wrap(ErrCorruptList, "varint overflow")
		}
		if i > 0 && delta == 0 {
			return nil, errors.Wrap(ErrCorruptList, "duplicate id")
		}
		next := id + delta
		if next < id {
			return nil, errors.Wrap(ErrCorruptList, "id overflow")
		}
		id = next
		ids = append(ids, id)
		data = data[n:]
	}
	return ids, nil
}

// Each calls fn for every id in the list in increasing order.
func (c *CompressedIds) Each(fn func(id uint32)) error {
	ids, err := c.Decode()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fn(id)
	}
	return nil
}

// Validate decodes the entire buffer and verifies that every byte is
// consumed at a varint terminator and that the deltas sum to the stored
// last id.
func (c *CompressedIds) Validate() error {
	ids, err := c.Decode()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		if c.lastID != 0 {
			return errors.Wrapf(ErrCorruptList, "empty list with last id %d", c.lastID)
		}
		return nil
	}
	if last := ids[len(ids)-1]; last != c.lastID {
		return errors.Wrapf(ErrCorruptList, "last id %d, expected %d", last, c.lastID)
	}
	c.count = len(ids)
	return nil
}

// Merge produces a new list holding the sorted union of both inputs.
// Duplicate ids collapse to one.
func (c *CompressedIds) Merge(other *CompressedIds) (*CompressedIds, error) {
	a, err := c.Decode()
	if err != nil {
		return nil, err
	}
	b, err := other.Decode()
	if err != nil {
		return nil, err
	}
	merged := &CompressedIds{}
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var id uint32
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			id = a[i]
			i++
		case i >= len(a) || b[j] < a[i]:
			id = b[j]
			j++
		default:
			id = a[i]
			i++
			j++
		}
		if err := merged.Append(id); err != nil {
			return nil, err
		}
	}
	return merged, nil
}
