// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

package index

import (
	"os"
	"sort"

	"github.com/pkg/errors"
)

// Reader provides random access to a finished index. Posting lists are
// fetched with binary search over the in-memory record array and cached
// without bound; a query touches at most a few hundred distinct trigrams,
// so eviction is left to ClearCache.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	data    *os.File
	indexes []Index
	files   FileList
	meta    Meta
	cache   map[uint32]*CompressedIds
}

// Open opens the index stored in the given directory. With an empty path
// the nearest ancestor index directory is used.
func Open(path string) (*Reader, error) {
	if path == "" {
		found, err := FindIndexDir("")
		if err != nil {
			return nil, err
		}
		path = found
	}
	store, err := OpenStore(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the index directory")
	}

	r := &Reader{cache: make(map[uint32]*CompressedIds)}

	if err := r.meta.Load(store); err != nil {
		return nil, err
	}

	listFile, err := store.Open(ListFilename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the trigram list")
	}
	r.indexes, err = ReadIndexes(listFile)
	listFile.Close()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read the trigram list")
	}

	filesFile, err := store.Open(FileListFilename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the file list")
	}
	err = r.files.Read(filesFile)
	filesFile.Close()
	if err != nil {
		return nil, err
	}

	r.data, err = store.Open(DataFilename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the trigram data")
	}

	return r, nil
}

// Close releases the data file.
func (r *Reader) Close() error {
	return r.data.Close()
}

// Get returns the posting list for a trigram. Trigrams absent from the
// index yield an empty list. The returned list is shared with the cache
// and must be treated as read-only.
func (r *Reader) Get(trigram uint32) (*CompressedIds, error) {
	if ids, ok := r.cache[trigram]; ok {
		return ids, nil
	}

	ids := &CompressedIds{}
	pos := sort.Search(len(r.indexes), func(i int) bool {
		return r.indexes[i].Trigram >= trigram
	})
	if pos < len(r.indexes) && r.indexes[pos].Trigram == trigram {
		entry := r.indexes[pos]
		buf := ids.SetData(int(entry.Size), entry.LastID)
		if _, err := r.data.ReadAt(buf, int64(entry.Offset)); err != nil {
			return nil, errors.Wrapf(err, "failed to read posting list for trigram %06x", trigram)
		}
		if err := ids.Validate(); err != nil {
			return nil, errors.Wrapf(err, "trigram %06x", trigram)
		}
	}

	r.cache[trigram] = ids
	return ids, nil
}

// File returns the path of an indexed file.
func (r *Reader) File(id uint32) string {
	return r.files.Get(id)
}

// NumFiles returns the number of indexed files.
func (r *Reader) NumFiles() int {
	return r.files.Size()
}

// NumTrigrams returns the number of distinct trigrams in the index.
func (r *Reader) NumTrigrams() int {
	return len(r.indexes)
}

// Meta returns the build metadata.
func (r *Reader) Meta() Meta {
	return r.meta
}

// ClearCache evicts all cached posting lists.
func (r *Reader) ClearCache() {
	r.cache = make(map[uint32]*CompressedIds)
}
