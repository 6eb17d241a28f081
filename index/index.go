// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

// Package index builds and reads a trigram inverted index over a corpus of
// files.
//
// The underlying structure is a uint32->uint32 (trigram->file id) multimap.
// Posting lists are delta-compressed with base-128 varints and laid out in
// a single data file; a sorted array of fixed-size records locates the blob
// for each trigram.
package index

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// IndexDirName is the index subdirectory created next to the corpus.
	IndexDirName = ".grip"

	DataFilename     = "trigrams.data"
	ListFilename     = "trigrams.list"
	FileListFilename = "files"
	MetaFilename     = "meta.json"

	// DefaultChunkSize is the in-memory posting budget between chunk flushes.
	DefaultChunkSize = 64 * 1024 * 1024
)

var (
	ErrOrdering    = errors.New("posting id out of order")
	ErrCorruptList = errors.New("corrupted posting list")
	ErrNoIndex     = errors.New("index directory not found")
)

// Trigram packs three consecutive bytes big-endian into a 24-bit value.
func Trigram(b0, b1, b2 byte) uint32 {
	return uint32(b0)<<16 | uint32(b1)<<8 | uint32(b2)
}

// TrigramString formats a trigram for diagnostics as its three raw bytes.
func TrigramString(t uint32) string {
	return string([]byte{byte(t >> 16), byte(t >> 8), byte(t)})
}

// Index locates the posting list of one trigram inside the data file.
type Index struct {
	Trigram uint32
	Offset  uint64
	Size    uint32
	LastID  uint32
}

// IndexRecordSize is the encoded size of one Index record.
const IndexRecordSize = 20

// WriteIndexes serializes index records in their slice order. The writer
// is expected to be buffered.
func WriteIndexes(w io.Writer, indexes []Index) error {
	for i := range indexes {
		if err := binary.Write(w, binary.LittleEndian, &indexes[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadIndexes loads a full index record array into memory.
func ReadIndexes(r io.Reader) ([]Index, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data)%IndexRecordSize != 0 {
		return nil, errors.Wrap(ErrCorruptList, "index list size is not a multiple of the record size")
	}
	indexes := make([]Index, len(data)/IndexRecordSize)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &indexes); err != nil {
		return nil, err
	}
	return indexes, nil
}

// FindIndexDir locates the nearest ancestor of dir containing an index
// subdirectory. With an empty dir the search is rooted at the current
// working directory.
func FindIndexDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, IndexDirName)
		if stat, err := os.Stat(path); err == nil && stat.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoIndex
		}
		dir = parent
	}
}
