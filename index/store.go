// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

package index

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/dchest/safefile"
	"github.com/pkg/errors"
)

// Store keeps the files of one index directory: the transient chunk pairs
// produced between memory flushes and the final trigram, file-list and
// metadata files. Every write is staged in a temporary file and only lands
// under its real name once complete, so an interrupted build never leaves
// a partially written file behind. The two files of a pair are committed
// one after the other, data first.
type Store struct {
	path string
}

// OpenStore opens an index directory, optionally creating it.
func OpenStore(path string, create bool) (*Store, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	switch {
	case err == nil:
		if !stat.IsDir() {
			return nil, errors.Errorf("%v is not a directory", path)
		}
	case create && os.IsNotExist(err):
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return &Store{path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Open opens one index file for reading.
func (s *Store) Open(name string) (*os.File, error) {
	return os.Open(filepath.Join(s.path, name))
}

// WriteFile stages one index file, fills it through the callback and
// commits it under its real name.
func (s *Store) WriteFile(name string, write func(w io.Writer) error) error {
	file, err := safefile.Create(filepath.Join(s.path, name), 0644)
	if err != nil {
		return errors.Wrap(err, "create failed")
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := write(writer); err != nil {
		return errors.Wrap(err, "write failed")
	}
	if err := writer.Flush(); err != nil {
		return errors.Wrap(err, "write failed")
	}

	return errors.Wrap(file.Commit(), "commit failed")
}

// WritePair stores a data/list pair under the given base name. The emit
// callback appends posting blobs in trigram order; the matching index
// records accumulate in the writer and become the list file once the data
// file is committed. Returns the trigram count and the total pair size.
func (s *Store) WritePair(name string, emit func(w *PairWriter) error) (int, uint64, error) {
	pw := &PairWriter{}
	err := s.WriteFile(name+".data", func(w io.Writer) error {
		pw.data = w
		return emit(pw)
	})
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to write %v.data", name)
	}

	err = s.WriteFile(name+".list", func(w io.Writer) error {
		return WriteIndexes(w, pw.indexes)
	})
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to write %v.list", name)
	}

	return len(pw.indexes), pw.offset + uint64(len(pw.indexes)*IndexRecordSize), nil
}

// PairWriter emits posting blobs back to back and records where each
// trigram's blob ended up.
type PairWriter struct {
	data    io.Writer
	indexes []Index
	offset  uint64
}

// Add appends one posting blob.
func (w *PairWriter) Add(trigram, lastID uint32, blob []byte) error {
	if _, err := w.data.Write(blob); err != nil {
		return err
	}
	w.indexes = append(w.indexes, Index{
		Trigram: trigram,
		Offset:  w.offset,
		Size:    uint32(len(blob)),
		LastID:  lastID,
	})
	w.offset += uint64(len(blob))
	return nil
}

// OpenPair opens a pair for a sequential walk in trigram order. Blobs are
// laid out back to back in the data file, so the walk reads sequentially.
func (s *Store) OpenPair(name string) (*PairReader, error) {
	listFile, err := s.Open(name + ".list")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %v.list", name)
	}
	indexes, err := ReadIndexes(listFile)
	listFile.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %v.list", name)
	}

	dataFile, err := s.Open(name + ".data")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %v.data", name)
	}

	return &PairReader{
		file:    dataFile,
		data:    bufio.NewReaderSize(dataFile, 256*1024),
		indexes: indexes,
	}, nil
}

type PairReader struct {
	file    *os.File
	data    *bufio.Reader
	indexes []Index
	pos     int
}

func (r *PairReader) Close() {
	r.file.Close()
}

// Peek returns the next index entry without consuming it.
func (r *PairReader) Peek() (Index, bool) {
	if r.pos >= len(r.indexes) {
		return Index{}, false
	}
	return r.indexes[r.pos], true
}

// Next consumes the next entry and returns its posting blob.
func (r *PairReader) Next() (Index, []byte, error) {
	entry := r.indexes[r.pos]
	r.pos++
	blob := make([]byte, entry.Size)
	if _, err := io.ReadFull(r.data, blob); err != nil {
		return entry, nil, errors.Wrapf(err, "failed to read posting list for trigram %06x", entry.Trigram)
	}
	return entry, blob, nil
}

// RemovePair deletes both files of a pair, tolerating files already gone.
func (s *Store) RemovePair(name string) error {
	for _, suffix := range []string{".data", ".list"} {
		err := os.Remove(filepath.Join(s.path, name+suffix))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
