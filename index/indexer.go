// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

package index

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/tex/grip/errtag"
)

// finalPairName is the base name of the merged data/list pair.
const finalPairName = "trigrams"

// Indexer tokenizes files into trigrams and accumulates posting lists in
// memory. When the encoded size crosses the chunk budget the caller flushes
// a sorted chunk with Write; SortDatabase merges all chunks into the final
// index. An Indexer must not be used from more than one goroutine.
type Indexer struct {
	store     *Store
	postings  map[uint32]*CompressedIds
	files     FileList
	buffered  int
	chunks    []string
	nextChunk int

	numFiles  int
	totalSize uint64
	dbSize    uint64
}

// NewIndexer creates an indexer writing into the given store.
func NewIndexer(store *Store) *Indexer {
	return &Indexer{
		store:    store,
		postings: make(map[uint32]*CompressedIds),
	}
}

// undoEntry captures the pre-file state of one posting list so a failed
// file can be rolled back without disturbing the id sequence.
type undoEntry struct {
	created bool
	size    int
	lastID  uint32
	count   int
}

// IndexFile assigns the next file id to path and appends it to the posting
// list of every trigram in the file. On any read error the partial insert
// is undone: posting lists are truncated to their pre-file state and the
// file table entry is removed, so the next file gets the same id.
func (ix *Indexer) IndexFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errtag.Wrap(err, "cannot open file").Add("path", path)
	}
	defer file.Close()

	id, err := ix.files.Add(path)
	if err != nil {
		return err
	}

	undo := make(map[uint32]undoEntry)
	reader := bufio.NewReaderSize(file, 64*1024)

	var trigram uint32
	var size uint64
	for {
		b, err := reader.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			ix.rollback(undo)
			ix.files.RemoveLast()
			return errtag.Wrap(err, "cannot read file").Add("path", path)
		}
		size++
		trigram = (trigram<<8 | uint32(b)) & 0xffffff
		if size >= 3 {
			if err := ix.insert(trigram, id, undo); err != nil {
				ix.rollback(undo)
				ix.files.RemoveLast()
				return err
			}
		}
	}

	ix.numFiles++
	ix.totalSize += size
	return nil
}

func (ix *Indexer) insert(trigram, id uint32, undo map[uint32]undoEntry) error {
	list, ok := ix.postings[trigram]
	if !ok {
		list = &CompressedIds{}
		ix.postings[trigram] = list
		if _, seen := undo[trigram]; !seen {
			undo[trigram] = undoEntry{created: true}
		}
	} else {
		if _, seen := undo[trigram]; !seen {
			undo[trigram] = undoEntry{size: list.Size(), lastID: list.LastID(), count: list.count}
		}
		// the file id is constant for the whole file, so one posting entry
		// covers every occurrence of the trigram
		if list.LastID() == id && !list.Empty() {
			return nil
		}
	}

	before := list.Size()
	if err := list.Append(id); err != nil {
		return err
	}
	ix.buffered += list.Size() - before
	return nil
}

func (ix *Indexer) rollback(undo map[uint32]undoEntry) {
	for trigram, entry := range undo {
		list := ix.postings[trigram]
		if list == nil {
			continue
		}
		ix.buffered -= list.Size() - entry.size
		if entry.created {
			delete(ix.postings, trigram)
			continue
		}
		list.data = list.data[:entry.size]
		list.lastID = entry.lastID
		list.count = entry.count
	}
}

// Size returns the encoded size of all buffered posting lists. The caller
// flushes with Write once this reaches the chunk budget.
func (ix *Indexer) Size() int {
	return ix.buffered
}

// NumFiles returns the number of successfully indexed files.
func (ix *Indexer) NumFiles() int {
	return ix.numFiles
}

// TotalSize returns the number of content bytes indexed so far.
func (ix *Indexer) TotalSize() uint64 {
	return ix.totalSize
}

// DatabaseSize returns the on-disk size of the final index, known after
// SortDatabase.
func (ix *Indexer) DatabaseSize() uint64 {
	return ix.dbSize
}

// NumChunks returns the number of chunk names used so far: the chunks
// flushed by Write and, once SortDatabase has run, the intermediate merge
// outputs as well.
func (ix *Indexer) NumChunks() int {
	return ix.nextChunk
}

func chunkName(n int) string {
	return fmt.Sprintf("chunk-%06d", n)
}

// Write flushes the buffered posting lists into a new sorted chunk and
// clears the in-memory state.
func (ix *Indexer) Write() error {
	name := chunkName(ix.nextChunk)
	if _, _, err := ix.flushPostings(name); err != nil {
		return errors.Wrapf(err, "failed to write chunk %v", name)
	}
	ix.nextChunk++
	ix.chunks = append(ix.chunks, name)
	ix.postings = make(map[uint32]*CompressedIds)
	ix.buffered = 0
	return nil
}

// flushPostings writes the in-memory postings as a sorted pair.
func (ix *Indexer) flushPostings(name string) (int, uint64, error) {
	trigrams := make([]uint32, 0, len(ix.postings))
	for trigram := range ix.postings {
		trigrams = append(trigrams, trigram)
	}
	sort.Slice(trigrams, func(i, j int) bool { return trigrams[i] < trigrams[j] })

	return ix.store.WritePair(name, func(w *PairWriter) error {
		for _, trigram := range trigrams {
			list := ix.postings[trigram]
			if err := w.Add(trigram, list.LastID(), list.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

// SortDatabase merges everything written so far into the final index pair
// and stores the file list and build metadata beside it.
func (ix *Indexer) SortDatabase() error {
	chunksWritten := ix.nextChunk

	var numTrigrams int
	var size uint64
	if len(ix.chunks) == 0 {
		n, sz, err := ix.flushPostings(finalPairName)
		if err != nil {
			return errors.Wrap(err, "failed to write the index")
		}
		numTrigrams, size = n, sz
	} else {
		if len(ix.postings) > 0 {
			if err := ix.Write(); err != nil {
				return err
			}
			chunksWritten = ix.nextChunk
		}
		n, sz, err := ix.mergeAll()
		if err != nil {
			return err
		}
		numTrigrams, size = n, sz
	}
	ix.dbSize = size

	err := ix.store.WriteFile(FileListFilename, ix.files.Write)
	if err != nil {
		return errors.Wrap(err, "failed to write the file list")
	}

	meta := Meta{
		Version:     MetaFormatVersion,
		NumFiles:    ix.files.Size(),
		NumTrigrams: numTrigrams,
		TotalSize:   ix.totalSize,
		NumChunks:   chunksWritten,
	}
	return errors.Wrap(meta.Save(ix.store), "failed to write the metadata")
}

// mergeAll reduces the chunk list to the final pair with pairwise merges,
// oldest chunks first.
func (ix *Indexer) mergeAll() (int, uint64, error) {
	for len(ix.chunks) > 1 {
		a, b := ix.chunks[0], ix.chunks[1]
		out := chunkName(ix.nextChunk)
		last := len(ix.chunks) == 2
		if last {
			out = finalPairName
		} else {
			ix.nextChunk++
		}

		n, size, err := mergePairs(ix.store, a, b, out)
		if err != nil {
			return 0, 0, err
		}
		if err := ix.store.RemovePair(a); err != nil {
			return 0, 0, err
		}
		if err := ix.store.RemovePair(b); err != nil {
			return 0, 0, err
		}
		if last {
			ix.chunks = nil
			return n, size, nil
		}
		ix.chunks = append(ix.chunks[2:], out)
	}

	// a single chunk becomes the final pair as-is
	name := ix.chunks[0]
	n, size, err := copyPair(ix.store, name, finalPairName)
	if err != nil {
		return 0, 0, err
	}
	if err := ix.store.RemovePair(name); err != nil {
		return 0, 0, err
	}
	ix.chunks = nil
	return n, size, nil
}
