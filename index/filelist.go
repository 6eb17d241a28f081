// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

package index

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/tex/grip/errtag"
)

// FileList is the bijection between file paths and dense 32-bit ids.
// Ids are assigned in insertion order starting at 0. On disk the list is a
// uint32 count followed by NUL-terminated paths.
type FileList struct {
	paths []string
	ids   map[string]uint32
}

// Add assigns the next id to path. Adding a path twice is an error, so the
// id space stays dense and stable for the whole build.
func (l *FileList) Add(path string) (uint32, error) {
	if l.ids == nil {
		l.ids = make(map[string]uint32)
	}
	if _, ok := l.ids[path]; ok {
		return 0, errtag.New("file already indexed").Add("path", path)
	}
	id := uint32(len(l.paths))
	l.paths = append(l.paths, path)
	l.ids[path] = id
	return id, nil
}

// RemoveLast drops the most recently added path, undoing one Add.
func (l *FileList) RemoveLast() {
	if len(l.paths) == 0 {
		return
	}
	last := l.paths[len(l.paths)-1]
	l.paths = l.paths[:len(l.paths)-1]
	delete(l.ids, last)
}

// Get returns the path for an id. The id must be in range.
func (l *FileList) Get(id uint32) string {
	return l.paths[id]
}

// Size returns the number of files in the list.
func (l *FileList) Size() int {
	return len(l.paths)
}

// Paths returns the id-ordered path slice, owned by the list.
func (l *FileList) Paths() []string {
	return l.paths
}

// Write serializes the list. The writer is expected to be buffered.
func (l *FileList) Write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(l.paths))); err != nil {
		return err
	}
	for _, path := range l.paths {
		if _, err := io.WriteString(w, path); err != nil {
			return err
		}
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	}
	return nil
}

// Read replaces the list contents with the serialized form from r. The
// path-to-id map is not rebuilt; a loaded list only serves id lookups.
func (l *FileList) Read(r io.Reader) error {
	reader := bufio.NewReader(r)
	var count uint32
	if err := binary.Read(reader, binary.LittleEndian, &count); err != nil {
		return errors.Wrap(err, "failed to read the file list header")
	}
	paths := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		path, err := reader.ReadString(0)
		if err != nil {
			return errors.Wrapf(err, "failed to read file list entry %d", i)
		}
		paths = append(paths, path[:len(path)-1])
	}
	l.paths = paths
	l.ids = nil
	return nil
}
