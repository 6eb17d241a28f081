// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

package index

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// MetaFormatVersion is bumped on any incompatible change to the on-disk
// layout.
const MetaFormatVersion = 1

// Meta describes one finished index build.
type Meta struct {
	Version     int    `json:"version"`
	NumFiles    int    `json:"nfiles"`
	NumTrigrams int    `json:"ntrigrams"`
	TotalSize   uint64 `json:"totalsize"`
	NumChunks   int    `json:"nchunks"`
}

// Save writes the metadata file into the store.
func (m *Meta) Save(s *Store) error {
	return s.WriteFile(MetaFilename, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(m)
	})
}

// Load reads the metadata file and verifies the format version.
func (m *Meta) Load(s *Store) error {
	file, err := s.Open(MetaFilename)
	if err != nil {
		return errors.Wrap(err, "open failed")
	}
	defer file.Close()

	err = json.NewDecoder(file).Decode(m)
	if err != nil {
		return errors.Wrap(err, "failed to parse the metadata file")
	}

	if m.Version != MetaFormatVersion {
		return errors.Errorf("unsupported index format version %d", m.Version)
	}

	return nil
}
