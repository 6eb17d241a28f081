// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

package index

import (
	"github.com/pkg/errors"
)

// mergePairs combines two sorted pairs into one. Trigrams present on only
// one side are copied verbatim; trigrams on both sides get the union of
// their posting lists.
func mergePairs(s *Store, nameA, nameB, out string) (int, uint64, error) {
	a, err := s.OpenPair(nameA)
	if err != nil {
		return 0, 0, err
	}
	defer a.Close()

	b, err := s.OpenPair(nameB)
	if err != nil {
		return 0, 0, err
	}
	defer b.Close()

	return s.WritePair(out, func(w *PairWriter) error {
		for {
			entryA, okA := a.Peek()
			entryB, okB := b.Peek()
			if !okA && !okB {
				return nil
			}

			switch {
			case !okB || (okA && entryA.Trigram < entryB.Trigram):
				entry, blob, err := a.Next()
				if err != nil {
					return err
				}
				if err := w.Add(entry.Trigram, entry.LastID, blob); err != nil {
					return err
				}
			case !okA || entryB.Trigram < entryA.Trigram:
				entry, blob, err := b.Next()
				if err != nil {
					return err
				}
				if err := w.Add(entry.Trigram, entry.LastID, blob); err != nil {
					return err
				}
			default:
				entry, blobA, err := a.Next()
				if err != nil {
					return err
				}
				_, blobB, err := b.Next()
				if err != nil {
					return err
				}
				var idsA, idsB CompressedIds
				copy(idsA.SetData(len(blobA), entry.LastID), blobA)
				copy(idsB.SetData(len(blobB), entryB.LastID), blobB)
				merged, err := idsA.Merge(&idsB)
				if err != nil {
					return errors.Wrapf(err, "failed to merge posting lists for trigram %06x", entry.Trigram)
				}
				if err := w.Add(entry.Trigram, merged.LastID(), merged.Bytes()); err != nil {
					return err
				}
			}
		}
	})
}

// copyPair rewrites a single pair under a new base name.
func copyPair(s *Store, name, out string) (int, uint64, error) {
	src, err := s.OpenPair(name)
	if err != nil {
		return 0, 0, err
	}
	defer src.Close()

	return s.WritePair(out, func(w *PairWriter) error {
		for {
			if _, ok := src.Peek(); !ok {
				return nil
			}
			entry, blob, err := src.Next()
			if err != nil {
				return err
			}
			if err := w.Add(entry.Trigram, entry.LastID, blob); err != nil {
				return err
			}
		}
	})
}
