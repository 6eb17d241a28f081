// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

// Package search runs planned queries against an index and verifies the
// candidates line by line.
package search

import (
	"bufio"
	"bytes"
	"os"

	"github.com/tex/grip/errtag"
	"github.com/tex/grip/index"
	"github.com/tex/grip/pattern"
)

// maxLineSize bounds the line scanner; longer lines fail the file.
const maxLineSize = 4 * 1024 * 1024

// Result is one verified match.
type Result struct {
	FileID uint32
	Path   string
	LineNo int
	Line   []byte
	Match  pattern.Match

	// Binary marks a match inside a file containing NUL bytes; Line and
	// Match are not meaningful beyond the fact that the pattern occurred.
	Binary bool
}

// Searcher drives one pattern over the index. The candidate ids coming out
// of the planner are a superset of the true matches, so every candidate
// file is re-read and verified.
type Searcher struct {
	db  *index.Reader
	pat pattern.Pattern

	// FileError, when set, receives per-file read failures. Unreadable
	// candidates are skipped either way.
	FileError func(err error)
}

func New(db *index.Reader, pat pattern.Pattern) *Searcher {
	return &Searcher{db: db, pat: pat}
}

// Candidates plans the pattern and returns the ids whose files may match.
func (s *Searcher) Candidates() ([]uint32, error) {
	graph, err := s.pat.Tokenize()
	if err != nil {
		return nil, err
	}
	ids, err := graph.FindIds(s.db)
	if err != nil {
		return nil, err
	}
	return ids.ToArray(), nil
}

// Search verifies every candidate in ascending id order. The callback
// returns false to stop receiving matches from the current file, which
// turns repeated hits into one result per file.
func (s *Searcher) Search(fn func(res Result) bool) error {
	ids, err := s.Candidates()
	if err != nil {
		return err
	}
	for _, id := range ids {
		path := s.db.File(id)
		if err := s.searchFile(id, path, fn); err != nil {
			if s.FileError != nil {
				s.FileError(err)
			}
		}
	}
	return nil
}

func (s *Searcher) searchFile(id uint32, path string, fn func(res Result) bool) error {
	file, err := os.Open(path)
	if err != nil {
		return errtag.Wrap(err, "cannot read file").Add("path", path)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	binary := false
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if !binary && bytes.IndexByte(line, 0) >= 0 {
			binary = true
		}

		m, ok := s.pat.Match(line)
		if !ok {
			continue
		}
		if binary {
			fn(Result{FileID: id, Path: path, Binary: true})
			return nil
		}

		res := Result{
			FileID: id,
			Path:   path,
			LineNo: lineNo,
			Line:   append([]byte(nil), line...),
			Match:  m,
		}
		if !fn(res) {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return errtag.Wrap(err, "cannot read file").Add("path", path)
	}
	return nil
}
