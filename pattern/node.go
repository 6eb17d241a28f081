// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

// Package pattern turns search patterns into trigram query plans.
//
// A pattern is parsed into an acyclic node graph whose every root-to-end
// path spells out one byte sequence the pattern may match. Sliding a
// 3-byte window along a path yields trigrams that must all be present in a
// matching file; alternation branches contribute the union of their
// candidates. The resulting id set is a necessary condition only, so every
// candidate is re-verified against the real pattern afterwards.
package pattern

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"

	"github.com/tex/grip/index"
)

// Node values above the byte range.
const (
	valEmpty = 256 + iota // epsilon, contributes nothing
	valSplit              // alternation fan-out
	valEnd                // terminal, no successors
	valAny                // unknown byte, breaks the trigram window
)

type node struct {
	val  int
	next []int32
}

// Graph is an arena-allocated pattern DAG rooted at an epsilon node.
type Graph struct {
	nodes []node
	root  int32
}

func (g *Graph) add(val int) int32 {
	g.nodes = append(g.nodes, node{val: val})
	return int32(len(g.nodes) - 1)
}

func (g *Graph) link(from, to int32) {
	g.nodes[from].next = append(g.nodes[from].next, to)
}

// Database is the index access the planner needs.
type Database interface {
	Get(trigram uint32) (*index.CompressedIds, error)
	NumFiles() int
}

func isAlpha(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func toLower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 'a' - 'A'
	}
	return b
}

func toUpper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// ParseFixedString builds the graph of a literal pattern: a chain of
// literal nodes. In case-insensitive mode every alpha byte is expanded
// into a lower/upper alternative.
func ParseFixedString(s string, caseSensitive bool) *Graph {
	g := &Graph{}
	g.root = g.add(valEmpty)
	cur := g.root
	for i := 0; i < len(s); i++ {
		b := s[i]
		if !caseSensitive {
			b = toLower(b)
		}
		n := g.add(int(b))
		g.link(cur, n)
		cur = n
	}
	g.link(cur, g.add(valEnd))
	if !caseSensitive {
		g.permuteCase()
	}
	return g
}

// permuteCase rewrites every alpha literal into a split between its lower
// and upper variant, lower first.
func (g *Graph) permuteCase() {
	count := len(g.nodes)
	for i := 0; i < count; i++ {
		v := g.nodes[i].val
		if v > 255 || !isAlpha(byte(v)) {
			continue
		}
		lo := g.add(int(toLower(byte(v))))
		up := g.add(int(toUpper(byte(v))))
		g.nodes[lo].next = g.nodes[i].next
		g.nodes[up].next = g.nodes[i].next
		g.nodes[i].val = valSplit
		g.nodes[i].next = []int32{lo, up}
	}
}

// IsUnambiguous reports whether every path through the graph passes
// through at least chars consecutive literal bytes, i.e. whether the
// planner can extract a usable trigram from every alternative.
func (g *Graph) IsUnambiguous(chars int) bool {
	memo := make(map[int64]bool)
	return g.unambiguous(g.root, 0, chars, memo)
}

func (g *Graph) unambiguous(n int32, run, chars int, memo map[int64]bool) bool {
	if run >= chars {
		return true
	}
	key := int64(n)<<8 | int64(run)
	if v, ok := memo[key]; ok {
		return v
	}
	memo[key] = true // break diamond re-entry optimistically; the DAG is acyclic

	nd := &g.nodes[n]
	result := true
	switch {
	case nd.val == valEnd:
		result = false
	case nd.val == valAny:
		run = 0
	case nd.val <= 255:
		run++
	}
	if result && run < chars {
		for _, next := range nd.next {
			if !g.unambiguous(next, run, chars, memo) {
				result = false
				break
			}
		}
	}
	memo[key] = result
	return result
}

// FindIds returns the candidate file ids for the pattern: per path the
// intersection of the posting lists of every complete trigram window,
// united across alternation branches. A path with no usable window
// contributes every file.
func (g *Graph) FindIds(db Database) (*roaring.Bitmap, error) {
	universe := roaring.New()
	universe.AddRange(0, uint64(db.NumFiles()))

	f := &finder{
		g:        g,
		db:       db,
		res:      roaring.New(),
		postings: make(map[uint32]*roaring.Bitmap),
	}
	if err := f.walk(g.root, 0, 0, universe); err != nil {
		return nil, err
	}
	return f.res, nil
}

type finder struct {
	g        *Graph
	db       Database
	res      *roaring.Bitmap
	postings map[uint32]*roaring.Bitmap
}

func (f *finder) posting(trigram uint32) (*roaring.Bitmap, error) {
	if bm, ok := f.postings[trigram]; ok {
		return bm, nil
	}
	ids, err := f.db.Get(trigram)
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	err = ids.Each(func(id uint32) { bm.Add(id) })
	if err != nil {
		return nil, errors.Wrapf(err, "trigram %06x", trigram)
	}
	f.postings[trigram] = bm
	return bm, nil
}

// walk descends one path, carrying the byte window and the id set
// intersected so far. cur is shared between branches and must not be
// mutated in place.
func (f *finder) walk(n int32, window uint32, wlen int, cur *roaring.Bitmap) error {
	nd := &f.g.nodes[n]
	switch {
	case nd.val == valEnd:
		f.res.Or(cur)
		return nil
	case nd.val == valAny:
		wlen = 0
	case nd.val <= 255:
		window = (window<<8 | uint32(nd.val)) & 0xffffff
		wlen++
		if wlen >= 3 {
			bm, err := f.posting(window)
			if err != nil {
				return err
			}
			cur = roaring.And(cur, bm)
			if cur.IsEmpty() {
				// nothing on this path can match
				return nil
			}
		}
	}
	for _, next := range nd.next {
		if err := f.walk(next, window, wlen, cur); err != nil {
			return err
		}
	}
	return nil
}
