// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

// Package glob filters candidate paths by basename patterns before they
// reach the indexer.
package glob

import (
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/tex/grip/errtag"
)

// Glob holds include and exclude patterns. Excludes win over includes;
// with no includes everything not excluded passes.
type Glob struct {
	includes      []string
	excludes      []string
	caseSensitive bool

	includeMatcher *ignore.GitIgnore
	excludeMatcher *ignore.GitIgnore
}

func New() *Glob {
	return &Glob{caseSensitive: true}
}

// AddInclude registers a pattern a file must match to be accepted.
func (g *Glob) AddInclude(pattern string) {
	g.includes = append(g.includes, pattern)
	g.includeMatcher = nil
}

// AddExclude registers a pattern that rejects matching files.
func (g *Glob) AddExclude(pattern string) {
	g.excludes = append(g.excludes, pattern)
	g.excludeMatcher = nil
}

// CaseSensitive toggles case-sensitive matching, on by default.
func (g *Glob) CaseSensitive(enable bool) {
	g.caseSensitive = enable
	g.includeMatcher = nil
	g.excludeMatcher = nil
}

func (g *Glob) compile() error {
	if g.includeMatcher == nil && len(g.includes) > 0 {
		m, err := compileLines(g.includes, g.caseSensitive)
		if err != nil {
			return err
		}
		g.includeMatcher = m
	}
	if g.excludeMatcher == nil && len(g.excludes) > 0 {
		m, err := compileLines(g.excludes, g.caseSensitive)
		if err != nil {
			return err
		}
		g.excludeMatcher = m
	}
	return nil
}

func compileLines(patterns []string, caseSensitive bool) (*ignore.GitIgnore, error) {
	lines := make([]string, len(patterns))
	for i, pattern := range patterns {
		if !caseSensitive {
			pattern = foldPattern(pattern)
		}
		lines[i] = pattern
	}
	m := ignore.CompileIgnoreLines(lines...)
	if m == nil {
		return nil, errtag.New("invalid glob pattern")
	}
	return m, nil
}

// foldPattern rewrites each alpha byte into a two-way class, the matcher
// itself is always case-sensitive.
func foldPattern(pattern string) string {
	var out []byte
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, '[', c, c-('a'-'A'), ']')
		case c >= 'A' && c <= 'Z':
			out = append(out, '[', c+('a'-'A'), c, ']')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// Compare reports whether the file may be indexed. Patterns apply to the
// basename only, mirroring find-style filtering.
func (g *Glob) Compare(path string) (bool, error) {
	if err := g.compile(); err != nil {
		return false, errtag.Wrap(err, "invalid glob pattern").Add("path", path)
	}

	name := filepath.Base(path)
	if g.excludeMatcher != nil && g.excludeMatcher.MatchesPath(name) {
		return false, nil
	}
	if len(g.includes) == 0 {
		return true, nil
	}
	return g.includeMatcher != nil && g.includeMatcher.MatchesPath(name), nil
}
