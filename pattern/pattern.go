// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

package pattern

import (
	"bytes"
	"regexp"

	"github.com/tex/grip/errtag"
)

// Mode selects how the pattern text is interpreted.
type Mode int

const (
	Fixed Mode = iota
	Basic
	Extended
)

// Match is the location of a pattern hit within a line.
type Match struct {
	Pos int
	Len int
}

// Pattern pairs a query plan with the exact matcher used to verify
// candidate lines.
type Pattern interface {
	// Tokenize builds the trigram planner graph for the pattern.
	Tokenize() (*Graph, error)

	// Match finds the first occurrence of the pattern in a line.
	Match(line []byte) (Match, bool)
}

// New creates a pattern for the given mode.
func New(expr string, mode Mode, caseSensitive bool) (Pattern, error) {
	if mode == Fixed {
		if caseSensitive {
			return &literalPattern{expr: []byte(expr)}, nil
		}
		return &literalFoldPattern{expr: lowerBytes([]byte(expr))}, nil
	}
	return newRegexPattern(expr, mode == Extended, caseSensitive)
}

func lowerBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = toLower(b[i])
	}
	return out
}

type literalPattern struct {
	expr []byte
}

func (p *literalPattern) Tokenize() (*Graph, error) {
	return ParseFixedString(string(p.expr), true), nil
}

func (p *literalPattern) Match(line []byte) (Match, bool) {
	pos := bytes.Index(line, p.expr)
	if pos < 0 {
		return Match{}, false
	}
	return Match{Pos: pos, Len: len(p.expr)}, true
}

type literalFoldPattern struct {
	expr []byte
}

func (p *literalFoldPattern) Tokenize() (*Graph, error) {
	return ParseFixedString(string(p.expr), false), nil
}

func (p *literalFoldPattern) Match(line []byte) (Match, bool) {
	if len(p.expr) == 0 {
		return Match{}, true
	}
	j := 0
	for i := 0; i < len(line); i++ {
		if toLower(line[i]) == p.expr[j] {
			j++
			if j == len(p.expr) {
				return Match{Pos: i - j + 1, Len: j}, true
			}
		} else {
			i -= j
			j = 0
		}
	}
	return Match{}, false
}

type regexPattern struct {
	expr          string
	re            *regexp.Regexp
	extended      bool
	caseSensitive bool
}

func newRegexPattern(expr string, extended, caseSensitive bool) (*regexPattern, error) {
	src := expr
	if !extended {
		src = basicToExtended(src)
	}

	var re *regexp.Regexp
	var err error
	if caseSensitive {
		re, err = regexp.CompilePOSIX(src)
	} else {
		re, err = regexp.Compile("(?i)(?:" + src + ")")
	}
	if err != nil {
		return nil, errtag.Wrap(ErrMalformedRegex, "cannot compile").
			Add("regex", expr).
			Add("msg", err.Error())
	}

	return &regexPattern{
		expr:          expr,
		re:            re,
		extended:      extended,
		caseSensitive: caseSensitive,
	}, nil
}

func (p *regexPattern) Tokenize() (*Graph, error) {
	return ParseRegex(p.expr, p.extended, p.caseSensitive)
}

func (p *regexPattern) Match(line []byte) (Match, bool) {
	loc := p.re.FindIndex(line)
	if loc == nil {
		return Match{}, false
	}
	return Match{Pos: loc[0], Len: loc[1] - loc[0]}, true
}

// basicToExtended rewrites a POSIX basic expression into the equivalent
// extended one: grouping, alternation and the GNU quantifiers lose their
// backslash, while the bare metacharacters gain one.
func basicToExtended(src string) string {
	var out []byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			e := src[i+1]
			i++
			switch e {
			case '(', ')', '{', '}', '|', '?', '+':
				out = append(out, e)
			default:
				out = append(out, '\\', e)
			}
			continue
		}
		switch c {
		case '(', ')', '{', '}', '|', '?', '+':
			out = append(out, '\\', c)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
