package pattern

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tex/grip/index"
)

// fakeDB serves posting lists from a trigram-string map.
type fakeDB struct {
	postings map[string][]uint32
	files    int
}

func (d *fakeDB) Get(trigram uint32) (*index.CompressedIds, error) {
	ids := &index.CompressedIds{}
	for _, id := range d.postings[index.TrigramString(trigram)] {
		if err := ids.Append(id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (d *fakeDB) NumFiles() int {
	return d.files
}

func findIds(t *testing.T, g *Graph, db *fakeDB) []uint32 {
	t.Helper()
	bm, err := g.FindIds(db)
	require.NoError(t, err)
	return bm.ToArray()
}

func universe(n int) []uint32 {
	bm := roaring.New()
	bm.AddRange(0, uint64(n))
	return bm.ToArray()
}

func TestFixedStringCandidates(t *testing.T) {
	db := &fakeDB{
		files: 2,
		postings: map[string][]uint32{
			"ABC": {0},
			"BCD": {0, 1},
			"CDE": {0},
			"XBC": {1},
		},
	}

	g := ParseFixedString("BCD", true)
	assert.Equal(t, []uint32{0, 1}, findIds(t, g, db))

	g = ParseFixedString("ABC", true)
	assert.Equal(t, []uint32{0}, findIds(t, g, db))

	g = ParseFixedString("YYY", true)
	assert.Empty(t, findIds(t, g, db))

	// consecutive windows intersect
	g = ParseFixedString("ABCD", true)
	assert.Equal(t, []uint32{0}, findIds(t, g, db))
}

func TestFixedStringEmptyPattern(t *testing.T) {
	db := &fakeDB{files: 3}
	g := ParseFixedString("", true)
	assert.Equal(t, universe(3), findIds(t, g, db))
}

func TestFixedStringShortPattern(t *testing.T) {
	// no complete trigram window, every file is a candidate
	db := &fakeDB{files: 4, postings: map[string][]uint32{"abx": {0}}}
	g := ParseFixedString("ab", true)
	assert.Equal(t, universe(4), findIds(t, g, db))
}

func TestFixedStringCaseFold(t *testing.T) {
	db := &fakeDB{
		files: 4,
		postings: map[string][]uint32{
			"abc": {0},
			"ABC": {1},
			"aBc": {2},
			"xyz": {3},
		},
	}
	g := ParseFixedString("Abc", false)
	assert.Equal(t, []uint32{0, 1, 2}, findIds(t, g, db))
}

func TestCaseFoldKeepsNonAlpha(t *testing.T) {
	db := &fakeDB{
		files: 2,
		postings: map[string][]uint32{
			"a_b": {0},
			"A_B": {1},
		},
	}
	g := ParseFixedString("a_b", false)
	assert.Equal(t, []uint32{0, 1}, findIds(t, g, db))
}

func TestRegexClassCandidates(t *testing.T) {
	db := &fakeDB{
		files: 3,
		postings: map[string][]uint32{
			"abd": {0},
			"acd": {1},
			"aed": {2},
		},
	}
	g, err := ParseRegex("a[bc]d", true, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, findIds(t, g, db))
}

func TestRegexAlternation(t *testing.T) {
	db := &fakeDB{
		files: 5,
		postings: map[string][]uint32{
			"abe": {0}, "bef": {0},
			"cde": {1}, "def": {1, 4},
		},
	}

	g, err := ParseRegex("(ab|cd)ef", true, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, findIds(t, g, db))

	// basic syntax spells the same pattern with backslashes
	g, err = ParseRegex(`\(ab\|cd\)ef`, false, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, findIds(t, g, db))
}

func TestRegexDotBreaksWindow(t *testing.T) {
	db := &fakeDB{
		files: 3,
		postings: map[string][]uint32{
			"abc": {0, 1},
			"def": {0, 2},
			"bcd": {2},
		},
	}

	// both sides of the gap are still required
	g, err := ParseRegex("abc.def", true, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, findIds(t, g, db))

	// a pattern with no usable window matches everywhere
	g, err = ParseRegex("a.c", true, true)
	require.NoError(t, err)
	assert.Equal(t, universe(3), findIds(t, g, db))

	g, err = ParseRegex(".*", true, true)
	require.NoError(t, err)
	assert.Equal(t, universe(3), findIds(t, g, db))
}

func TestRegexStar(t *testing.T) {
	db := &fakeDB{
		files: 3,
		postings: map[string][]uint32{
			"abc": {0, 1},
			"def": {0, 2},
			"bcd": {1},
			"cde": {1},
		},
	}

	// the repeat branch requires only abc and def; file 0 lacks the
	// trigrams of the contiguous spelling but remains a candidate,
	// file 1 misses def and drops out
	g, err := ParseRegex("abc.*def", true, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, findIds(t, g, db))
}

func TestRegexPlus(t *testing.T) {
	db := &fakeDB{
		files: 3,
		postings: map[string][]uint32{
			"abc": {0, 1},
			"bcd": {0, 1},
			"cde": {0},
		},
	}

	// one pass through the group is mandatory
	g, err := ParseRegex("(abcd)+e", true, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, findIds(t, g, db))
}

func TestRegexOptional(t *testing.T) {
	db := &fakeDB{
		files: 4,
		postings: map[string][]uint32{
			"abc": {0, 1, 3},
			"bcd": {0},
			"cde": {0},
			"bce": {1},
		},
	}

	g, err := ParseRegex("abcd?e", true, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, findIds(t, g, db))
}

func TestRegexNegatedClass(t *testing.T) {
	db := &fakeDB{
		files: 2,
		postings: map[string][]uint32{
			"abc": {0},
			"def": {1},
		},
	}

	// [^x] is an unknown byte, so only the literal tail constrains
	g, err := ParseRegex("[^x]abc", true, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, findIds(t, g, db))
}

func TestRegexWideClassBecomesAny(t *testing.T) {
	db := &fakeDB{files: 5, postings: map[string][]uint32{"abc": {2}}}

	g, err := ParseRegex("[a-z]", true, true)
	require.NoError(t, err)
	assert.Equal(t, universe(5), findIds(t, g, db))
}

func TestRegexInterval(t *testing.T) {
	db := &fakeDB{
		files: 2,
		postings: map[string][]uint32{
			"abc": {0},
			"xyz": {1},
		},
	}

	// the interval atom is over-approximated away, abc still required
	g, err := ParseRegex("abcz{2,3}", true, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, findIds(t, g, db))
}

func TestRegexAnchorsAndBackrefs(t *testing.T) {
	db := &fakeDB{files: 3, postings: map[string][]uint32{"abc": {1}}}

	g, err := ParseRegex("^abc$", true, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, findIds(t, g, db))

	g, err = ParseRegex(`(abc)\1`, true, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, findIds(t, g, db))
}

func TestRegexCaseFold(t *testing.T) {
	db := &fakeDB{
		files: 3,
		postings: map[string][]uint32{
			"abd": {0},
			"ABD": {1},
			"acd": {2},
		},
	}
	g, err := ParseRegex("A[bc]D", true, false)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, findIds(t, g, db))
}

func TestRegexMalformed(t *testing.T) {
	for _, expr := range []string{"(abc", "a[bc", "*a", "a\\", "[]"} {
		_, err := ParseRegex(expr, true, true)
		assert.Error(t, err, "regex %q", expr)
	}

	// these are literals in basic syntax
	for _, expr := range []string{"*a", "a)b", "a{b"} {
		_, err := ParseRegex(expr, false, true)
		assert.NoError(t, err, "regex %q", expr)
	}
}

func TestIsUnambiguous(t *testing.T) {
	g := ParseFixedString("abc", true)
	assert.True(t, g.IsUnambiguous(3))

	g = ParseFixedString("ab", true)
	assert.False(t, g.IsUnambiguous(3))
	assert.True(t, g.IsUnambiguous(2))

	g, err := ParseRegex("a[bc]d", true, true)
	require.NoError(t, err)
	assert.True(t, g.IsUnambiguous(3))

	g, err = ParseRegex("a.cd", true, true)
	require.NoError(t, err)
	assert.False(t, g.IsUnambiguous(3))
	assert.True(t, g.IsUnambiguous(2))

	g, err = ParseRegex("abc|xy", true, true)
	require.NoError(t, err)
	assert.False(t, g.IsUnambiguous(3))

	g, err = ParseRegex(".*", true, true)
	require.NoError(t, err)
	assert.False(t, g.IsUnambiguous(1))
}

func TestFindIdsDeterministic(t *testing.T) {
	db := &fakeDB{
		files: 8,
		postings: map[string][]uint32{
			"abd": {0, 3}, "acd": {1}, "ABD": {4}, "ACD": {5},
		},
	}
	g, err := ParseRegex("a[bc]d", true, false)
	require.NoError(t, err)
	want := findIds(t, g, db)
	for i := 0; i < 10; i++ {
		g, err := ParseRegex("a[bc]d", true, false)
		require.NoError(t, err)
		assert.Equal(t, want, findIds(t, g, db))
	}
}
