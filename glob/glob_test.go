package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accepts(t *testing.T, g *Glob, path string) bool {
	t.Helper()
	ok, err := g.Compare(path)
	require.NoError(t, err)
	return ok
}

func TestGlobDefaultAcceptsEverything(t *testing.T) {
	g := New()
	assert.True(t, accepts(t, g, "src/main.go"))
	assert.True(t, accepts(t, g, "README"))
}

func TestGlobExclude(t *testing.T) {
	g := New()
	g.AddExclude("*.o")
	g.AddExclude("*.min.js")

	assert.True(t, accepts(t, g, "src/main.go"))
	assert.False(t, accepts(t, g, "build/main.o"))
	assert.False(t, accepts(t, g, "assets/app.min.js"))
}

func TestGlobInclude(t *testing.T) {
	g := New()
	g.AddInclude("*.go")
	g.AddInclude("*.c")

	assert.True(t, accepts(t, g, "pkg/indexer.go"))
	assert.True(t, accepts(t, g, "lib/util.c"))
	assert.False(t, accepts(t, g, "notes.txt"))
}

func TestGlobExcludeWinsOverInclude(t *testing.T) {
	g := New()
	g.AddInclude("*.go")
	g.AddExclude("*_gen.go")

	assert.True(t, accepts(t, g, "indexer.go"))
	assert.False(t, accepts(t, g, "bits_gen.go"))
}

func TestGlobBasenameOnly(t *testing.T) {
	g := New()
	g.AddExclude("vendor")

	// the pattern applies to the basename, not the directory
	assert.True(t, accepts(t, g, "vendor/lib.go"))
	assert.False(t, accepts(t, g, "third_party/vendor"))
}

func TestGlobCaseInsensitive(t *testing.T) {
	g := New()
	g.AddInclude("*.go")
	g.CaseSensitive(false)

	assert.True(t, accepts(t, g, "main.GO"))
	assert.True(t, accepts(t, g, "main.go"))

	g.CaseSensitive(true)
	assert.False(t, accepts(t, g, "main.GO"))
}
