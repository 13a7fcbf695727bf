package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopic_PrefixMatchingIsComponentAligned(t *testing.T) {
	f := Filter{"a/b"}

	assert.True(t, f.Matches("a/b"))
	assert.True(t, f.Matches("a/b/c"))
	assert.False(t, f.Matches("a"))
	assert.False(t, f.Matches("a/bc"))
	assert.False(t, f.Matches("x/a/b"))
}

func TestFilter_MatchesAnyElement(t *testing.T) {
	f := Filter{"x", "y/z"}

	assert.True(t, f.Matches("x/deep/topic"))
	assert.True(t, f.Matches("y/z"))
	assert.False(t, f.Matches("y"))
	assert.False(t, f.Matches("z"))
}

func TestFilter_ExtendKeepsCanonicalForm(t *testing.T) {
	var f Filter

	assert.True(t, f.Extend("a/b"))
	assert.True(t, f.Extend("c"))

	// A longer topic is absorbed by its existing prefix.
	assert.False(t, f.Extend("a/b/c"))
	assert.False(t, f.Extend("c/d/e"))

	// A shorter topic replaces the longer elements it covers.
	assert.True(t, f.Extend("a"))
	assert.True(t, f.Equal(Filter{"a", "c"}))
}

func TestFilter_ExtendIsIdempotent(t *testing.T) {
	var f Filter
	f.Extend("a/b", "c")

	assert.False(t, f.Extend("a/b", "c"))
	assert.True(t, f.Equal(Filter{"a/b", "c"}))
}

func TestFilter_ExtendIsCommutative(t *testing.T) {
	var left Filter
	left.Extend("a")
	left.Extend("a/b")
	left.Extend("x/y")

	var right Filter
	right.Extend("x/y")
	right.Extend("a/b")
	right.Extend("a")

	assert.True(t, left.Equal(right))
}

func TestFilter_CloneIsIndependent(t *testing.T) {
	f := Filter{"a"}
	c := f.Clone()
	c.Extend("b")

	assert.True(t, f.Equal(Filter{"a"}))
	assert.True(t, c.Equal(Filter{"a", "b"}))
}
