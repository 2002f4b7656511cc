package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editorkit/testbridge/junitxml"
	"github.com/editorkit/testbridge/types"
)

func TestStripParams(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "divides", "divides"},
		{"parameterized", "divides(3, 12)", "divides"},
		{"nested parens", "divides((1), (2))", "divides"},
		{"empty parens", "divides()", "divides"},
		{"no trailing suffix", "div(3)ides", "div(3)ides"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripParams(tt.in))
		})
	}
}

func TestCandidateIDs(t *testing.T) {
	t.Run("plain class", func(t *testing.T) {
		cands := CandidateIDs("pkg.Foo", "bar")
		assert.Equal(t, []string{"pkg.Foo.bar"}, cands)
	})

	t.Run("nested class adds normalized fallback", func(t *testing.T) {
		cands := CandidateIDs("pkg.Outer$Inner", "method")
		assert.Equal(t, []string{
			"pkg.Outer$Inner.method",
			"pkg.Outer.Inner.method",
		}, cands)
	})

	t.Run("parameter suffix stripped before building", func(t *testing.T) {
		cands := CandidateIDs("pkg.Foo", "bar(7, true)")
		assert.Equal(t, []string{"pkg.Foo.bar"}, cands)
	})
}

func TestMatch(t *testing.T) {
	tree := &types.PositionTree{Positions: []types.Position{
		{ID: "pkg.Foo", Type: types.PositionTypeNamespace},
		{ID: "pkg.Foo.bar", Type: types.PositionTypeTest},
		{ID: "pkg.Outer.Inner.method", Type: types.PositionTypeTest},
	}}

	t.Run("exact id", func(t *testing.T) {
		pos, ok := Match(tree, junitxml.TestCase{ClassName: "pkg.Foo", Name: "bar"})
		require.True(t, ok)
		assert.Equal(t, "pkg.Foo.bar", pos.ID)
	})

	t.Run("nested class falls back to normalized id", func(t *testing.T) {
		pos, ok := Match(tree, junitxml.TestCase{ClassName: "pkg.Outer$Inner", Name: "method"})
		require.True(t, ok)
		assert.Equal(t, "pkg.Outer.Inner.method", pos.ID)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := Match(tree, junitxml.TestCase{ClassName: "pkg.Unknown", Name: "nope"})
		assert.False(t, ok)
	})

	t.Run("namespace positions are never matched", func(t *testing.T) {
		_, ok := Match(tree, junitxml.TestCase{ClassName: "pkg", Name: "Foo"})
		assert.False(t, ok)
	})
}

// When the raw and the normalized candidate could each match a different
// position, candidate priority wins over position order.
func TestMatchCandidatePriority(t *testing.T) {
	tree := &types.PositionTree{Positions: []types.Position{
		// Normalized form listed first in the tree
		{ID: "pkg.Outer.Inner.method", Type: types.PositionTypeTest},
		{ID: "pkg.Outer$Inner.method", Type: types.PositionTypeTest},
	}}

	pos, ok := Match(tree, junitxml.TestCase{ClassName: "pkg.Outer$Inner", Name: "method"})
	require.True(t, ok)
	assert.Equal(t, "pkg.Outer$Inner.method", pos.ID)
}
