package types

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *PositionTree {
	return &PositionTree{Positions: []Position{
		{ID: "src/FooTest.java", Type: PositionTypeFile, Path: "src/FooTest.java"},
		{ID: "pkg.Foo", Type: PositionTypeNamespace, Path: "src/FooTest.java"},
		{ID: "pkg.Foo.bar", Type: PositionTypeTest, Path: "src/FooTest.java"},
		{ID: "pkg.Foo.baz", Type: PositionTypeTest, Path: "src/FooTest.java"},
	}}
}

func TestTreeAccessors(t *testing.T) {
	tree := sampleTree()

	tests := tree.Tests()
	require.Len(t, tests, 2)
	assert.Equal(t, "pkg.Foo.bar", tests[0].ID)
	assert.Equal(t, "pkg.Foo.baz", tests[1].ID)

	containers := tree.Containers()
	require.Len(t, containers, 2)
	assert.Equal(t, PositionTypeFile, containers[0].Type)

	p, ok := tree.FindByID("pkg.Foo")
	require.True(t, ok)
	assert.Equal(t, PositionTypeNamespace, p.Type)

	_, ok = tree.FindByID("pkg.Missing")
	assert.False(t, ok)
}

func TestIsDescendantID(t *testing.T) {
	assert.True(t, IsDescendantID("pkg.Foo", "pkg.Foo.bar"))
	assert.False(t, IsDescendantID("pkg.Foo", "pkg.Foo"))
	assert.False(t, IsDescendantID("pkg.Foo", "pkg.Bar.baz"))
}

func TestValidate(t *testing.T) {
	tree := sampleTree()
	require.NoError(t, tree.Validate())

	dup := &PositionTree{Positions: []Position{
		{ID: "pkg.Foo", Type: PositionTypeNamespace},
		{ID: "pkg.Foo", Type: PositionTypeNamespace},
	}}
	assert.Error(t, dup.Validate())

	badType := &PositionTree{Positions: []Position{
		{ID: "pkg.Foo", Type: PositionType("gate")},
	}}
	assert.Error(t, badType.Validate())

	empty := &PositionTree{Positions: []Position{{Type: PositionTypeTest}}}
	assert.Error(t, empty.Validate())
}

func TestLoadTreeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.yaml")
	content := `positions:
  - id: src/FooTest.java
    type: file
    path: src/FooTest.java
  - id: pkg.Foo
    type: namespace
    path: src/FooTest.java
  - id: pkg.Foo.bar
    type: test
    path: src/FooTest.java
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tree, err := LoadTreeFile(path)
	require.NoError(t, err)
	require.Len(t, tree.Positions, 3)
	assert.Equal(t, PositionTypeTest, tree.Positions[2].Type)

	_, err = LoadTreeFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(":\t not yaml"), 0o644))
	_, err = LoadTreeFile(bad)
	assert.Error(t, err)
}

func TestCollectStats(t *testing.T) {
	tree := sampleTree()
	results := ResultSet{
		"pkg.Foo.bar": {Status: TestStatusFail},
	}
	s := CollectStats(tree, results)
	assert.Equal(t, Stats{Total: 2, Passed: 0, Failed: 1, NoData: 1}, s)
}
