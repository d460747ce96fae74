package tree

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tfview/internal/changeset"
	"tfview/internal/errors"
	"tfview/internal/pending"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDirectChild(t *testing.T) {
	tests := []struct {
		dir, path string
		want      bool
	}{
		{"$/proj/src", "$/proj/src/a.ts", true},
		{"$/proj/src", "$/proj/src/sub/b.ts", false},
		{"$/proj/src", "$/proj/srcx/a.ts", false},
		{"$/proj/src", "$/proj/src", false},
		{"$/proj/src", "$/proj/src/", false},
		{"$/proj/src", "$/other/src/a.ts", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDirectChild(tt.dir, tt.path))
		})
	}
}

var items = []changeset.Item{
	{Type: "edit", Path: "$/Proj/Main/src/overlay.ts"},
	{Type: "add", Path: "$/Proj/Main/src/sub/tree.ts"},
	{Type: "edit", Path: "$/Proj/Main/src/parser.ts"},
	{Type: "delete", Path: "$/Proj/Main/docs/readme.md"},
}

func TestChangesetRoots(t *testing.T) {
	roots := ChangesetRoots(items)
	labels := make([]string, 0, len(roots))
	for _, r := range roots {
		assert.True(t, r.IsDirectory())
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"$/Proj/Main/src", "$/Proj/Main/src/sub", "$/Proj/Main/docs"}, labels)
	assert.Empty(t, ChangesetRoots(nil))
}

func TestChangesetChildren(t *testing.T) {
	children := ChangesetChildren(DirectoryNode("$/Proj/Main/src"), items)
	require.Len(t, children, 2)
	assert.Equal(t, "overlay.ts", children[0].Label)
	assert.Equal(t, "parser.ts", children[1].Label)
	assert.Equal(t, File, children[0].Kind)
	assert.Equal(t, "edit", children[0].Record.Type)

	file := children[0]
	assert.Empty(t, ChangesetChildren(file, items))
}

func TestDescribe(t *testing.T) {
	file := Node[changeset.Item]{Label: "a.ts", Kind: File, Path: "$/P/a.ts"}
	d := Describe(file, "diff-previous", "$/P/a.ts", "42")
	assert.Equal(t, Descriptor{Label: "a.ts", Path: "$/P/a.ts", Command: "diff-previous", Arguments: []string{"$/P/a.ts", "42"}}, d)

	dir := Describe(DirectoryNode("$/P"), "diff-previous")
	assert.True(t, dir.IsDirectory)
	assert.Empty(t, dir.Command)
}

type fixedSnapshot struct{ snap *pending.Snapshot }

func (f fixedSnapshot) Changes() *pending.Snapshot { return f.snap }

func mkfile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestOverlay(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "src", "deep", "nested", "changed.go"))
	mkfile(t, filepath.Join(root, "src", "Zeta.go"))
	mkfile(t, filepath.Join(root, "src", "alpha.go"))
	mkfile(t, filepath.Join(root, "clean", "untouched.go"))
	mkfile(t, filepath.Join(root, "README.md"))

	snap := pending.NewSnapshot([]pending.PendingChange{
		{FilePath: filepath.Join(root, "src", "deep", "nested", "changed.go"), Action: "edit"},
		{FilePath: filepath.Join(root, "src", "Zeta.go"), Action: "add"},
		{FilePath: filepath.Join(root, "src", "alpha.go"), Action: "edit"},
		{FilePath: filepath.Join(root, "README.md"), Action: "edit"},
	})
	overlay := NewOverlay(nil, root, fixedSnapshot{snap})
	ctx := context.Background()

	roots, err := overlay.Roots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "src", roots[0].Label)
	assert.True(t, roots[0].IsDirectory())
	assert.Equal(t, "README.md", roots[1].Label)
	assert.Equal(t, "edit", roots[1].Record.Action)

	children, err := overlay.Children(ctx, roots[0])
	require.NoError(t, err)
	labels := []string{}
	for _, c := range children {
		labels = append(labels, c.Label)
	}
	assert.Equal(t, []string{"deep", "alpha.go", "Zeta.go"}, labels)
	assert.Equal(t, "add", children[2].Record.Action)
}

func TestOverlay_MissingDirectory(t *testing.T) {
	root := t.TempDir()
	overlay := NewOverlay(OSFileSystem{}, root, fixedSnapshot{pending.NewSnapshot(nil)})

	_, err := overlay.ChildrenOf(context.Background(), filepath.Join(root, "gone"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOverlay_EmptySnapshotPrunesEverything(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "a.go"))
	overlay := NewOverlay(nil, root, fixedSnapshot{pending.NewSnapshot(nil)})

	roots, err := overlay.Roots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, roots)
}
