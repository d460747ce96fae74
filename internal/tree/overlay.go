package tree

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"tfview/internal/errors"
	"tfview/internal/pending"
)

// FileSystem lists directory entries. OSFileSystem is the real implementation.
type FileSystem interface {
	ReadDir(name string) ([]fs.DirEntry, error)
}

type OSFileSystem struct{}

func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

// SnapshotSource yields the current pending set. *pending.Repository satisfies it.
type SnapshotSource interface {
	Changes() *pending.Snapshot
}

// Overlay is the real workspace tree filtered down to entries that lead to a
// pending change.
type Overlay struct {
	fs      FileSystem
	root    string
	pending SnapshotSource
}

func NewOverlay(fsys FileSystem, root string, source SnapshotSource) *Overlay {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	return &Overlay{fs: fsys, root: root, pending: source}
}

func (o *Overlay) Root() string {
	return o.root
}

// Roots lists the workspace root.
func (o *Overlay) Roots(ctx context.Context) ([]Node[pending.PendingChange], error) {
	return o.list(ctx, o.root)
}

// Children lists dir. Filesystem failures, including a directory that vanished
// since the last poll, are returned to the caller.
func (o *Overlay) Children(ctx context.Context, dir Node[pending.PendingChange]) ([]Node[pending.PendingChange], error) {
	if !dir.IsDirectory() {
		return []Node[pending.PendingChange]{}, nil
	}
	return o.list(ctx, dir.Path)
}

// ChildrenOf lists an arbitrary directory path.
func (o *Overlay) ChildrenOf(ctx context.Context, path string) ([]Node[pending.PendingChange], error) {
	return o.list(ctx, path)
}

func (o *Overlay) list(ctx context.Context, dir string) ([]Node[pending.PendingChange], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := o.fs.ReadDir(dir)
	if err != nil {
		return nil, errors.FromFS(err)
	}

	snap := o.pending.Changes()
	nodes := []Node[pending.PendingChange]{}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !snap.IsPathIncluded(path) {
			continue
		}
		node := Node[pending.PendingChange]{Label: entry.Name(), Path: path, Kind: File}
		if entry.IsDir() {
			node.Kind = Directory
		} else if change, ok := snap.Get(path); ok {
			node.Record = change
		}
		nodes = append(nodes, node)
	}
	SortNodes(nodes)
	return nodes, nil
}
