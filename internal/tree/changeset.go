package tree

import "tfview/internal/changeset"

// ChangesetRoots groups items by parent directory, one node per distinct parent, in
// the order the parents first appear.
func ChangesetRoots(items []changeset.Item) []Node[changeset.Item] {
	seen := make(map[string]bool)
	roots := []Node[changeset.Item]{}
	for _, item := range items {
		dir := Parent(item.Path)
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		roots = append(roots, Node[changeset.Item]{Label: dir, Kind: Directory, Path: dir})
	}
	return roots
}

// ChangesetChildren lists the items directly inside dir.
func ChangesetChildren(dir Node[changeset.Item], items []changeset.Item) []Node[changeset.Item] {
	children := []Node[changeset.Item]{}
	if !dir.IsDirectory() {
		return children
	}
	for _, item := range items {
		if !IsDirectChild(dir.Label, item.Path) {
			continue
		}
		children = append(children, Node[changeset.Item]{
			Label:  Base(item.Path),
			Kind:   File,
			Path:   item.Path,
			Record: item,
		})
	}
	return children
}

// DirectoryNode rebuilds a directory node from its label, as received from a client.
func DirectoryNode(label string) Node[changeset.Item] {
	return Node[changeset.Item]{Label: label, Kind: Directory, Path: label}
}
