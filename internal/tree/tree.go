// Package tree projects flat path lists into two-level browsable trees.
//
// Nodes are computed on every request from the current records; nothing is cached,
// so a tree always reflects the latest snapshot.
package tree

import (
	"sort"
	"strings"
)

type Kind int

const (
	Directory Kind = iota
	File
)

func (k Kind) String() string {
	if k == Directory {
		return "directory"
	}
	return "file"
}

// Node is a tree entry backed by a record of type R. Directory nodes derived from
// paths carry the zero R.
type Node[R any] struct {
	Label  string
	Kind   Kind
	Path   string
	Record R
}

func (n Node[R]) IsDirectory() bool {
	return n.Kind == Directory
}

// IsDirectChild reports whether path sits exactly one segment below dir.
// "$/proj/src" admits "$/proj/src/a.ts" but neither "$/proj/src/sub/b.ts" nor
// the sibling "$/proj/srcx/a.ts".
func IsDirectChild(dir, path string) bool {
	if !strings.HasPrefix(path, dir) {
		return false
	}
	rest := path[len(dir):]
	return strings.Count(rest, "/") == 1 && strings.HasPrefix(rest, "/") && len(rest) > 1
}

// Parent strips the final segment. A path without a separator has no parent.
func Parent(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Base returns the final segment.
func Base(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// SortNodes orders directories before files, then by label ignoring case.
func SortNodes[R any](nodes []Node[R]) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind == Directory
		}
		return strings.ToLower(nodes[i].Label) < strings.ToLower(nodes[j].Label)
	})
}

// Descriptor is what a display collaborator needs to render a node.
type Descriptor struct {
	Label       string   `json:"label"`
	Path        string   `json:"path"`
	IsDirectory bool     `json:"isDirectory"`
	Command     string   `json:"command,omitempty"`
	Arguments   []string `json:"arguments,omitempty"`
}

// Describe renders node. Directories never carry a selection command.
func Describe[R any](node Node[R], command string, args ...string) Descriptor {
	d := Descriptor{
		Label:       node.Label,
		Path:        node.Path,
		IsDirectory: node.IsDirectory(),
	}
	if !d.IsDirectory && command != "" {
		d.Command = command
		d.Arguments = args
	}
	return d
}
