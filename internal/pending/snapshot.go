package pending

import (
	"path/filepath"
	"sort"
	"strings"

	"tfview/internal/tf"

	"golang.org/x/text/unicode/norm"
)

// PendingChange is one file with uncommitted local edits.
type PendingChange struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	Action   string `json:"action"`
}

// FromIncluded converts a status row. FileName falls back to the base of FilePath.
func FromIncluded(c tf.IncludedChange) PendingChange {
	name := c.FileName
	if name == "" {
		name = filepath.Base(c.FilePath)
	}
	return PendingChange{FilePath: c.FilePath, FileName: name, Action: c.Action}
}

// Normalize is the comparison key for paths: NFC, forward slashes, lower case.
func Normalize(path string) string {
	path = norm.NFC.String(path)
	path = strings.ReplaceAll(path, `\`, "/")
	return strings.ToLower(path)
}

// Snapshot is an immutable view of the pending set. The zero value is empty.
type Snapshot struct {
	byKey map[string]PendingChange
	keys  []string
}

// NewSnapshot builds a snapshot; later records win when two paths normalize equally.
func NewSnapshot(changes []PendingChange) *Snapshot {
	s := &Snapshot{byKey: make(map[string]PendingChange, len(changes))}
	for _, c := range changes {
		s.byKey[Normalize(c.FilePath)] = c
	}
	s.keys = make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		s.keys = append(s.keys, k)
	}
	sort.Strings(s.keys)
	return s
}

func (s *Snapshot) Get(path string) (PendingChange, bool) {
	if s == nil {
		return PendingChange{}, false
	}
	c, ok := s.byKey[Normalize(path)]
	return c, ok
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// All returns the changes ordered by normalized path.
func (s *Snapshot) All() []PendingChange {
	if s == nil {
		return []PendingChange{}
	}
	out := make([]PendingChange, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.byKey[k])
	}
	return out
}

// Paths returns the normalized keys in order.
func (s *Snapshot) Paths() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// IsPathIncluded reports whether some tracked path starts with path, ignoring case.
// A directory therefore matches every pending file beneath it.
func (s *Snapshot) IsPathIncluded(path string) bool {
	if s == nil || path == "" {
		return false
	}
	q := Normalize(path)
	// keys are sorted, so every key with prefix q sits at or after the insertion point.
	i := sort.SearchStrings(s.keys, q)
	return i < len(s.keys) && strings.HasPrefix(s.keys[i], q)
}
