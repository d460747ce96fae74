// Package content writes server content to temporary files so an external diff
// viewer can open both sides.
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tfview/internal/errors"
	"tfview/internal/resolve"
	shared "tfview/shared/types"
	"tfview/shared/utils"
)

// Stager owns a directory of generated files.
type Stager struct {
	root string
}

func NewStager(root string) (*Stager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.FromFS(err)
	}
	return &Stager{root: root}, nil
}

func (s *Stager) Root() string {
	return s.root
}

// Stage writes content and returns its path. Identical inputs map to the same
// file, so repeated diffs of one version reuse it.
func (s *Stager) Stage(name, version, content string) (string, error) {
	hash := utils.HashContent([]byte(name + "\x00" + version + "\x00" + content))
	dir := filepath.Join(s.root, hash[:2], hash[2:14])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.FromFS(err)
	}

	file := filepath.Join(dir, stagedName(name, version))
	if _, err := os.Stat(file); err == nil {
		return file, nil
	}
	if err := os.WriteFile(file, []byte(content), 0o444); err != nil {
		return "", errors.FromFS(err)
	}
	return file, nil
}

// stagedName keeps the extension last so viewers still pick a syntax mode.
func stagedName(name, version string) string {
	base := name[strings.LastIndexAny(name, `/\`)+1:]
	if base == "" {
		base = "content"
	}
	if version == "" {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s;%s%s", strings.TrimSuffix(base, ext), version, ext)
}

// StagePair turns a resolved pair into a diff request. Working copy sides are
// referenced directly; server sides are staged.
func (s *Stager) StagePair(p resolve.Pair) (shared.DiffRequest, error) {
	left, err := s.side(p.Left)
	if err != nil {
		return shared.DiffRequest{}, err
	}
	right, err := s.side(p.Right)
	if err != nil {
		return shared.DiffRequest{}, err
	}
	return shared.DiffRequest{Title: p.Title, Left: left, Right: right}, nil
}

func (s *Stager) side(side resolve.Side) (shared.DiffSide, error) {
	if side.Local {
		return shared.DiffSide{Path: side.Path}, nil
	}
	version := side.Version
	if version == "" {
		version = "none"
	}
	path, err := s.Stage(side.Path, version, side.Content)
	if err != nil {
		return shared.DiffSide{}, err
	}
	return shared.DiffSide{Path: path, Temporary: true}, nil
}

// Cleanup removes every staged file.
func (s *Stager) Cleanup() error {
	return errors.FromFS(os.RemoveAll(s.root))
}
