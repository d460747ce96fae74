// Package workspace maps between local paths and server paths and locates the
// workspace root on disk.
package workspace

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"tfview/internal/errors"
)

// ServerPrefix roots every server path.
const ServerPrefix = "$/"

// Markers identify a mapped working folder, nearest first.
var Markers = []string{".tfview.yaml", ".tfview.yml", ".tfview.json", "$tf", ".tf"}

// Mapping ties a local working folder to its server folder.
type Mapping struct {
	LocalRoot  string
	ServerRoot string
}

func NewMapping(localRoot, serverRoot string) Mapping {
	return Mapping{
		LocalRoot:  filepath.Clean(localRoot),
		ServerRoot: strings.TrimSuffix(serverRoot, "/"),
	}
}

func IsServerPath(p string) bool {
	return strings.HasPrefix(p, ServerPrefix)
}

// ToServer converts a local path under LocalRoot to its server path.
func (m Mapping) ToServer(local string) (string, error) {
	if IsServerPath(local) {
		return local, nil
	}
	if m.ServerRoot == "" {
		return "", errors.ConfigError("workspace.server_root is not configured")
	}
	rel, err := filepath.Rel(m.LocalRoot, filepath.Clean(local))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.ValidationError("path is outside the workspace", local)
	}
	if rel == "." {
		return m.ServerRoot, nil
	}
	return m.ServerRoot + "/" + filepath.ToSlash(rel), nil
}

// ToLocal converts a server path under ServerRoot to a local path. Server paths
// compare case-insensitively.
func (m Mapping) ToLocal(server string) (string, error) {
	if !IsServerPath(server) {
		return server, nil
	}
	if m.ServerRoot == "" {
		return "", errors.ConfigError("workspace.server_root is not configured")
	}
	clean := path.Clean(server)
	root := m.ServerRoot
	switch {
	case strings.EqualFold(clean, root):
		return m.LocalRoot, nil
	case len(clean) > len(root) && strings.EqualFold(clean[:len(root)], root) && clean[len(root)] == '/':
		return filepath.Join(m.LocalRoot, filepath.FromSlash(clean[len(root)+1:])), nil
	}
	return "", errors.ValidationError("server path is not mapped to this workspace", server)
}

// FindRoot walks up from startDir looking for a marker file or folder.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range Markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.NotFound("workspace root not found from " + startDir)
}

// ConfigFile returns the first config marker present in root, if any.
func ConfigFile(root string) (string, bool) {
	for _, marker := range Markers[:3] {
		p := filepath.Join(root, marker)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}
