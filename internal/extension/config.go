package extension

import (
	"os"
	"path/filepath"

	"tfview/internal/config"
	"tfview/internal/workspace"
)

// LoadConfig reads the config at path. With an empty path it searches upward
// from dir for a workspace marker and uses the config file there, if any. A
// config without workspace.root is rooted at the directory that holds it, and
// relative paths in the file are read from that directory.
func LoadConfig(path, dir string) (*config.Config, error) {
	if path == "" {
		root, err := workspace.FindRoot(dir)
		if err != nil {
			return nil, err
		}
		file, ok := workspace.ConfigFile(root)
		if !ok {
			cfg := &config.Config{}
			cfg.Workspace.Root = root
			cfg.ApplyDefaults()
			return cfg, nil
		}
		path = file
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.Workspace.Root = resolveFrom(base, cfg.Workspace.Root)
	if cfg.Database.Path != "" {
		cfg.Database.Path = resolveFrom(base, cfg.Database.Path)
	}
	cfg.ApplyDefaults()
	if _, err := os.Stat(cfg.Workspace.Root); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveFrom makes p absolute, reading relative paths from base.
func resolveFrom(base, p string) string {
	switch {
	case p == "":
		return base
	case filepath.IsAbs(p):
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
