// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tfview/internal/errors"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPollIntervalMs = 2000
	DefaultHistoryCount   = 15
	DefaultCacheSize      = 256
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 7717

	// EnvTfPath overrides tf_path from the config file.
	EnvTfPath = "TFVIEW_TF_PATH"
)

type Config struct {
	TfPath string `json:"tf_path" yaml:"tf_path"`

	Workspace struct {
		Root       string `json:"root" yaml:"root"`               // local directory mapped to the server
		ServerRoot string `json:"server_root" yaml:"server_root"` // e.g. $/Project/Main
	} `json:"workspace" yaml:"workspace"`

	Server struct {
		Host string `json:"host" yaml:"host"`
		Port int    `json:"port" yaml:"port"`
	} `json:"server" yaml:"server"`

	Database struct {
		Path string `json:"path" yaml:"path"`
	} `json:"database" yaml:"database"`

	LogLevel         string `json:"log_level" yaml:"log_level"` // debug, info, warn, error
	PollIntervalMs   int    `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	HistoryCount     int    `json:"history_count" yaml:"history_count"`
	CommandTimeoutMs int    `json:"command_timeout_ms" yaml:"command_timeout_ms"` // 0 = no timeout
	StagingDir       string `json:"staging_dir" yaml:"staging_dir"`
	CacheSize        int    `json:"cache_size" yaml:"cache_size"`
}

// Load reads a JSON or YAML (by extension) config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills zero-valued fields and the environment override.
func (c *Config) ApplyDefaults() {
	if env := os.Getenv(EnvTfPath); env != "" {
		c.TfPath = env
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.HistoryCount <= 0 {
		c.HistoryCount = DefaultHistoryCount
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.StagingDir == "" {
		c.StagingDir = filepath.Join(os.TempDir(), "tfview")
	}
	if c.Database.Path == "" && c.Workspace.Root != "" {
		c.Database.Path = filepath.Join(c.Workspace.Root, ".tfview")
	}
}

// Validate reports problems that make the service unusable. An unknown tool path
// is fatal and must surface at startup, not at first use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TfPath) == "" {
		return errors.ConfigError("unable to execute commands: path to tf is unknown")
	}
	if strings.TrimSpace(c.Workspace.Root) == "" {
		return errors.ConfigError("workspace root is not configured")
	}
	if c.Workspace.ServerRoot != "" && !strings.HasPrefix(c.Workspace.ServerRoot, "$/") {
		return errors.ConfigError(fmt.Sprintf("server root %q must start with $/", c.Workspace.ServerRoot))
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
