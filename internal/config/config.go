package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultVenvDirs are the virtualenv directory names probed in order; the
// first one containing an interpreter wins.
var DefaultVenvDirs = []string{"env", ".env", "venv", ".venv"}

const (
	DefaultComposeFile    = "docker-compose.yml"
	DefaultComposeService = "django"
	DefaultTimeoutSec     = 30
	DefaultWatchDebounce  = 300 * time.Millisecond
)

type Config struct {
	Project   Project
	Collector Collector
	Watch     Watch
	Log       Log
}

type Project struct {
	// Root is the workspace root opened by the editor.
	Root string

	// SrcRoot is the directory containing manage.py. Empty means
	// auto-detect relative to Root.
	SrcRoot string
}

type Collector struct {
	VenvDirs       []string
	ComposeFile    string
	ComposeService string

	// SettingsModule is an explicit DJANGO_SETTINGS_MODULE override.
	// Empty means auto-detect from pyproject.toml or manage.py.
	SettingsModule string

	TimeoutSec int

	// Cache enables reusing the previous collection payload from disk
	// when the watched project files have not changed.
	Cache bool
}

type Watch struct {
	Enabled    bool
	DebounceMs int
}

type Log struct {
	Level string // debug, info, warn, error
	File  string // empty = stderr
}

func (c *Collector) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return DefaultTimeoutSec * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

func (w *Watch) Debounce() time.Duration {
	if w.DebounceMs <= 0 {
		return DefaultWatchDebounce
	}
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Default returns the baseline configuration for a project root.
func Default(root string) *Config {
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		} else {
			root = "."
		}
	}
	return &Config{
		Project: Project{Root: root},
		Collector: Collector{
			VenvDirs:       append([]string(nil), DefaultVenvDirs...),
			ComposeFile:    DefaultComposeFile,
			ComposeService: DefaultComposeService,
			TimeoutSec:     DefaultTimeoutSec,
		},
		Watch: Watch{
			Enabled:    true,
			DebounceMs: int(DefaultWatchDebounce / time.Millisecond),
		},
		Log: Log{Level: "info"},
	}
}

// Load builds the configuration for a project root: defaults, overridden by
// a .djtpls.kdl file at the root when present.
func Load(root string) (*Config, error) {
	return LoadFile(root, "")
}

// LoadFile is Load with an explicit configuration file path. An empty path
// means the default location at the project root.
func LoadFile(root, kdlPath string) (*Config, error) {
	cfg := Default(root)

	if kdlPath == "" {
		kdlPath = filepath.Join(cfg.Project.Root, ConfigFileName)
	}
	if err := loadKDLInto(cfg, kdlPath); err != nil {
		return nil, err
	}

	if cfg.Project.SrcRoot == "" {
		cfg.Project.SrcRoot = DetectSrcRoot(cfg.Project.Root)
	} else if !filepath.IsAbs(cfg.Project.SrcRoot) {
		cfg.Project.SrcRoot = filepath.Join(cfg.Project.Root, cfg.Project.SrcRoot)
	}

	if cfg.Collector.SettingsModule == "" {
		cfg.Collector.SettingsModule = DetectSettingsModule(cfg.Project.SrcRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration values that would otherwise fail at
// collection time with a confusing subprocess error.
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return fmt.Errorf("project root must not be empty")
	}
	if c.Collector.ComposeService == "" {
		return fmt.Errorf("compose service name must not be empty")
	}
	if c.Collector.TimeoutSec < 0 {
		return fmt.Errorf("collector timeout must not be negative, got %d", c.Collector.TimeoutSec)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// DetectSrcRoot locates the Django source root: root itself when it holds a
// manage.py, else the first direct child that does, else root.
func DetectSrcRoot(root string) string {
	if _, err := os.Stat(filepath.Join(root, "manage.py")); err == nil {
		return root
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return root
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(candidate, "manage.py")); err == nil {
			return candidate
		}
	}
	return root
}
