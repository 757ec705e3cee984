package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// ConfigFileName is the per-project configuration file looked up at the
// workspace root.
const ConfigFileName = ".djtpls.kdl"

// loadKDLInto applies the KDL file at kdlPath over cfg. A missing file is
// not an error.
func loadKDLInto(cfg *Config, kdlPath string) error {
	content, err := os.ReadFile(kdlPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
	}
	return parseKDL(cfg, string(content))
}

func parseKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "src_root", func(v string) { cfg.Project.SrcRoot = v })
			}
		case "collector":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "venv_dirs":
					if dirs := collectStringArgs(cn); len(dirs) > 0 {
						cfg.Collector.VenvDirs = dirs
					}
				case "compose_file":
					if s, ok := firstStringArg(cn); ok {
						cfg.Collector.ComposeFile = s
					}
				case "compose_service":
					if s, ok := firstStringArg(cn); ok {
						cfg.Collector.ComposeService = s
					}
				case "django_settings_module":
					if s, ok := firstStringArg(cn); ok {
						cfg.Collector.SettingsModule = s
					}
				case "timeout_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Collector.TimeoutSec = v
					}
				case "cache":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Collector.Cache = b
					}
				}
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watch.Enabled = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				}
			}
		case "log":
			for _, cn := range n.Children {
				assignSimpleString(cn, "level", func(v string) { cfg.Log.Level = v })
				assignSimpleString(cn, "file", func(v string) { cfg.Log.File = v })
			}
		}
	}

	// Paths from the config file are relative to the directory it lives in.
	if cfg.Project.Root != "" && !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(cfg.Project.Root)
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
