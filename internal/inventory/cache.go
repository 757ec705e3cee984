package inventory

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
)

// DiskCache persists the last collector payload so a server restart can skip
// the (slow) probe subprocess when the watched project files are unchanged.
// Freshness is a hash over the mtimes of every file selected by the
// collector's watcher globs.
type DiskCache struct {
	srcRoot string
	logger  *log.Logger
}

func NewDiskCache(srcRoot string) *DiskCache {
	return &DiskCache{srcRoot: srcRoot, logger: log.WithPrefix("cache")}
}

// skipDirs are never descended into when hashing; virtualenvs in particular
// make hashing two orders of magnitude slower.
var skipDirs = map[string]bool{
	"env": true, ".env": true, "venv": true, ".venv": true,
	".git": true, "node_modules": true, "__pycache__": true,
}

type cacheEntry struct {
	Hash    string          `json:"hash"`
	Payload json.RawMessage `json:"payload"`
}

func (c *DiskCache) path() string {
	return filepath.Join(os.TempDir(),
		fmt.Sprintf("djtpls-data-%x.json", xxhash.Sum64String(c.srcRoot)))
}

// Load returns the cached payload when its recorded hash still matches the
// project's watched files.
func (c *DiskCache) Load(globs []string) ([]byte, bool) {
	data, err := os.ReadFile(c.path())
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("unreadable cache file", "path", c.path(), "error", err)
		return nil, false
	}
	current, err := c.filesHash(globs)
	if err != nil || current != entry.Hash {
		return nil, false
	}
	c.logger.Info("loaded collector payload from cache", "path", c.path())
	return entry.Payload, true
}

// Store writes the payload with the current watched-files hash.
func (c *DiskCache) Store(payload []byte, globs []string) error {
	hash, err := c.filesHash(globs)
	if err != nil {
		return err
	}
	data, err := json.Marshal(cacheEntry{Hash: hash, Payload: payload})
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path(), data, 0o600); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// filesHash walks the source root and hashes the mtime of every file
// matching one of the watcher globs, in sorted path order.
func (c *DiskCache) filesHash(globs []string) (string, error) {
	var matched []string
	mtimes := map[string]int64{}

	err := filepath.WalkDir(c.srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are simply not hashed
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(c.srcRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		for _, glob := range globs {
			if ok, _ := doublestar.Match(glob, rel); ok {
				if info, err := d.Info(); err == nil {
					matched = append(matched, rel)
					mtimes[rel] = info.ModTime().UnixNano()
				}
				break
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Strings(matched)
	digest := xxhash.New()
	for _, rel := range matched {
		digest.WriteString(rel)
		digest.WriteString(strconv.FormatInt(mtimes[rel], 10))
	}
	return strconv.FormatUint(digest.Sum64(), 16), nil
}
