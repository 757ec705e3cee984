// Package inventory holds the introspected model of a Django project: apps,
// tag/filter libraries, templates, URL names and static files. A snapshot is
// immutable; successful ingestion swaps the active snapshot atomically so
// readers never observe partial state.
package inventory

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// BuiltinsLibrary is the pseudo-library holding Django's default tags and
// filters. It is always treated as loaded.
const BuiltinsLibrary = "__builtins__"

// DefaultWatcherGlobs select the project files whose changes invalidate the
// inventory, used until a collection reports its own glob set.
var DefaultWatcherGlobs = []string{
	"**/templates/**",
	"**/templatetags/**",
	"**/static/**",
}

// AppInfo describes one installed Django application.
type AppInfo struct {
	Label        string
	Path         string
	TemplateDirs []string
	StaticDirs   []string
	Models       []string
}

// Symbol is the collected metadata of one tag or filter: its docstring and
// the "path:line" of the registering function. Either may be empty when the
// probe could not introspect the function.
type Symbol struct {
	Docs   string
	Source string
}

// Library is one tag/filter library that templates load by name.
type Library struct {
	Name    string
	Tags    map[string]Symbol
	Filters map[string]Symbol
}

// HasTag reports whether the library provides the named tag.
func (l *Library) HasTag(name string) bool {
	_, ok := l.Tags[name]
	return ok
}

// HasFilter reports whether the library provides the named filter.
func (l *Library) HasFilter(name string) bool {
	_, ok := l.Filters[name]
	return ok
}

// Tag returns the named tag's metadata.
func (l *Library) Tag(name string) (Symbol, bool) {
	sym, ok := l.Tags[name]
	return sym, ok
}

// Filter returns the named filter's metadata.
func (l *Library) Filter(name string) (Symbol, bool) {
	sym, ok := l.Filters[name]
	return sym, ok
}

// TemplateInfo is one discoverable template file. Key is the logical path
// used by extends/include; Path is the absolute file location. Extends and
// Blocks are collected with a shallow source scan so inheritance queries do
// not have to re-read template files.
type TemplateInfo struct {
	Key     string
	App     string
	Path    string
	Extends string
	Blocks  []string
	Context map[string]string // optional per-template view context (name -> dotted type)
}

// URLInfo is one named URL route.
type URLInfo struct {
	Name    string
	App     string
	Pattern string
	Params  []string
	Source  string // optional "path:line" of the declaring view
}

// ObjectType carries introspected field names for a dotted model path.
type ObjectType struct {
	Fields []string
}

// Snapshot is one immutable generation of the project inventory.
type Snapshot struct {
	Generation  uint64
	CollectedAt time.Time

	Apps          map[string]AppInfo
	Libraries     map[string]*Library
	Templates     map[string]TemplateInfo
	URLs          map[string]URLInfo
	StaticFiles   []string
	WatcherGlobs  []string
	GlobalContext map[string]string
	ObjectTypes   map[string]ObjectType
}

// LibraryNames returns all loadable library names, sorted, excluding the
// builtins pseudo-library.
func (s *Snapshot) LibraryNames() []string {
	names := make([]string, 0, len(s.Libraries))
	for name := range s.Libraries {
		if name != BuiltinsLibrary {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// TemplateKeys returns all template logical paths, sorted.
func (s *Snapshot) TemplateKeys() []string {
	keys := make([]string, 0, len(s.Templates))
	for key := range s.Templates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// URLNames returns all named routes, sorted.
func (s *Snapshot) URLNames() []string {
	names := make([]string, 0, len(s.URLs))
	for name := range s.URLs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store owns the active snapshot. Ingest calls are serialized so snapshots
// are installed in generation order; readers take lock-free snapshots via
// an atomic pointer swap.
type Store struct {
	mu         sync.Mutex
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	logger     *log.Logger
}

// NewStore creates a store whose initial snapshot is empty (generation 0).
func NewStore() *Store {
	s := &Store{logger: log.WithPrefix("inventory")}
	s.current.Store(&Snapshot{
		Apps:          map[string]AppInfo{},
		Libraries:     map[string]*Library{BuiltinsLibrary: builtinLibrary()},
		Templates:     map[string]TemplateInfo{},
		URLs:          map[string]URLInfo{},
		WatcherGlobs:  append([]string(nil), DefaultWatcherGlobs...),
		GlobalContext: map[string]string{},
		ObjectTypes:   map[string]ObjectType{},
	})
	return s
}

// Snapshot returns the latest fully-ingested generation. Never blocks,
// never nil.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Ingest validates a collector payload and, on success, installs it as the
// new active snapshot. On any validation failure the previous snapshot
// stays active and its generation is unchanged.
func (s *Store) Ingest(raw []byte) (uint64, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}

	snap := buildSnapshot(payload)
	snap.CollectedAt = time.Now()

	// Concurrent ingests (coalesced collections racing a watcher refresh)
	// must install in generation order or a reader could watch the counter
	// regress.
	s.mu.Lock()
	snap.Generation = s.generation.Add(1)
	s.current.Store(snap)
	s.mu.Unlock()
	s.logger.Info("installed inventory snapshot",
		"generation", snap.Generation,
		"apps", len(snap.Apps),
		"libraries", len(snap.Libraries),
		"templates", len(snap.Templates),
		"urls", len(snap.URLs),
		"static_files", len(snap.StaticFiles))
	return snap.Generation, nil
}

// rawPayload mirrors the collector output contract. Every key is optional;
// a missing key is an empty collection.
type rawPayload struct {
	Apps []struct {
		Label        string   `json:"label"`
		Path         string   `json:"path"`
		TemplateDirs []string `json:"template_dirs"`
		StaticDirs   []string `json:"static_dirs"`
		Models       []string `json:"models"`
	} `json:"apps"`
	TagsFilters map[string]struct {
		Tags    map[string]rawSymbol `json:"tags"`
		Filters map[string]rawSymbol `json:"filters"`
	} `json:"tags_filters"`
	Templates []struct {
		Key     string            `json:"key"`
		App     string            `json:"app"`
		Path    string            `json:"path"`
		Extends string            `json:"extends"`
		Blocks  []string          `json:"blocks"`
		Context map[string]string `json:"context"`
	} `json:"templates"`
	URLs []struct {
		Name    string   `json:"name"`
		App     string   `json:"app"`
		Pattern string   `json:"pattern"`
		Params  []string `json:"params"`
		Source  string   `json:"source"`
	} `json:"urls"`
	StaticFiles           []string          `json:"static_files"`
	FileWatcherGlobs      []string          `json:"file_watcher_globs"`
	GlobalTemplateContext map[string]string `json:"global_template_context"`
	ObjectTypes           map[string]struct {
		Fields []string `json:"fields"`
	} `json:"object_types"`
}

type rawSymbol struct {
	Docs   string `json:"docs"`
	Source string `json:"source"`
}

func decodePayload(raw []byte) (*rawPayload, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	var payload rawPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &payload, nil
}

func buildSnapshot(payload *rawPayload) *Snapshot {
	snap := &Snapshot{
		Apps:          make(map[string]AppInfo, len(payload.Apps)),
		Libraries:     make(map[string]*Library, len(payload.TagsFilters)),
		Templates:     make(map[string]TemplateInfo, len(payload.Templates)),
		URLs:          make(map[string]URLInfo, len(payload.URLs)),
		StaticFiles:   append([]string(nil), payload.StaticFiles...),
		WatcherGlobs:  append([]string(nil), payload.FileWatcherGlobs...),
		GlobalContext: map[string]string{},
		ObjectTypes:   make(map[string]ObjectType, len(payload.ObjectTypes)),
	}
	sort.Strings(snap.StaticFiles)

	for _, app := range payload.Apps {
		snap.Apps[app.Label] = AppInfo{
			Label:        app.Label,
			Path:         app.Path,
			TemplateDirs: app.TemplateDirs,
			StaticDirs:   app.StaticDirs,
			Models:       app.Models,
		}
	}

	for name, lib := range payload.TagsFilters {
		snap.Libraries[name] = &Library{
			Name:    name,
			Tags:    copySymbols(lib.Tags),
			Filters: copySymbols(lib.Filters),
		}
	}

	// Projects that fail to report builtins still get the fallback set, so
	// default tags and filters keep completing.
	if _, ok := snap.Libraries[BuiltinsLibrary]; !ok {
		snap.Libraries[BuiltinsLibrary] = builtinLibrary()
	}
	if len(snap.WatcherGlobs) == 0 {
		snap.WatcherGlobs = append([]string(nil), DefaultWatcherGlobs...)
	}

	// Template keys collide when a project-level directory overrides an
	// app-supplied template. The collector emits entries in search-root
	// order, so the first occurrence of a key wins.
	for _, tmpl := range payload.Templates {
		if _, exists := snap.Templates[tmpl.Key]; exists {
			continue
		}
		snap.Templates[tmpl.Key] = TemplateInfo{
			Key:     tmpl.Key,
			App:     tmpl.App,
			Path:    tmpl.Path,
			Extends: tmpl.Extends,
			Blocks:  tmpl.Blocks,
			Context: tmpl.Context,
		}
	}

	for _, u := range payload.URLs {
		snap.URLs[u.Name] = URLInfo{
			Name:    u.Name,
			App:     u.App,
			Pattern: u.Pattern,
			Params:  u.Params,
			Source:  u.Source,
		}
	}

	for name, typ := range payload.GlobalTemplateContext {
		snap.GlobalContext[name] = typ
	}
	for dotted, obj := range payload.ObjectTypes {
		snap.ObjectTypes[dotted] = ObjectType{Fields: obj.Fields}
	}

	return snap
}

func copySymbols(raw map[string]rawSymbol) map[string]Symbol {
	out := make(map[string]Symbol, len(raw))
	for name, sym := range raw {
		out[name] = Symbol{Docs: sym.Docs, Source: sym.Source}
	}
	return out
}
