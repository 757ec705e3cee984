// Package server wires the collector, inventory and resolver into one
// queryable engine per project root. The protocol layer (outside this
// module) calls the query methods; they never block on collection and
// always answer from the latest fully-ingested snapshot.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"djtpls/internal/collector"
	"djtpls/internal/config"
	"djtpls/internal/inventory"
	"djtpls/internal/pyenv"
	"djtpls/internal/resolver"
	"djtpls/internal/tmplctx"
)

// maxDiagnostics bounds the retained failure history.
const maxDiagnostics = 32

// Diagnostic is one recorded collection or ingest failure.
type Diagnostic struct {
	Time    time.Time
	Stage   string // "environment", "collect" or "ingest"
	Message string
}

// Engine owns everything a project root needs to answer editor queries.
type Engine struct {
	cfg      *config.Config
	store    *inventory.Store
	tracker  *tmplctx.Tracker
	resolver *resolver.Resolver
	docs     *documentStore

	diskCache *inventory.DiskCache

	invokerMu sync.Mutex
	invoker   *collector.Invoker

	diagMu sync.Mutex
	diags  []Diagnostic

	logger *log.Logger
}

// New builds an engine. A missing Python environment is not an error here:
// the engine serves builtin completions until a collection succeeds, and
// environment failures surface through Refresh and Diagnostics.
func New(cfg *config.Config) *Engine {
	tracker := tmplctx.New()
	e := &Engine{
		cfg:      cfg,
		store:    inventory.NewStore(),
		tracker:  tracker,
		resolver: resolver.New(tracker),
		docs:     newDocumentStore(defaultDocumentCacheSize),
		logger:   log.WithPrefix("engine"),
	}
	if cfg.Collector.Cache {
		e.diskCache = inventory.NewDiskCache(cfg.Project.SrcRoot)
		e.warmStart()
	}
	return e
}

// NewWithInvoker is the test seam: an engine around a pre-built invoker.
func NewWithInvoker(cfg *config.Config, inv *collector.Invoker) *Engine {
	e := New(cfg)
	e.invoker = inv
	return e
}

// warmStart ingests the cached payload of a previous run when the watched
// project files are unchanged.
func (e *Engine) warmStart() {
	payload, ok := e.diskCache.Load(e.store.Snapshot().WatcherGlobs)
	if !ok {
		return
	}
	if _, err := e.store.Ingest(payload); err != nil {
		e.logger.Warn("discarding stale cached payload", "error", err)
	}
}

// Snapshot exposes the current inventory generation, mainly for the CLI's
// one-shot collect command.
func (e *Engine) Snapshot() *inventory.Snapshot {
	return e.store.Snapshot()
}

// OpenDocument registers (or replaces) an open document.
func (e *Engine) OpenDocument(uri, content string, version int) {
	e.docs.open(uri, content, version)
}

// CloseDocument forgets an open document and its tokenization.
func (e *Engine) CloseDocument(uri string) {
	e.docs.close(uri)
}

// Completion answers completion-at-cursor for an open document. Unknown
// URIs and unrecognized positions yield nil.
func (e *Engine) Completion(uri string, line, col int) []resolver.Candidate {
	snap := e.store.Snapshot()
	doc, ok := e.docs.resolve(uri, snap)
	if !ok {
		return nil
	}
	return e.resolver.Completions(snap, doc, line, col)
}

// Hover answers hover-at-cursor for an open document.
func (e *Engine) Hover(uri string, line, col int) (resolver.Hover, bool) {
	snap := e.store.Snapshot()
	doc, ok := e.docs.resolve(uri, snap)
	if !ok {
		return resolver.Hover{}, false
	}
	return e.resolver.Hover(snap, doc, line, col)
}

// Definition answers definition-at-cursor for an open document.
func (e *Engine) Definition(uri string, line, col int) (resolver.Location, bool) {
	snap := e.store.Snapshot()
	doc, ok := e.docs.resolve(uri, snap)
	if !ok {
		return resolver.Location{}, false
	}
	return e.resolver.Definition(snap, doc, line, col)
}

// Refresh runs one collection attempt and ingests the result. Concurrent
// calls coalesce into a single probe subprocess. On failure the previous
// snapshot stays authoritative and the failure is recorded once.
func (e *Engine) Refresh(ctx context.Context) error {
	inv, err := e.ensureInvoker()
	if err != nil {
		e.record("environment", err)
		return err
	}

	payload, err := inv.Collect(ctx)
	if err != nil {
		e.record("collect", err)
		return err
	}

	generation, err := e.store.Ingest(payload)
	if err != nil {
		e.record("ingest", err)
		return err
	}

	if e.diskCache != nil {
		if err := e.diskCache.Store(payload, e.store.Snapshot().WatcherGlobs); err != nil {
			e.logger.Warn("could not persist collector payload", "error", err)
		}
	}
	e.logger.Info("inventory refreshed", "generation", generation)
	return nil
}

// ensureInvoker resolves the Python environment on first use. Resolution
// failures are not sticky: the next Refresh retries, so creating a
// virtualenv after server start is picked up.
func (e *Engine) ensureInvoker() (*collector.Invoker, error) {
	e.invokerMu.Lock()
	defer e.invokerMu.Unlock()
	if e.invoker != nil {
		return e.invoker, nil
	}

	strategy, err := pyenv.Resolve(e.cfg.Project.Root, pyenv.Options{
		VenvDirs:       e.cfg.Collector.VenvDirs,
		ComposeFile:    e.cfg.Collector.ComposeFile,
		ComposeService: e.cfg.Collector.ComposeService,
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("resolved python environment", "strategy", strategy.Describe())

	inv, err := collector.New(strategy, e.cfg.Project.SrcRoot,
		e.cfg.Collector.SettingsModule, e.cfg.Collector.Timeout())
	if err != nil {
		return nil, err
	}
	e.invoker = inv
	return inv, nil
}

func (e *Engine) record(stage string, err error) {
	e.logger.Warn("refresh failed", "stage", stage, "error", err)
	e.diagMu.Lock()
	defer e.diagMu.Unlock()
	e.diags = append(e.diags, Diagnostic{Time: time.Now(), Stage: stage, Message: err.Error()})
	if len(e.diags) > maxDiagnostics {
		e.diags = e.diags[len(e.diags)-maxDiagnostics:]
	}
}

// Diagnostics returns the recorded failures, oldest first.
func (e *Engine) Diagnostics() []Diagnostic {
	e.diagMu.Lock()
	defer e.diagMu.Unlock()
	return append([]Diagnostic(nil), e.diags...)
}
