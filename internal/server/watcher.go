package server

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// watchSkipDirs are never watched; virtualenvs and VCS metadata generate
// event storms without ever affecting the inventory.
var watchSkipDirs = map[string]bool{
	"env": true, ".env": true, "venv": true, ".venv": true,
	".git": true, "node_modules": true, "__pycache__": true,
}

// Watcher triggers inventory re-collection when files matching the active
// snapshot's watcher globs change. Events are debounced so a save burst
// causes one collection, not many.
type Watcher struct {
	engine   *Engine
	root     string
	debounce time.Duration

	fs     *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// StartWatcher begins watching the project root recursively.
func StartWatcher(engine *Engine, root string, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		engine:   engine,
		root:     root,
		debounce: debounce,
		fs:       fs,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log.WithPrefix("watcher"),
	}

	if err := w.addWatches(root); err != nil {
		cancel()
		fs.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for its goroutines and any in-flight
// debounced refresh to finish.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

// addWatches registers every directory under root. A visited set over
// resolved paths guards against symlink cycles.
func (w *Watcher) addWatches(root string) error {
	visited := map[string]bool{}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		if watchSkipDirs[info.Name()] {
			return filepath.SkipDir
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if err := w.fs.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-w.ctx.Done():
			timer.Stop()
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				timer.Stop()
				return
			}
			w.handleEvent(event, timer)

		case err, ok := <-w.fs.Errors:
			if !ok {
				timer.Stop()
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				if err := w.engine.Refresh(w.ctx); err != nil {
					w.logger.Debug("watch-triggered refresh failed", "error", err)
				}
			}()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, timer *time.Timer) {
	// New directories need their own watch before their files produce
	// events.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !watchSkipDirs[info.Name()] {
				if err := w.addWatches(event.Name); err != nil {
					w.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	if !w.relevant(event.Name) {
		return
	}
	w.logger.Debug("relevant change", "path", event.Name, "op", event.Op)
	timer.Reset(w.debounce)
}

// relevant matches a changed path against the active snapshot's watcher
// globs.
func (w *Watcher) relevant(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, glob := range w.engine.Snapshot().WatcherGlobs {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return true
		}
	}
	return false
}
