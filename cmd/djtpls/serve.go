package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"djtpls/internal/server"
)

// serveCommand runs the engine until interrupted. The editor protocol
// layer embeds the engine's query API; this process keeps the inventory
// fresh for it.
func serveCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := server.New(cfg)
	log.Info("serving project", "root", cfg.Project.Root, "src", cfg.Project.SrcRoot)

	// Initial collection in the background; queries work off builtins (or
	// the warm-started cache) until it lands.
	go func() {
		if err := engine.Refresh(ctx); err != nil {
			log.Warn("initial collection failed", "error", err)
		}
	}()

	var watcher *server.Watcher
	if cfg.Watch.Enabled {
		watcher, err = server.StartWatcher(engine, cfg.Project.Root, cfg.Watch.Debounce())
		if err != nil {
			return fmt.Errorf("cannot start file watcher: %w", err)
		}
		log.Info("watching for template changes", "debounce", cfg.Watch.Debounce())
	}

	<-ctx.Done()
	log.Info("shutting down")
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			log.Warn("watcher shutdown", "error", err)
		}
	}
	return nil
}

// collectCommand runs one collection and prints what it found, as a
// debugging aid for project setup.
func collectCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := server.New(cfg)
	if err := engine.Refresh(ctx); err != nil {
		for _, diag := range engine.Diagnostics() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", diag.Stage, diag.Message)
		}
		return err
	}

	snap := engine.Snapshot()
	fmt.Printf("generation:   %d\n", snap.Generation)
	fmt.Printf("apps:         %d\n", len(snap.Apps))
	fmt.Printf("libraries:    %d\n", len(snap.Libraries))
	fmt.Printf("templates:    %d\n", len(snap.Templates))
	fmt.Printf("urls:         %d\n", len(snap.URLs))
	fmt.Printf("static files: %d\n", len(snap.StaticFiles))
	fmt.Printf("object types: %d\n", len(snap.ObjectTypes))
	return nil
}
