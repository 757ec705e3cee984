package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"djtpls/internal/config"
	"djtpls/internal/version"
)

func main() {
	app := &cli.App{
		Name:                   "djtpls",
		Usage:                  "Django template project introspection and symbol resolution server",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: .djtpls.kdl at the project root)",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringFlag{
				Name:  "compose-file",
				Usage: "Compose file consulted when no virtualenv is found",
			},
			&cli.StringFlag{
				Name:  "compose-service",
				Usage: "Compose service that runs Django",
			},
			&cli.StringFlag{
				Name:  "django-settings-module",
				Usage: "Explicit DJANGO_SETTINGS_MODULE for the probe",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Probe timeout in seconds",
			},
			&cli.BoolFlag{
				Name:  "cache",
				Usage: "Reuse the previous collection when project files are unchanged",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Log destination file (default: stderr)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the introspection engine for a project root",
				Action: serveCommand,
			},
			{
				Name:   "collect",
				Usage:  "Run one collection and print an inventory summary",
				Action: collectCommand,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Println(version.FullInfo())
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfigWithOverrides loads configuration and applies CLI flag
// overrides on top.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve root path %q: %w", root, err)
		}
		root = abs
	}

	cfg, err := config.LoadFile(root, c.String("config"))
	if err != nil {
		return nil, err
	}

	if v := c.String("compose-file"); v != "" {
		cfg.Collector.ComposeFile = v
	}
	if v := c.String("compose-service"); v != "" {
		cfg.Collector.ComposeService = v
	}
	if v := c.String("django-settings-module"); v != "" {
		cfg.Collector.SettingsModule = v
	}
	if c.IsSet("timeout") {
		cfg.Collector.TimeoutSec = c.Int("timeout")
	}
	if c.IsSet("cache") {
		cfg.Collector.Cache = c.Bool("cache")
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("log-file"); v != "" {
		cfg.Log.File = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(lc config.Log) error {
	if lc.Level != "" {
		level, err := log.ParseLevel(lc.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", lc.Level, err)
		}
		log.SetLevel(level)
	}
	log.SetReportTimestamp(true)

	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("cannot open log file: %w", err)
		}
		log.SetOutput(f)
	}
	return nil
}
