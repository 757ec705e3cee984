package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"djtpls/internal/pyenv"
)

// Invoker runs the probe script for one project and returns its raw JSON
// payload. Concurrent Collect calls for the same project coalesce to a
// single subprocess; callers that arrive while a collection is in flight
// receive the in-flight result.
type Invoker struct {
	runner         ScriptRunner
	timeout        time.Duration
	settingsModule string
	projectKey     string

	group singleflight.Group

	logger *log.Logger
}

// New builds an invoker for a resolved environment strategy.
func New(strategy pyenv.Strategy, srcRoot, settingsModule string, timeout time.Duration) (*Invoker, error) {
	runner, err := NewRunner(strategy, srcRoot)
	if err != nil {
		return nil, err
	}
	return &Invoker{
		runner:         runner,
		timeout:        timeout,
		settingsModule: settingsModule,
		projectKey:     srcRoot,
		logger:         log.WithPrefix("collector"),
	}, nil
}

// NewWithRunner is the test seam: an invoker around an arbitrary runner.
func NewWithRunner(runner ScriptRunner, projectKey, settingsModule string, timeout time.Duration) *Invoker {
	return &Invoker{
		runner:         runner,
		timeout:        timeout,
		settingsModule: settingsModule,
		projectKey:     projectKey,
		logger:         log.WithPrefix("collector"),
	}
}

// Collect runs one collection attempt and returns the probe's JSON payload.
// Failures are always a *Error carrying the taxonomy kind and captured
// stderr. Duplicate concurrent calls share one attempt.
func (inv *Invoker) Collect(ctx context.Context) ([]byte, error) {
	payload, err, shared := inv.group.Do(inv.projectKey, func() (interface{}, error) {
		return inv.collectOnce(ctx)
	})
	if shared {
		inv.logger.Debug("joined in-flight collection", "project", inv.projectKey)
	}
	if err != nil {
		return nil, err
	}
	return payload.([]byte), nil
}

func (inv *Invoker) collectOnce(ctx context.Context) ([]byte, error) {
	scriptPath, err := stageScript()
	if err != nil {
		return nil, newError(KindScriptError, nil, err)
	}

	var args []string
	if inv.settingsModule != "" {
		args = append(args, "--django-settings-module="+inv.settingsModule)
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, err := inv.runner.Run(runCtx, scriptPath, args)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			inv.logger.Warn("collection timed out", "timeout", inv.timeout)
			return nil, newError(KindTimeout, stderr, fmt.Errorf("probe exceeded %s", inv.timeout))
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, newError(KindEnvironmentNotFound, stderr, err)
		}
		inv.logger.Warn("probe script failed", "error", err, "elapsed", elapsed)
		return nil, newError(KindScriptError, stderr, err)
	}

	// Quick structural check; full schema validation happens at ingest.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(stdout, &top); err != nil {
		inv.logger.Warn("probe produced malformed output", "bytes", len(stdout))
		return nil, newError(KindMalformedOutput, stderr, err)
	}

	inv.logger.Info("collection finished", "elapsed", elapsed, "bytes", len(stdout))
	return stdout, nil
}
