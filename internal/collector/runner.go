package collector

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"

	"djtpls/internal/pyenv"
)

// ScriptRunner executes a Python script within a deadline and captures its
// stdout and stderr. The three implementations (project interpreter, compose
// service, system interpreter) are interchangeable from the invoker's point
// of view.
type ScriptRunner interface {
	Run(ctx context.Context, scriptPath string, args []string) (stdout, stderr []byte, err error)
}

// NewRunner builds the runner matching a resolved environment strategy.
func NewRunner(strategy pyenv.Strategy, srcRoot string) (ScriptRunner, error) {
	switch s := strategy.(type) {
	case pyenv.Interpreter:
		return &interpreterRunner{python: s.Path, srcRoot: srcRoot}, nil
	case pyenv.System:
		return &interpreterRunner{python: s.Path, srcRoot: srcRoot}, nil
	case pyenv.ComposeService:
		return &composeRunner{composeFile: s.File, service: s.Service, srcRoot: srcRoot}, nil
	default:
		return nil, fmt.Errorf("unsupported environment strategy %T", strategy)
	}
}

// interpreterRunner covers both the project virtualenv and the system
// interpreter; only the interpreter path differs.
type interpreterRunner struct {
	python  string
	srcRoot string
}

func (r *interpreterRunner) Run(ctx context.Context, scriptPath string, args []string) ([]byte, []byte, error) {
	cmdArgs := append([]string{scriptPath, "--project-src=" + r.srcRoot}, args...)
	cmd := exec.CommandContext(ctx, r.python, cmdArgs...)
	cmd.Dir = r.srcRoot
	return runCommand(cmd)
}

// composeRunner executes the script inside the configured compose service.
// The script and the project source are bind-mounted so the container needs
// nothing pre-installed beyond the project's own environment.
type composeRunner struct {
	composeFile string
	service     string
	srcRoot     string
}

const (
	containerScriptPath = "/djtpls-collector.py"
	containerSrcPath    = "/djtpls-src"
)

func (r *composeRunner) Run(ctx context.Context, scriptPath string, args []string) ([]byte, []byte, error) {
	cmdArgs := []string{
		"compose",
		"--file=" + r.composeFile,
		"run",
		"--rm",
		"--no-deps",
		"-T",
		"--volume=" + scriptPath + ":" + containerScriptPath + ":ro",
		"--volume=" + r.srcRoot + ":" + containerSrcPath + ":ro",
		r.service,
		"python",
		containerScriptPath,
		"--project-src=" + containerSrcPath,
	}
	cmdArgs = append(cmdArgs, args...)
	cmd := exec.CommandContext(ctx, "docker", cmdArgs...)
	return runCommand(cmd)
}

func runCommand(cmd *exec.Cmd) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debug("running collector", "command", cmd.String())
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// stageScript writes the embedded probe script to a stable location in the
// OS temp dir so it can be executed directly or bind-mounted into a
// container. The file is rewritten on every collection to survive temp dir
// cleanup and server upgrades.
func stageScript() (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("djtpls-collector-%d.py", os.Getuid()))
	if err := os.WriteFile(path, probeScript, 0o644); err != nil {
		return "", fmt.Errorf("stage collector script: %w", err)
	}
	return path, nil
}
