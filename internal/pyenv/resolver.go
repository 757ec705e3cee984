// Package pyenv selects the execution environment used to run the probe
// script inside the target Django project. Resolution is pure filesystem
// and file-content inspection; no subprocess is spawned here.
package pyenv

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Strategy describes one way to execute a Python script for the project.
// Exactly one concrete type is returned by Resolve.
type Strategy interface {
	// Describe returns a human-readable summary for logs and diagnostics.
	Describe() string
}

// Interpreter runs scripts with an interpreter found inside the project,
// typically a virtualenv.
type Interpreter struct {
	Path string
}

func (s Interpreter) Describe() string {
	return fmt.Sprintf("project interpreter %s", s.Path)
}

// ComposeService runs scripts inside a service declared by a docker compose
// file at the project root.
type ComposeService struct {
	File    string // absolute path to the compose file
	Service string
}

func (s ComposeService) Describe() string {
	return fmt.Sprintf("compose service %s (%s)", s.Service, s.File)
}

// System runs scripts with whatever interpreter the host resolves by name.
type System struct {
	Path string
}

func (s System) Describe() string {
	return fmt.Sprintf("system interpreter %s", s.Path)
}

// Options controls strategy resolution.
type Options struct {
	VenvDirs       []string // candidate virtualenv directory names, in order
	ComposeFile    string   // compose file name relative to root
	ComposeService string   // service name that must be declared
}

// ErrNoEnvironment is returned when no interpreter or compose service can be
// resolved for the project.
var ErrNoEnvironment = fmt.Errorf("no python environment found")

// Resolve picks the execution strategy for a project root. The decision list
// is evaluated top to bottom, first match wins:
//
//  1. an interpreter inside one of the candidate virtualenv directories
//  2. the configured compose file declaring the configured service
//  3. a python interpreter on the invoking process's PATH
func Resolve(root string, opts Options) (Strategy, error) {
	for _, dir := range opts.VenvDirs {
		if path, ok := venvInterpreter(filepath.Join(root, dir)); ok {
			log.Debug("resolved project interpreter", "path", path)
			return Interpreter{Path: path}, nil
		}
	}

	if opts.ComposeFile != "" {
		composePath := filepath.Join(root, opts.ComposeFile)
		if declared, err := composeDeclaresService(composePath, opts.ComposeService); err != nil {
			log.Warn("could not inspect compose file", "path", composePath, "error", err)
		} else if declared {
			log.Debug("resolved compose service", "file", composePath, "service", opts.ComposeService)
			return ComposeService{File: composePath, Service: opts.ComposeService}, nil
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug("resolved system interpreter", "path", path)
			return System{Path: path}, nil
		}
	}

	return nil, ErrNoEnvironment
}

// venvInterpreter returns the interpreter path inside a virtualenv directory
// if one exists.
func venvInterpreter(venvDir string) (string, bool) {
	candidates := []string{filepath.Join(venvDir, "bin", "python")}
	if runtime.GOOS == "windows" {
		candidates = []string{
			filepath.Join(venvDir, "Scripts", "python.exe"),
			filepath.Join(venvDir, "bin", "python"),
		}
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// composeFile is the subset of the compose schema needed to check service
// declarations.
type composeFile struct {
	Services map[string]yaml.Node `yaml:"services"`
}

// composeDeclaresService reports whether the compose file at path declares
// the named service. A missing file is not an error; malformed YAML is.
func composeDeclaresService(path, service string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var parsed composeFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	_, ok := parsed.Services[service]
	return ok, nil
}
