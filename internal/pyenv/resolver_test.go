package pyenv

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVenv(t *testing.T, root, name string) string {
	t.Helper()
	binDir := filepath.Join(root, name, "bin")
	interpreter := filepath.Join(binDir, "python")
	if runtime.GOOS == "windows" {
		binDir = filepath.Join(root, name, "Scripts")
		interpreter = filepath.Join(binDir, "python.exe")
	}
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.WriteFile(interpreter, []byte("#!/bin/sh\n"), 0o755))
	return interpreter
}

func defaultOptions() Options {
	return Options{
		VenvDirs:       []string{"env", ".env", "venv", ".venv"},
		ComposeFile:    "docker-compose.yml",
		ComposeService: "django",
	}
}

func TestResolvePrefersVenvInterpreter(t *testing.T) {
	root := t.TempDir()
	interpreter := writeVenv(t, root, "venv")

	strategy, err := Resolve(root, defaultOptions())
	require.NoError(t, err)
	require.IsType(t, Interpreter{}, strategy)
	assert.Equal(t, interpreter, strategy.(Interpreter).Path)
}

func TestResolveVenvOrderIsFirstMatchWins(t *testing.T) {
	root := t.TempDir()
	expected := writeVenv(t, root, "env")
	writeVenv(t, root, ".venv")

	strategy, err := Resolve(root, defaultOptions())
	require.NoError(t, err)
	require.IsType(t, Interpreter{}, strategy)
	assert.Equal(t, expected, strategy.(Interpreter).Path)
}

func TestResolveComposeService(t *testing.T) {
	root := t.TempDir()
	compose := `
services:
  django:
    build: .
    command: python manage.py runserver
  db:
    image: postgres:16
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "docker-compose.yml"), []byte(compose), 0o644))

	strategy, err := Resolve(root, defaultOptions())
	require.NoError(t, err)
	require.IsType(t, ComposeService{}, strategy)
	assert.Equal(t, "django", strategy.(ComposeService).Service)
}

func TestResolveComposeServiceNotDeclared(t *testing.T) {
	root := t.TempDir()
	compose := `
services:
  web:
    image: nginx
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "docker-compose.yml"), []byte(compose), 0o644))

	// Falls through to the system interpreter; either outcome depends on
	// the host, but a compose strategy must never be selected.
	strategy, err := Resolve(root, defaultOptions())
	if err == nil {
		assert.NotEqual(t, "django", describeService(strategy))
	}
}

func describeService(s Strategy) string {
	if cs, ok := s.(ComposeService); ok {
		return cs.Service
	}
	return ""
}

func TestResolveVenvBeatsCompose(t *testing.T) {
	root := t.TempDir()
	writeVenv(t, root, ".venv")
	compose := "services:\n  django:\n    build: .\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "docker-compose.yml"), []byte(compose), 0o644))

	strategy, err := Resolve(root, defaultOptions())
	require.NoError(t, err)
	assert.IsType(t, Interpreter{}, strategy)
}

func TestComposeDeclaresServiceMalformedYAML(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte("services: [unbalanced"), 0o644))

	_, err := composeDeclaresService(path, "django")
	assert.Error(t, err)
}

func TestComposeDeclaresServiceMissingFile(t *testing.T) {
	declared, err := composeDeclaresService(filepath.Join(t.TempDir(), "nope.yml"), "django")
	require.NoError(t, err)
	assert.False(t, declared)
}
