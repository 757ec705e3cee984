package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcherTriggersRefreshOnTemplateChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	templates := filepath.Join(root, "shop", "templates")
	require.NoError(t, os.MkdirAll(templates, 0o755))

	runner := &fakeRunner{stdout: []byte(enginePayload)}
	e := testEngine(t, runner)

	w, err := StartWatcher(e, root, 20*time.Millisecond)
	require.NoError(t, err)

	target := filepath.Join(templates, "detail.html")
	require.NoError(t, os.WriteFile(target, []byte("{{ product }}"), 0o644))

	require.Eventually(t, func() bool {
		return runner.runs.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond, "template write should trigger a collection")

	require.NoError(t, w.Close())
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))

	runner := &fakeRunner{stdout: []byte(enginePayload)}
	e := testEngine(t, runner)

	w, err := StartWatcher(e, root, 20*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "notes.txt"), []byte("x"), 0o644))

	time.Sleep(150 * time.Millisecond)
	require.Zero(t, runner.runs.Load(), "non-template change must not trigger collection")

	require.NoError(t, w.Close())
}

func TestWatcherStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	e := testEngine(t, &fakeRunner{stdout: []byte(enginePayload)})

	w, err := StartWatcher(e, root, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}
