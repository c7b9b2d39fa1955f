package events

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localtaskrepo/lotar/pkg/workspace"
)

func collectUntil(t *testing.T, sub *Subscriber, want int, timeout time.Duration) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for len(got) < want {
		select {
		case event := <-sub.Events():
			got = append(got, event)
		case <-deadline:
			t.Fatalf("timed out with %d of %d events", len(got), want)
		}
	}
	return got
}

func TestWatcherEmitsProjectChanged(t *testing.T) {
	t.Setenv("LOTAR_TEST_FAST_IO", "1")
	ws := workspace.New(filepath.Join(t.TempDir(), ".tasks"))
	require.NoError(t, ws.EnsureProjectDir("TEST"))

	bus := NewBus()
	sub := bus.Subscribe(0)
	w, err := NewWatcher(ws, bus)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(ws.TaskFilePath("TEST", 1), []byte("title: hello\n"), 0o644))

	got := collectUntil(t, sub, 1, 3*time.Second)
	require.Equal(t, KindProjectChanged, got[0].Kind)
	require.Equal(t, "TEST", got[0].Project)
}

func TestWatcherIgnoresSprintDir(t *testing.T) {
	t.Setenv("LOTAR_TEST_FAST_IO", "1")
	ws := workspace.New(filepath.Join(t.TempDir(), ".tasks"))
	require.NoError(t, ws.EnsureProjectDir("TEST"))
	require.NoError(t, ws.EnsureSprintsDir())

	bus := NewBus()
	sub := bus.Subscribe(0)
	w, err := NewWatcher(ws, bus)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(ws.SprintFilePath(1), []byte("plan: {}\n"), 0o644))
	// Then a real project change that must still come through alone.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(ws.TaskFilePath("TEST", 1), []byte("title: hi\n"), 0o644))

	got := collectUntil(t, sub, 1, 3*time.Second)
	require.Equal(t, "TEST", got[0].Project)

	select {
	case extra := <-sub.Events():
		t.Fatalf("unexpected extra event: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherCoalescesRapidWrites(t *testing.T) {
	t.Setenv("LOTAR_TEST_FAST_IO", "1")
	ws := workspace.New(filepath.Join(t.TempDir(), ".tasks"))
	require.NoError(t, ws.EnsureProjectDir("TEST"))

	bus := NewBus()
	sub := bus.Subscribe(0)
	w, err := NewWatcher(ws, bus)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	for i := 1; i <= 5; i++ {
		require.NoError(t, os.WriteFile(ws.TaskFilePath("TEST", 1), []byte("title: hello\n"), 0o644))
	}

	got := collectUntil(t, sub, 1, 3*time.Second)
	require.Equal(t, "TEST", got[0].Project)

	select {
	case extra := <-sub.Events():
		// A second flush can legitimately fire if writes straddled the
		// window, but it must still be the same project.
		require.Equal(t, "TEST", extra.Project)
	case <-time.After(100 * time.Millisecond):
	}
}
