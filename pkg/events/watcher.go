package events

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/localtaskrepo/lotar/pkg/constants"
	"github.com/localtaskrepo/lotar/pkg/logger"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

var watchLog = logger.New("events:watcher")

// Watcher tails the workspace for external edits to task YAML and publishes
// project_changed events. Changes under @sprints/ are deliberately ignored:
// sprint mutations route through the services, which publish their own
// events. Editor swap patterns (write temp, rename) collapse into one event
// per project within the debounce window.
type Watcher struct {
	ws       workspace.Workspace
	bus      *Bus
	fs       *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a watcher over the workspace root. LOTAR_TEST_FAST_IO
// shortens the debounce for tests.
func NewWatcher(ws workspace.Workspace, bus *Bus) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := 250 * time.Millisecond
	if os.Getenv("LOTAR_TEST_FAST_IO") != "" {
		debounce = 10 * time.Millisecond
	}

	return &Watcher{
		ws:       ws,
		bus:      bus,
		fs:       fs,
		debounce: debounce,
		pending:  map[string]bool{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start registers the existing directories and begins the event loop on its
// own goroutine.
func (w *Watcher) Start() error {
	if err := w.fs.Add(w.ws.Root()); err != nil {
		return err
	}
	projects, err := w.ws.ListProjects()
	if err != nil {
		return err
	}
	for _, prefix := range projects {
		if err := w.fs.Add(w.ws.ProjectDir(prefix)); err != nil {
			watchLog.Printf("watch %s: %v", prefix, err)
		}
	}

	go w.loop()
	return nil
}

// Stop halts the loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	defer w.fs.Close()

	for {
		select {
		case <-w.stopCh:
			return
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			watchLog.Printf("watch error: %v", err)
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	relative, err := filepath.Rel(w.ws.Root(), event.Name)
	if err != nil || strings.HasPrefix(relative, "..") {
		return
	}

	parts := strings.Split(filepath.ToSlash(relative), "/")
	prefix := parts[0]

	// Sprint files route through service events, never the watcher.
	if prefix == constants.SprintsDirName {
		return
	}

	// A new project directory appears: start watching inside it.
	if len(parts) == 1 && event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && workspace.ValidPrefix(prefix) {
			if err := w.fs.Add(event.Name); err != nil {
				watchLog.Printf("watch %s: %v", prefix, err)
			}
		}
		return
	}

	if len(parts) < 2 || !workspace.ValidPrefix(prefix) {
		return
	}

	name := parts[len(parts)-1]
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".yml") {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Remove) {
		return
	}

	w.mu.Lock()
	w.pending[prefix] = true
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
	w.mu.Unlock()
}

// flush publishes one project_changed per touched project.
func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = map[string]bool{}
	w.timer = nil
	w.mu.Unlock()

	for prefix := range pending {
		watchLog.Printf("project %s changed on disk", prefix)
		w.bus.Publish(Event{Kind: KindProjectChanged, Project: prefix})
	}
}
