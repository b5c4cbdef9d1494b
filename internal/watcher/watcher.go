package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"insta-archive/internal/logging"
	"insta-archive/internal/metrics"
)

// Scheduler is the subset of the run coordinator the watcher needs.
type Scheduler interface {
	Schedule(reason string)
}

// Watcher monitors the export tree and schedules an index run when files
// change. Events are debounced so a crawler dumping hundreds of files
// triggers one run, not hundreds.
type Watcher struct {
	dataDir   string
	scheduler Scheduler
	debounce  time.Duration
	stop      chan struct{}
}

// New creates a watcher for dataDir that notifies scheduler on changes.
func New(dataDir string, scheduler Scheduler) *Watcher {
	return &Watcher{
		dataDir:   dataDir,
		scheduler: scheduler,
		debounce:  5 * time.Second,
		stop:      make(chan struct{}),
	}
}

// Watch runs the event loop until Stop is called. Intended to be run in
// its own goroutine.
func (w *Watcher) Watch() {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Error("Failed to create file watcher: %v", err)
		metrics.WatcherErrors.Inc()
		return
	}
	defer func() {
		if err := fw.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	watched := w.addDirectories(fw)
	logging.Debug("Watcher started, watching %d directories", watched)

	w.processEvents(fw)
}

// Stop terminates the event loop.
func (w *Watcher) Stop() {
	close(w.stop)
}

// addDirectories watches the data root, each account directory and each
// highlight subdirectory. The export tree is at most two levels deep.
func (w *Watcher) addDirectories(fw *fsnotify.Watcher) int {
	watched := 0
	err := filepath.Walk(w.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
			if addErr := fw.Add(path); addErr != nil {
				logging.Warn("failed to watch %s: %v", path, addErr)
				metrics.WatcherErrors.Inc()
			} else {
				watched++
			}
		}
		return nil
	})
	if err != nil {
		logging.Error("failed to walk data directory for watcher: %v", err)
		metrics.WatcherErrors.Inc()
	}
	return watched
}

func (w *Watcher) processEvents(fw *fsnotify.Watcher) {
	// The timer fires once after a quiet period following a burst of events.
	debounce := time.NewTimer(w.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.handleEvent(fw, event) {
				continue
			}
			if pending && !debounce.Stop() {
				<-debounce.C
			}
			debounce.Reset(w.debounce)
			pending = true

		case <-debounce.C:
			pending = false
			logging.Debug("Filesystem change settled, scheduling index run")
			w.scheduler.Schedule("fs-change")

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

// handleEvent records the event and reports whether it should count
// towards scheduling a run.
func (w *Watcher) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event) bool {
	// Skip hidden files
	if strings.Contains(event.Name, string(os.PathSeparator)+".") {
		return false
	}

	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	// New account or highlight directories need watching too.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if addErr := fw.Add(event.Name); addErr != nil {
				logging.Warn("failed to watch new directory %s: %v", event.Name, addErr)
				metrics.WatcherErrors.Inc()
			} else {
				logging.Debug("Watching new directory: %s", event.Name)
			}
		}
	}

	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
