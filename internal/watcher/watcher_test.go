package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingScheduler struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordingScheduler) Schedule(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *recordingScheduler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

func TestWatchSchedulesOnChange(t *testing.T) {
	dir := t.TempDir()
	sched := &recordingScheduler{}

	w := New(dir, sched)
	w.debounce = 50 * time.Millisecond
	go w.Watch()
	defer w.Stop()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "2024-01-01_10-00-00_UTC.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sched.count() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("watcher never scheduled a run")
}

func TestWatchDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	sched := &recordingScheduler{}

	w := New(dir, sched)
	w.debounce = 100 * time.Millisecond
	go w.Watch()
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)

	// A burst of writes inside the debounce window.
	for i := 0; i < 10; i++ {
		name := filepath.Join(dir, "file"+string(rune('a'+i))+".jpg")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)

	if got := sched.count(); got != 1 {
		t.Errorf("schedules = %d, want 1 for a single burst", got)
	}
}

func TestWatchIgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	sched := &recordingScheduler{}

	w := New(dir, sched)
	w.debounce = 50 * time.Millisecond
	go w.Watch()
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)

	if got := sched.count(); got != 0 {
		t.Errorf("schedules = %d, want 0 for hidden files", got)
	}
}
