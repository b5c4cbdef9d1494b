package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// testCoordinator returns a coordinator whose pipeline is the given func,
// bypassing the filesystem and the store entirely.
func testCoordinator(pipeline func() (RunCounts, error)) *Coordinator {
	return &Coordinator{state: StateIdle, pipeline: pipeline}
}

func waitForIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s := c.Status()
		if !s.Running && !s.RerunPending {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("coordinator never went idle")
}

func TestScheduleRunsOnce(t *testing.T) {
	var mu sync.Mutex
	runs := 0

	c := testCoordinator(func() (RunCounts, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		return RunCounts{PostsCreated: 1}, nil
	})

	c.Schedule("test")
	waitForIdle(t, c)

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}

	s := c.Status()
	if s.State != StateSuccess {
		t.Errorf("state = %q, want success", s.State)
	}
	if s.LastCounts == nil || s.LastCounts.PostsCreated != 1 {
		t.Errorf("LastCounts = %+v", s.LastCounts)
	}
}

func TestScheduleCoalesces(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	var mu sync.Mutex
	runs := 0

	c := testCoordinator(func() (RunCounts, error) {
		mu.Lock()
		runs++
		first := runs == 1
		mu.Unlock()
		started <- struct{}{}
		if first {
			<-release
		}
		return RunCounts{}, nil
	})

	c.Schedule("a")
	<-started // first run is now in flight

	// All of these must collapse into exactly one rerun.
	c.Schedule("b")
	c.Schedule("c")
	c.Schedule("d")

	if !c.Status().RerunPending {
		t.Error("expected a pending rerun while the first run is active")
	}

	close(release)
	waitForIdle(t, c)

	mu.Lock()
	defer mu.Unlock()
	if runs != 2 {
		t.Errorf("runs = %d, want 2 (initial + one coalesced rerun)", runs)
	}
}

func TestTriggerAndWait(t *testing.T) {
	c := testCoordinator(func() (RunCounts, error) {
		return RunCounts{AccountsCreated: 3}, nil
	})

	if err := c.TriggerAndWait(context.Background(), "test"); err != nil {
		t.Fatalf("TriggerAndWait: %v", err)
	}

	s := c.Status()
	if s.State != StateSuccess {
		t.Errorf("state = %q, want success", s.State)
	}
	if s.LastCounts == nil || s.LastCounts.AccountsCreated != 3 {
		t.Errorf("LastCounts = %+v", s.LastCounts)
	}
}

func TestTriggerAndWaitAttachesToActiveRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	runs := 0

	c := testCoordinator(func() (RunCounts, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		once.Do(func() { close(started) })
		<-release
		return RunCounts{}, nil
	})

	c.Schedule("a")
	<-started

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- c.TriggerAndWait(context.Background(), "b")
	}()

	// The waiter must not have started a second run.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	if runs != 1 {
		t.Errorf("runs = %d while first run active, want 1", runs)
	}
	mu.Unlock()

	close(release)
	if err := <-waitErr; err != nil {
		t.Errorf("TriggerAndWait: %v", err)
	}
}

func TestTriggerAndWaitContextCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := testCoordinator(func() (RunCounts, error) {
		<-release
		return RunCounts{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := c.TriggerAndWait(ctx, "test"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestRunFailureRecorded(t *testing.T) {
	wantErr := errors.New("scan blew up")
	c := testCoordinator(func() (RunCounts, error) {
		return RunCounts{}, wantErr
	})

	if err := c.TriggerAndWait(context.Background(), "test"); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	s := c.Status()
	if s.State != StateFailure {
		t.Errorf("state = %q, want failure", s.State)
	}
	if s.LastError != "scan blew up" {
		t.Errorf("LastError = %q", s.LastError)
	}
	if s.LastCounts != nil {
		t.Error("failed run should not report counts")
	}
	// Readiness means the initial run completed, even if it failed.
	if !c.Ready() {
		t.Error("Ready should be true once the first run completes")
	}
}

func TestReadyAfterFirstRun(t *testing.T) {
	c := testCoordinator(func() (RunCounts, error) {
		return RunCounts{}, nil
	})

	if c.Ready() {
		t.Error("Ready should be false before any run")
	}
	if err := c.TriggerAndWait(context.Background(), "startup"); err != nil {
		t.Fatal(err)
	}
	if !c.Ready() {
		t.Error("Ready should be true after the first run")
	}
}

func TestStatusWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	c := testCoordinator(func() (RunCounts, error) {
		close(started)
		<-release
		return RunCounts{}, nil
	})

	c.Schedule("test")
	<-started

	s := c.Status()
	if s.State != StateRunning || !s.Running {
		t.Errorf("status = %+v, want running", s)
	}
	if s.RunID == "" {
		t.Error("expected a run id while running")
	}

	close(release)
	waitForIdle(t, c)
}
