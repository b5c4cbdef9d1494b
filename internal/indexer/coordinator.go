package indexer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"insta-archive/internal/cache"
	"insta-archive/internal/database"
	"insta-archive/internal/logging"
	"insta-archive/internal/metrics"
	"insta-archive/internal/scanner"
)

// State is the coordinator's externally visible condition.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// Status is a point-in-time snapshot of the coordinator, safe to serialize.
type Status struct {
	State        State      `json:"state"`
	Running      bool       `json:"running"`
	RunID        string     `json:"runId,omitempty"`
	RerunPending bool       `json:"rerunPending"`
	LastStarted  *time.Time `json:"lastStarted,omitempty"`
	LastFinished *time.Time `json:"lastFinished,omitempty"`
	LastDuration string     `json:"lastDuration,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	LastCounts   *RunCounts `json:"lastCounts,omitempty"`
}

// run is one in-flight pipeline execution. done is closed when it finishes,
// after which err and counts are safe to read.
type run struct {
	id     string
	reason string
	done   chan struct{}
	err    error
	counts RunCounts
}

// Coordinator serializes index runs. At most one scan+reconcile pipeline
// executes at a time; triggers arriving mid-run collapse into exactly one
// follow-up run.
type Coordinator struct {
	mu       sync.Mutex
	current  *run
	rerun    bool
	state    State
	started  time.Time
	finished time.Time
	lastErr  error
	counts   RunCounts
	firstRun bool

	pipeline func() (RunCounts, error)
}

// New creates a coordinator running the standard pipeline: scan the data
// root, reconcile into db, then drop the read cache. cch may be nil.
func New(db *database.Database, scan *scanner.Scanner, cch *cache.Cache) *Coordinator {
	c := &Coordinator{state: StateIdle}
	c.pipeline = func() (RunCounts, error) {
		snap, err := scan.ScanRoot()
		if err != nil {
			return RunCounts{}, err
		}

		counts, err := Reconcile(db, snap, time.Now().UTC())
		if err != nil {
			return RunCounts{}, err
		}

		// Invalidation is best-effort: the transaction already committed,
		// so cache trouble must never fail the run.
		if cch != nil {
			cch.Clear()
		}

		if stats, statsErr := db.CalculateStats(context.Background()); statsErr != nil {
			logging.Warn("failed to refresh stats after index run: %v", statsErr)
		} else {
			db.UpdateStats(stats)
		}
		return counts, nil
	}
	return c
}

// Schedule requests an index run. If one is already in flight the request
// coalesces into a single pending rerun and Schedule returns immediately.
func (c *Coordinator) Schedule(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		if !c.rerun {
			logging.Info("Index run already active, queueing rerun (trigger: %s)", reason)
		} else {
			metrics.IndexerRerunsCoalesced.Inc()
		}
		c.rerun = true
		return
	}

	c.rerun = false
	c.startLocked(reason)
}

// TriggerAndWait starts a run if none is active, then blocks until the
// in-flight run finishes or ctx is cancelled. It returns the run's error.
func (c *Coordinator) TriggerAndWait(ctx context.Context, reason string) error {
	c.mu.Lock()
	if c.current == nil {
		c.rerun = false
		c.startLocked(reason)
	}
	r := c.current
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return r.err
	}
}

// Status reports the coordinator's current state without blocking.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:        c.state,
		Running:      c.current != nil,
		RerunPending: c.rerun,
	}
	if c.current != nil {
		s.RunID = c.current.id
	}
	if !c.started.IsZero() {
		t := c.started
		s.LastStarted = &t
	}
	if !c.finished.IsZero() {
		t := c.finished
		s.LastFinished = &t
		s.LastDuration = c.finished.Sub(c.started).String()
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if c.state == StateSuccess {
		counts := c.counts
		s.LastCounts = &counts
	}
	return s
}

// Ready reports whether the initial run has completed, regardless of its
// outcome. Used by the readiness probe.
func (c *Coordinator) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstRun
}

// startLocked begins a new run. Caller must hold c.mu.
func (c *Coordinator) startLocked(reason string) {
	r := &run{
		id:     uuid.New().String(),
		reason: reason,
		done:   make(chan struct{}),
	}
	c.current = r
	c.state = StateRunning
	c.started = time.Now()
	c.finished = time.Time{}
	c.lastErr = nil

	metrics.IndexerIsRunning.Set(1)
	logging.Info("Starting index run %s (trigger: %s)", r.id, reason)

	go c.execute(r)
}

func (c *Coordinator) execute(r *run) {
	start := time.Now()
	counts, err := c.pipeline()
	duration := time.Since(start)

	c.mu.Lock()
	r.counts = counts
	r.err = err
	c.finished = time.Now()
	c.lastErr = err

	if err != nil {
		c.state = StateFailure
		metrics.IndexerRunsTotal.WithLabelValues("failure").Inc()
		logging.Error("Index run %s failed after %v: %v", r.id, duration.Round(time.Millisecond), err)
	} else {
		c.state = StateSuccess
		c.counts = counts
		metrics.IndexerRunsTotal.WithLabelValues("success").Inc()
		logging.Info("Index run %s finished in %v: %+v", r.id, duration.Round(time.Millisecond), counts)
	}

	// Readiness means "the initial run completed", not "it succeeded":
	// a broken export tree still leaves the API serving whatever was
	// indexed before, with /health reporting degraded.
	c.firstRun = true

	metrics.IndexerLastRunTimestamp.SetToCurrentTime()
	metrics.IndexerLastRunDuration.Set(duration.Seconds())

	c.current = nil
	close(r.done)

	if c.rerun {
		c.rerun = false
		c.startLocked("rerun-requested")
	} else {
		metrics.IndexerIsRunning.Set(0)
	}
	c.mu.Unlock()
}
