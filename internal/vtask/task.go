// Package vtask implements the visual task tree of spec.md §4.2: a shared,
// observable handle with weighted subtasks, live progress aggregation,
// and cancellation, registered in a process-wide map the way the teacher's
// scheduler tracks running executions in a map guarded by its own mutex
// (internal/scheduler/scheduler.go's runningExecutions/executionMu split).
package vtask

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nickheyer/launcherd/internal/events"
)

// TaskId is a monotonically increasing task identifier.
type TaskId int64

// Subtask is a weighted progress element owned by a Task.
type Subtask struct {
	mu       sync.Mutex
	Name     string
	Weight   float64
	started  bool
	progress Progress
}

func newSubtask(name string, weight float64) *Subtask {
	if weight <= 0 {
		weight = 1.0
	}
	return &Subtask{Name: name, Weight: weight, progress: Opaque(false)}
}

// Start marks the subtask as started and sets its initial progress.
func (s *Subtask) Start(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.progress = p
}

// Update replaces the subtask's current progress value.
func (s *Subtask) Update(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
}

func (s *Subtask) snapshot() (bool, float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.Weight, s.progress.Fraction()
}

// Task is a shared observable handle over a tree of weighted subtasks.
type Task struct {
	ID            TaskId
	Name          string
	Indeterminate atomic.Bool

	mu       sync.Mutex
	subtasks []*Subtask
	cancel   context.CancelFunc
	ctx      context.Context
	done     bool
	failed   bool
	cancelled bool

	registry *Registry
}

// Subtask registers and returns a new weighted subtask, publishing an
// invalidation for this task's progress.
func (t *Task) Subtask(name string, weight float64) *Subtask {
	t.mu.Lock()
	st := newSubtask(name, weight)
	t.subtasks = append(t.subtasks, st)
	t.mu.Unlock()
	t.registry.notify(t.ID)
	return st
}

// Notify publishes an invalidation for this task; callers should invoke it
// after mutating a subtask returned from Subtask.
func (t *Task) Notify() {
	t.registry.notify(t.ID)
}

// Context returns the task's cancellation context; long-running work
// observes ctx.Done() at buffer/chunk boundaries per §5.
func (t *Task) Context() context.Context {
	return t.ctx
}

// Percentage computes Σ(weight_i/Σweights) × progress_i, per §4.2.
func (t *Task) Percentage() float64 {
	t.mu.Lock()
	subtasks := make([]*Subtask, len(t.subtasks))
	copy(subtasks, t.subtasks)
	t.mu.Unlock()

	var totalWeight, weighted float64
	for _, st := range subtasks {
		_, weight, frac := st.snapshot()
		totalWeight += weight
		weighted += weight * frac
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

// DownloadedBytes is the elementwise sum over Download subtasks, per §4.2.
func (t *Task) DownloadedBytes() uint64 {
	t.mu.Lock()
	subtasks := make([]*Subtask, len(t.subtasks))
	copy(subtasks, t.subtasks)
	t.mu.Unlock()

	var sum uint64
	for _, st := range subtasks {
		st.mu.Lock()
		if d, ok := st.progress.(Download); ok {
			sum += d.Downloaded
		}
		st.mu.Unlock()
	}
	return sum
}

// Cancel fires the task's abort handle and marks it cancelled. This is the
// dismiss(task) operation of §4.2.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	t.mu.Unlock()
	t.cancel()
	t.registry.notify(t.ID)
}

// Cancelled reports whether Cancel has been called.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Finish marks the task complete (success or failure) and removes it from
// the registry, per the "removed the moment it completes, fails, or is
// cancelled" lifecycle rule in spec.md §3.
func (t *Task) Finish(failed bool) {
	t.mu.Lock()
	t.done = true
	t.failed = failed
	t.mu.Unlock()
	t.registry.remove(t.ID)
}

// Registry is the process-wide map of active tasks, keyed by TaskId. It
// coalesces subtask-mutation invalidations to at most once per tick so a
// burst of progress updates produces one frontend refresh, matching the
// "at most once per tick" rule in spec.md §4.2.
type Registry struct {
	bus    *events.Bus
	nextID atomic.Int64

	mu    sync.RWMutex
	tasks map[TaskId]*Task

	dirtyMu sync.Mutex
	dirty   map[TaskId]bool

	tickOnce sync.Once
	interval time.Duration
	stop     chan struct{}
}

// NewRegistry constructs a Registry publishing invalidations on bus,
// coalesced to one tick per interval.
func NewRegistry(bus *events.Bus, interval time.Duration) *Registry {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	r := &Registry{
		bus:      bus,
		tasks:    make(map[TaskId]*Task),
		dirty:    make(map[TaskId]bool),
		interval: interval,
		stop:     make(chan struct{}),
	}
	go r.coalesceLoop()
	return r
}

func (r *Registry) coalesceLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) flush() {
	r.dirtyMu.Lock()
	ids := make([]TaskId, 0, len(r.dirty))
	for id := range r.dirty {
		ids = append(ids, id)
	}
	r.dirty = make(map[TaskId]bool)
	r.dirtyMu.Unlock()

	for _, id := range ids {
		r.bus.Publish(events.Event{Type: events.EventGetTask, TaskID: int64(id)})
	}
	if len(ids) > 0 {
		r.bus.Publish(events.Event{Type: events.EventGetTasks})
	}
}

func (r *Registry) notify(id TaskId) {
	r.dirtyMu.Lock()
	r.dirty[id] = true
	r.dirtyMu.Unlock()
}

// Stop halts the coalescing loop. Call once at shutdown.
func (r *Registry) Stop() {
	r.tickOnce.Do(func() { close(r.stop) })
}

// New creates and registers a new Task with the given display name,
// returning it alongside a context that is cancelled by Task.Cancel or by
// parent cancellation.
func (r *Registry) New(ctx context.Context, name string) *Task {
	id := TaskId(r.nextID.Add(1))
	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		ID:       id,
		Name:     name,
		ctx:      taskCtx,
		cancel:   cancel,
		registry: r,
	}

	r.mu.Lock()
	r.tasks[id] = t
	r.mu.Unlock()

	r.bus.Publish(events.Event{Type: events.EventGetTasks})
	return t
}

func (r *Registry) remove(id TaskId) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
	r.bus.Publish(events.Event{Type: events.EventGetTasks})
}

// Get returns the task for id, if still active.
func (r *Registry) Get(id TaskId) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// List returns all currently active tasks.
func (r *Registry) List() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out
}
