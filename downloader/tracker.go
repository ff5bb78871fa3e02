package downloader

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"webtoondl/models"
)

// TaskStatus is the lifecycle state of a tracked request
type TaskStatus string

const (
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Task is a snapshot of one request's progress
type Task struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Episode    int           `json:"episode"`
	Format     models.Format `json:"format"`
	Status     TaskStatus    `json:"status"`
	Progress   float64       `json:"progress"` // 0 to 100
	Message    string        `json:"message,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitzero"`
}

// Done reports whether the task has finished, successfully or not
func (t Task) Done() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Tracker keeps per-request progress. Finished tasks keep their final value
// for the retention window and are then dropped.
type Tracker struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	latest    string
	retention time.Duration
	now       func() time.Time

	// Called outside the lock after every change
	onTaskUpdated func(Task)
}

// NewTracker creates a tracker. retention <= 0 drops finished tasks on the
// next prune.
func NewTracker(retention time.Duration) *Tracker {
	return &Tracker{
		tasks:     make(map[string]*Task),
		retention: retention,
		now:       time.Now,
	}
}

// SetCallbacks registers a function called with a snapshot after every change
func (t *Tracker) SetCallbacks(onUpdated func(Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTaskUpdated = onUpdated
}

// Start registers a new running task at progress 0 and makes it the latest.
func (t *Tracker) Start(req models.Request) error {
	t.mu.Lock()
	t.pruneLocked()

	if existing, ok := t.tasks[req.ID]; ok && !existing.Done() {
		t.mu.Unlock()
		return fmt.Errorf("task %s is already running", req.ID)
	}

	task := &Task{
		ID:        req.ID,
		Title:     req.Title,
		Episode:   req.Episode,
		Format:    req.Format,
		Status:    StatusRunning,
		Message:   "Starting download...",
		StartedAt: t.now(),
	}
	t.tasks[req.ID] = task
	t.latest = req.ID
	snapshot, cb := *task, t.onTaskUpdated
	t.mu.Unlock()

	log.Printf("[Tracker] Added task: %s (%s ep %d)", req.ID, req.Title, req.Episode)
	if cb != nil {
		cb(snapshot)
	}
	return nil
}

// SetProgress raises the task's progress to p, clamped to [0,100].
// Lower values are ignored so progress never goes backwards.
func (t *Tracker) SetProgress(id string, p float64, message string) {
	t.update(id, func(task *Task) bool {
		if task.Done() {
			return false
		}
		p = min(max(p, 0), 100)
		if p < task.Progress {
			return false
		}
		task.Progress = p
		if message != "" {
			task.Message = message
		}
		return true
	})
}

// Complete marks the task finished. Progress keeps its last value.
func (t *Tracker) Complete(id string) {
	t.update(id, func(task *Task) bool {
		if task.Done() {
			return false
		}
		task.Status = StatusCompleted
		task.Message = "Download complete"
		task.FinishedAt = t.now()
		return true
	})
	log.Printf("[Tracker] Task completed: %s", id)
}

// Fail marks the task failed with the client-facing message for err
func (t *Tracker) Fail(id string, err error) {
	t.update(id, func(task *Task) bool {
		if task.Done() {
			return false
		}
		task.Status = StatusFailed
		task.Message = PublicMessage(err)
		task.Error = err.Error()
		task.FinishedAt = t.now()
		return true
	})
	log.Printf("[Tracker] Task failed: %s (%v)", id, err)
}

func (t *Tracker) update(id string, fn func(*Task) bool) {
	t.mu.Lock()
	task, ok := t.tasks[id]
	if !ok || !fn(task) {
		t.mu.Unlock()
		return
	}
	snapshot, cb := *task, t.onTaskUpdated
	t.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Get returns a snapshot of the task with id
func (t *Tracker) Get(id string) (Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()

	task, ok := t.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Latest returns the most recently started task still tracked
func (t *Tracker) Latest() (Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()

	task, ok := t.tasks[t.latest]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Tasks returns snapshots of all tracked tasks, oldest first
func (t *Tracker) Tasks() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()

	out := make([]Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// pruneLocked drops finished tasks older than the retention window.
// Caller must hold t.mu.
func (t *Tracker) pruneLocked() {
	cutoff := t.now().Add(-t.retention)
	for id, task := range t.tasks {
		if task.Done() && !task.FinishedAt.After(cutoff) {
			delete(t.tasks, id)
		}
	}
}
