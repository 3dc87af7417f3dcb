package archive

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Stage is the lifecycle position of an ingestion task.
type Stage int

const (
	StagePreparing Stage = iota
	StageDownloading
	StageExtracting
	StageSaving
	StageCompleted
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StagePreparing:
		return "preparing"
	case StageDownloading:
		return "downloading"
	case StageExtracting:
		return "extracting"
	case StageSaving:
		return "saving"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Task is a snapshot of an ingestion's state.
type Task struct {
	ID       string  `json:"id"`
	Stage    Stage   `json:"stage"`
	Progress float64 `json:"progress"`
	// Result is the catalog id of the ingested mod once completed.
	Result *uint `json:"result,omitempty"`
}

// Registry tracks in-flight tasks. All methods are safe for concurrent use.
//
// Updating an id that was never submitted is a programming error and panics.
// Progress never decreases, stages never move backwards, and terminal tasks
// ignore further updates.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Submit registers a new Preparing task under id. It returns false, leaving
// the existing task untouched, if id is already registered.
func (r *Registry) Submit(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[id]; exists {
		return false
	}
	r.tasks[id] = &Task{ID: id, Stage: StagePreparing}
	return true
}

func (r *Registry) mustGet(id string) *Task {
	t, ok := r.tasks[id]
	if !ok {
		panic(fmt.Sprintf("archive: task %q is not registered", id))
	}
	return t
}

// Advance moves a task to stage and raises its progress.
func (r *Registry) Advance(id string, stage Stage, progress float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.mustGet(id)
	if t.Stage.Terminal() {
		return
	}
	if stage > t.Stage {
		t.Stage = stage
	}
	raise(t, progress)
}

// SetProgress raises a task's progress without changing its stage.
func (r *Registry) SetProgress(id string, progress float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.mustGet(id)
	if t.Stage.Terminal() {
		return
	}
	raise(t, progress)
}

// Complete marks a task Completed with full progress and its result.
func (r *Registry) Complete(id string, result uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.mustGet(id)
	if t.Stage.Terminal() {
		return
	}
	t.Stage = StageCompleted
	t.Progress = 1
	t.Result = &result
}

// Fail marks a task Failed, keeping its progress.
func (r *Registry) Fail(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.mustGet(id)
	if t.Stage.Terminal() {
		return
	}
	t.Stage = StageFailed
}

// Get returns a copy of the task registered under id.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	snapshot := *t
	if t.Result != nil {
		result := *t.Result
		snapshot.Result = &result
	}
	return snapshot, true
}

// Remove forgets id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// RemoveIfTerminal forgets id only while its task is Completed or Failed,
// so a stale removal cannot drop a task resubmitted under the same id.
func (r *Registry) RemoveIfTerminal(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok && t.Stage.Terminal() {
		delete(r.tasks, id)
	}
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func raise(t *Task, progress float64) {
	progress = min(max(progress, 0), 1)
	if progress > t.Progress {
		t.Progress = progress
	}
}
