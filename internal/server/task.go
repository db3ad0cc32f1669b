package server

import (
	"sort"
	"sync"
	"time"

	"pdf-translator/internal/pipeline"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Task 翻译任务
type Task struct {
	ID          string                `json:"id"`
	SourceFile  string                `json:"sourceFile"`
	Status      TaskStatus            `json:"status"`
	Progress    float64               `json:"progress"` // 0..1
	Stage       pipeline.Stage        `json:"stage,omitempty"`
	Message     string                `json:"message,omitempty"`
	Error       string                `json:"error,omitempty"`
	Diagnostics []pipeline.Diagnostic `json:"diagnostics,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
	OutputPath  string                `json:"-"`

	tracker *pipeline.Progress
}

// TaskManager 管理所有任务
type TaskManager struct {
	tasks map[string]*Task
	mu    sync.RWMutex
}

// NewTaskManager creates an empty TaskManager
func NewTaskManager() *TaskManager {
	return &TaskManager{tasks: make(map[string]*Task)}
}

// AddTask 添加任务
func (tm *TaskManager) AddTask(task *Task) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.tasks[task.ID] = task
}

// GetTask returns a copy of the task
func (tm *TaskManager) GetTask(taskID string) (Task, bool) {
	tm.mu.RLock()

	task, ok := tm.tasks[taskID]
	if !ok {
		tm.mu.RUnlock()
		return Task{}, false
	}
	c := task.clone()
	tm.mu.RUnlock()

	c.refreshProgress()
	return c, true
}

// ListTasks returns copies of all tasks, newest first
func (tm *TaskManager) ListTasks() []Task {
	tm.mu.RLock()
	tasks := make([]Task, 0, len(tm.tasks))
	for _, task := range tm.tasks {
		tasks = append(tasks, task.clone())
	}
	tm.mu.RUnlock()

	for i := range tasks {
		tasks[i].refreshProgress()
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}

// UpdateTask 更新任务（用于更新进度等）
func (tm *TaskManager) UpdateTask(taskID string, updateFn func(*Task)) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if task, ok := tm.tasks[taskID]; ok {
		updateFn(task)
	}
}

// refreshProgress reads the live tracker of a running task. It must be called
// without holding the manager lock: progress callbacks take the tracker lock
// first and the manager lock second.
func (t *Task) refreshProgress() {
	if t.tracker != nil && t.Status == StatusProcessing {
		t.Progress = float64(t.tracker.Snapshot().Percent) / 100
	}
	t.tracker = nil
}

func (t *Task) clone() Task {
	c := *t
	c.Diagnostics = append([]pipeline.Diagnostic(nil), t.Diagnostics...)
	return c
}
