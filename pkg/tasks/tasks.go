// Package tasks manages the pomodoro todo list: an ordered task list with a
// current-task pointer, pomodoro counting and tag filtering. Persistence is
// optional; with a nil store the manager is fully functional in memory.
package tasks

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
)

// Task statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task is one item on the todo list.
type Task struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	EstimatedPomodoros int        `json:"estimated_pomodoros"`
	CompletedPomodoros int        `json:"completed_pomodoros"`
	Status             string     `json:"status"`
	Priority           string     `json:"priority"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	Tags               []string   `json:"tags"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Notes              string     `json:"notes"`
}

// Tag is a named label with a display color.
type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// History summarizes recent sessions.
type History struct {
	Days              int `json:"days"`
	TotalSessions     int `json:"total_sessions"`
	FocusSessions     int `json:"focus_sessions"`
	TotalFocusMinutes int `json:"total_focus_minutes"`
	CompletedTasks    int `json:"completed_tasks"`
}

// Store persists tasks and productivity counters. All methods may be called
// concurrently. The manager tolerates a nil Store and logs store failures
// without propagating them; the in-memory list is the source of truth.
type Store interface {
	LoadTasks() ([]Task, error)
	SaveTask(Task) error
	DeleteTask(id string) error
	SaveTag(name string) error
	AllTags() ([]Tag, error)
	TodayStats() (pomodoros, tasksCompleted int, err error)
	IncrementTasksCompleted() error
	HistorySummary(days int) (History, error)
}

// Manager owns the task list.
type Manager struct {
	mu sync.Mutex

	tasks         []*Task
	currentTaskID string
	tagFilter     string

	todayPomodoros      int
	todayTasksCompleted int

	store Store
	now   func() time.Time
}

// NewManager creates a Manager, loading persisted tasks when a store is
// provided.
func NewManager(store Store) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
	}
	if store != nil {
		loaded, err := store.LoadTasks()
		if err != nil {
			log.Warn("task load failed", "error", err)
		} else {
			for i := range loaded {
				t := loaded[i]
				m.tasks = append(m.tasks, &t)
			}
		}
		if pomodoros, completed, err := store.TodayStats(); err == nil {
			m.todayPomodoros = pomodoros
			m.todayTasksCompleted = completed
		}
	}
	return m
}

// NewTaskParams are the fields for a new task. Title is required; the rest
// default sensibly.
type NewTaskParams struct {
	Title              string
	EstimatedPomodoros int
	Notes              string
	Tags               []string
	Priority           string
	DueDate            *time.Time
}

// AddTask creates a task at the top of the list. The pomodoro estimate is
// clamped to [1,8].
func (m *Manager) AddTask(p NewTaskParams) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	priority := p.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	task := &Task{
		ID:                 uuid.NewString()[:8],
		Title:              p.Title,
		EstimatedPomodoros: clampEstimate(p.EstimatedPomodoros),
		Status:             StatusPending,
		Priority:           priority,
		DueDate:            p.DueDate,
		Tags:               tags,
		CreatedAt:          m.now(),
	}

	m.tasks = append([]*Task{task}, m.tasks...)
	m.saveLocked(task)
	for _, tag := range tags {
		m.saveTagLocked(tag)
	}
	return copyTask(task)
}

// Task returns a task by ID, or nil.
func (m *Manager) Task(id string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyTask(m.findLocked(id))
}

// CurrentTask returns the active task, or nil.
func (m *Manager) CurrentTask() *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyTask(m.findLocked(m.currentTaskID))
}

// SetCurrentTask selects a non-completed task as current, demoting the
// previous in-progress task to pending. Returns the task or nil if the ID is
// unknown or already completed.
func (m *Manager) SetCurrentTask(id string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := m.findLocked(id)
	if task == nil || task.Status == StatusCompleted {
		return nil
	}

	if m.currentTaskID != "" && m.currentTaskID != id {
		if prev := m.findLocked(m.currentTaskID); prev != nil && prev.Status == StatusInProgress {
			prev.Status = StatusPending
			m.saveLocked(prev)
		}
	}

	m.currentTaskID = id
	task.Status = StatusInProgress
	m.saveLocked(task)
	return copyTask(task)
}

// CompletePomodoro credits one pomodoro to the current task. The task is
// auto-completed once its estimate is reached. Returns the updated task, or
// nil when no task is current.
func (m *Manager) CompletePomodoro() *Task {
	m.mu.Lock()
	task := m.findLocked(m.currentTaskID)
	if task == nil {
		m.mu.Unlock()
		return nil
	}

	task.CompletedPomodoros++
	m.todayPomodoros++
	m.saveLocked(task)
	id := task.ID
	finished := task.CompletedPomodoros >= task.EstimatedPomodoros
	m.mu.Unlock()

	if finished {
		return m.CompleteTask(id)
	}
	return m.Task(id)
}

// CompleteTask marks a task completed. If it was current, the next pending
// task is auto-selected. Returns the completed task or nil.
func (m *Manager) CompleteTask(id string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := m.findLocked(id)
	if task == nil {
		return nil
	}

	now := m.now()
	task.Status = StatusCompleted
	task.CompletedAt = &now
	m.saveLocked(task)
	m.todayTasksCompleted++
	if m.store != nil {
		if err := m.store.IncrementTasksCompleted(); err != nil {
			log.Warn("stats update failed", "error", err)
		}
	}

	if m.currentTaskID == id {
		m.currentTaskID = ""
		for _, t := range m.tasks {
			if t.Status == StatusPending {
				m.currentTaskID = t.ID
				t.Status = StatusInProgress
				m.saveLocked(t)
				break
			}
		}
	}
	return copyTask(task)
}

// DeleteTask removes a task. Returns false if the ID is unknown.
func (m *Manager) DeleteTask(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, t := range m.tasks {
		if t.ID == id {
			if m.currentTaskID == id {
				m.currentTaskID = ""
			}
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			if m.store != nil {
				if err := m.store.DeleteTask(id); err != nil {
					log.Warn("task delete failed", "id", id, "error", err)
				}
			}
			return true
		}
	}
	return false
}

// Reorder rearranges the list to match ids, which must be exactly the set of
// existing task IDs.
func (m *Manager) Reorder(ids []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ids) != len(m.tasks) {
		return false
	}
	byID := make(map[string]*Task, len(m.tasks))
	for _, t := range m.tasks {
		byID[t.ID] = t
	}

	ordered := make([]*Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return false
		}
		delete(byID, id)
		ordered = append(ordered, t)
	}
	m.tasks = ordered
	return true
}

// TaskUpdate carries a partial task edit; nil fields are untouched.
type TaskUpdate struct {
	Title              *string
	EstimatedPomodoros *int
	Notes              *string
	Tags               []string
	Priority           *string
	DueDate            *time.Time
	ClearDueDate       bool
}

// UpdateTask applies an update and returns the task, or nil if unknown.
func (m *Manager) UpdateTask(id string, u TaskUpdate) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := m.findLocked(id)
	if task == nil {
		return nil
	}

	if u.Title != nil {
		task.Title = *u.Title
	}
	if u.EstimatedPomodoros != nil {
		task.EstimatedPomodoros = clampEstimate(*u.EstimatedPomodoros)
	}
	if u.Notes != nil {
		task.Notes = *u.Notes
	}
	if u.Tags != nil {
		task.Tags = u.Tags
		for _, tag := range u.Tags {
			m.saveTagLocked(tag)
		}
	}
	if u.Priority != nil {
		task.Priority = *u.Priority
	}
	if u.DueDate != nil {
		task.DueDate = u.DueDate
	} else if u.ClearDueDate {
		task.DueDate = nil
	}

	m.saveLocked(task)
	return copyTask(task)
}

// SetTagFilter restricts listing to tasks carrying the tag; empty clears it.
func (m *Manager) SetTagFilter(tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagFilter = strings.ToLower(strings.TrimSpace(tag))
}

// TagFilter returns the active tag filter, empty when unset.
func (m *Manager) TagFilter() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tagFilter
}

// FilteredTasks returns the task list under the active tag filter.
func (m *Manager) FilteredTasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filteredLocked("")
}

// PendingTasks returns filtered tasks with pending status.
func (m *Manager) PendingTasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filteredLocked(StatusPending)
}

// InProgressTasks returns filtered tasks with in-progress status.
func (m *Manager) InProgressTasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filteredLocked(StatusInProgress)
}

// CompletedTasks returns filtered tasks with completed status.
func (m *Manager) CompletedTasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filteredLocked(StatusCompleted)
}

// AllTags returns the known tags, from the store when available and
// otherwise collected from the task list.
func (m *Manager) AllTags() []Tag {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		if tags, err := m.store.AllTags(); err == nil {
			return tags
		}
	}

	seen := map[string]bool{}
	var names []string
	for _, t := range m.tasks {
		for _, tag := range t.Tags {
			if !seen[tag] {
				seen[tag] = true
				names = append(names, tag)
			}
		}
	}
	tags := make([]Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, Tag{Name: name, Color: "#3498db"})
	}
	return tags
}

// ClearCompleted drops completed tasks from the list and returns how many
// were removed. Persisted records are kept for history.
func (m *Manager) ClearCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.tasks[:0]
	removed := 0
	for _, t := range m.tasks {
		if t.Status == StatusCompleted {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	m.tasks = kept
	return removed
}

// Stats is a productivity snapshot.
type Stats struct {
	TotalTasks              int     `json:"total_tasks"`
	CompletedTasks          int     `json:"completed_tasks"`
	PendingTasks            int     `json:"pending_tasks"`
	CurrentTask             *Task   `json:"current_task,omitempty"`
	TodayPomodoros          int     `json:"total_pomodoros_today"`
	TodayTasksCompleted     int     `json:"tasks_completed_today"`
	TotalEstimatedPomodoros int     `json:"total_estimated_pomodoros"`
	TotalCompletedPomodoros int     `json:"total_completed_pomodoros"`
	ProgressPercentage      float64 `json:"progress_percentage"`
	TagFilter               string  `json:"tag_filter,omitempty"`
}

// Stats returns current productivity statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var estimated, completedPomodoros int
	for _, t := range m.tasks {
		estimated += t.EstimatedPomodoros
		completedPomodoros += t.CompletedPomodoros
	}
	completedTasks := len(m.filteredLocked(StatusCompleted))
	pending := len(m.filteredLocked(StatusPending))

	var progress float64
	if estimated > 0 {
		progress = float64(completedPomodoros) / float64(estimated) * 100
	}

	return Stats{
		TotalTasks:              len(m.tasks),
		CompletedTasks:          completedTasks,
		PendingTasks:            pending,
		CurrentTask:             copyTask(m.findLocked(m.currentTaskID)),
		TodayPomodoros:          m.todayPomodoros,
		TodayTasksCompleted:     m.todayTasksCompleted,
		TotalEstimatedPomodoros: estimated,
		TotalCompletedPomodoros: completedPomodoros,
		ProgressPercentage:      progress,
		TagFilter:               m.tagFilter,
	}
}

// History returns a summary of the last N days of sessions.
func (m *Manager) History(days int) History {
	if m.store != nil {
		if h, err := m.store.HistorySummary(days); err == nil {
			return h
		}
	}
	return History{Days: days}
}

// Snapshot is the full manager state for the API.
type Snapshot struct {
	Tasks         []*Task `json:"tasks"`
	CurrentTaskID string  `json:"current_task_id,omitempty"`
	Stats         Stats   `json:"stats"`
	Tags          []Tag   `json:"tags"`
}

// Snapshot returns the manager state under the active tag filter.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		Tasks:         m.FilteredTasks(),
		CurrentTaskID: m.currentID(),
		Stats:         m.Stats(),
		Tags:          m.AllTags(),
	}
}

func (m *Manager) currentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTaskID
}

func (m *Manager) findLocked(id string) *Task {
	if id == "" {
		return nil
	}
	for _, t := range m.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (m *Manager) filteredLocked(status string) []*Task {
	out := []*Task{}
	for _, t := range m.tasks {
		if m.tagFilter != "" && !hasTag(t, m.tagFilter) {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, copyTask(t))
	}
	return out
}

func (m *Manager) saveLocked(t *Task) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveTask(*t); err != nil {
		log.Warn("task save failed", "id", t.ID, "error", err)
	}
}

func (m *Manager) saveTagLocked(tag string) {
	if m.store == nil || tag == "" {
		return
	}
	if err := m.store.SaveTag(tag); err != nil {
		log.Warn("tag save failed", "tag", tag, "error", err)
	}
}

func hasTag(t *Task, tag string) bool {
	for _, have := range t.Tags {
		if strings.ToLower(have) == tag {
			return true
		}
	}
	return false
}

func copyTask(t *Task) *Task {
	if t == nil {
		return nil
	}
	dup := *t
	dup.Tags = append([]string{}, t.Tags...)
	return &dup
}

func clampEstimate(n int) int {
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}
