package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/reachy-mini-pomodoro/pkg/tasks"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pomodoro.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTaskRoundTrip(t *testing.T) {
	s := openTestStore(t)

	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	task := tasks.Task{
		ID:                 "abc12345",
		Title:              "write report",
		EstimatedPomodoros: 3,
		CompletedPomodoros: 1,
		Status:             tasks.StatusInProgress,
		Priority:           tasks.PriorityHigh,
		DueDate:            &due,
		Tags:               []string{"work", "writing"},
		CreatedAt:          time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC),
		Notes:              "section 2 pending",
	}
	if err := s.SaveTask(task); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	loaded, err := s.LoadTasks()
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d tasks", len(loaded))
	}
	got := loaded[0]
	if got.ID != task.ID || got.Title != task.Title || got.Status != task.Status {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" {
		t.Errorf("tags: %v", got.Tags)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("due date: %v", got.DueDate)
	}
	if got.CompletedAt != nil {
		t.Errorf("completed_at should be nil: %v", got.CompletedAt)
	}

	// Upsert replaces, not duplicates.
	task.Title = "write final report"
	if err := s.SaveTask(task); err != nil {
		t.Fatalf("SaveTask upsert: %v", err)
	}
	loaded, _ = s.LoadTasks()
	if len(loaded) != 1 || loaded[0].Title != "write final report" {
		t.Errorf("upsert: %+v", loaded)
	}
}

func TestDeleteTask(t *testing.T) {
	s := openTestStore(t)
	s.SaveTask(tasks.Task{ID: "x", Title: "t", CreatedAt: time.Now()})

	if err := s.DeleteTask("x"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	loaded, _ := s.LoadTasks()
	if len(loaded) != 0 {
		t.Error("task survived delete")
	}
}

func TestTagColorRotation(t *testing.T) {
	s := openTestStore(t)

	names := []string{"alpha", "beta", "gamma"}
	for _, n := range names {
		if err := s.SaveTag(n); err != nil {
			t.Fatalf("SaveTag(%s): %v", n, err)
		}
	}
	// Re-saving keeps the original color.
	if err := s.SaveTag("Alpha"); err != nil {
		t.Fatalf("SaveTag duplicate: %v", err)
	}

	got, err := s.AllTags()
	if err != nil {
		t.Fatalf("AllTags: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("tags: got %d, want 3", len(got))
	}
	colors := map[string]bool{}
	for _, tag := range got {
		if tag.Color == "" {
			t.Errorf("tag %s has no color", tag.Name)
		}
		colors[tag.Color] = true
	}
	if len(colors) != 3 {
		t.Errorf("colors not rotated: %v", colors)
	}
}

func TestRecordSessionUpdatesDailyStats(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	for i := 0; i < 2; i++ {
		_, err := s.RecordSession(Session{
			TaskID:          "abc",
			TaskTitle:       "deep work",
			StartedAt:       now.Add(-25 * time.Minute),
			CompletedAt:     now,
			DurationSeconds: 1500,
			SessionType:     "focus",
		})
		if err != nil {
			t.Fatalf("RecordSession: %v", err)
		}
	}
	// Breaks don't count toward daily pomodoros.
	if _, err := s.RecordSession(Session{
		TaskTitle:       "rest",
		StartedAt:       now,
		CompletedAt:     now.Add(5 * time.Minute),
		DurationSeconds: 300,
		SessionType:     "short_break",
	}); err != nil {
		t.Fatalf("RecordSession break: %v", err)
	}

	pomodoros, completed, err := s.TodayStats()
	if err != nil {
		t.Fatalf("TodayStats: %v", err)
	}
	if pomodoros != 2 {
		t.Errorf("pomodoros: got %d, want 2", pomodoros)
	}
	if completed != 0 {
		t.Errorf("tasks completed: got %d, want 0", completed)
	}

	if err := s.IncrementTasksCompleted(); err != nil {
		t.Fatalf("IncrementTasksCompleted: %v", err)
	}
	_, completed, _ = s.TodayStats()
	if completed != 1 {
		t.Errorf("after increment: got %d, want 1", completed)
	}

	sessions, err := s.RecentSessions(10)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Errorf("sessions: got %d, want 3", len(sessions))
	}
}

func TestHistorySummary(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	s.RecordSession(Session{
		TaskTitle: "a", StartedAt: now.Add(-25 * time.Minute), CompletedAt: now,
		DurationSeconds: 1500, SessionType: "focus",
	})
	s.RecordSession(Session{
		TaskTitle: "b", StartedAt: now, CompletedAt: now.Add(5 * time.Minute),
		DurationSeconds: 300, SessionType: "short_break",
	})
	done := now
	s.SaveTask(tasks.Task{
		ID: "t1", Title: "done", Status: tasks.StatusCompleted,
		CreatedAt: now.Add(-time.Hour), CompletedAt: &done,
	})

	h, err := s.HistorySummary(7)
	if err != nil {
		t.Fatalf("HistorySummary: %v", err)
	}
	if h.TotalSessions != 2 || h.FocusSessions != 1 {
		t.Errorf("sessions: %+v", h)
	}
	if h.TotalFocusMinutes != 25 {
		t.Errorf("focus minutes: got %d, want 25", h.TotalFocusMinutes)
	}
	if h.CompletedTasks != 1 {
		t.Errorf("completed tasks: got %d, want 1", h.CompletedTasks)
	}
}

func TestSettings(t *testing.T) {
	s := openTestStore(t)

	if got, _ := s.Setting("volume", "50"); got != "50" {
		t.Errorf("default: got %q", got)
	}
	if err := s.SaveSetting("volume", "80"); err != nil {
		t.Fatalf("SaveSetting: %v", err)
	}
	if got, _ := s.Setting("volume", "50"); got != "80" {
		t.Errorf("saved: got %q", got)
	}
}

func TestManagerWithStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pomodoro.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m := tasks.NewManager(s)
	task := m.AddTask(tasks.NewTaskParams{Title: "persisted", Tags: []string{"work"}})
	m.SetCurrentTask(task.ID)
	s.Close()

	// A fresh manager over the same file sees the task.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	m2 := tasks.NewManager(s2)

	loaded := m2.Task(task.ID)
	if loaded == nil {
		t.Fatal("task not persisted")
	}
	if loaded.Status != tasks.StatusInProgress {
		t.Errorf("status: got %s", loaded.Status)
	}
	if len(m2.AllTags()) != 1 {
		t.Error("tag not persisted")
	}
}
