// Package store persists tasks, pomodoro sessions and daily statistics in a
// local SQLite database, using the pure-Go modernc.org/sqlite driver so the
// binary stays CGO-free for the robot's ARM board.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teslashibe/reachy-mini-pomodoro/pkg/tasks"
)

// tagColors is the rotation assigned to new tags.
var tagColors = []string{
	"#e74c3c", // red
	"#3498db", // blue
	"#27ae60", // green
	"#f39c12", // orange
	"#9b59b6", // purple
	"#1abc9c", // teal
	"#e91e63", // pink
	"#00bcd4", // cyan
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	estimated_pomodoros INTEGER DEFAULT 1,
	completed_pomodoros INTEGER DEFAULT 0,
	status TEXT DEFAULT 'pending',
	priority TEXT DEFAULT 'medium',
	due_date DATE,
	tags TEXT DEFAULT '',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	completed_at TIMESTAMP,
	notes TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS pomodoro_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT,
	task_title TEXT,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP NOT NULL,
	duration_seconds INTEGER NOT NULL,
	session_type TEXT NOT NULL,
	tags TEXT DEFAULT '',
	FOREIGN KEY (task_id) REFERENCES tasks(id)
);

CREATE TABLE IF NOT EXISTS daily_stats (
	date TEXT PRIMARY KEY,
	total_pomodoros INTEGER DEFAULT 0,
	total_focus_minutes INTEGER DEFAULT 0,
	tasks_completed INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS tags (
	name TEXT PRIMARY KEY,
	color TEXT DEFAULT '#3498db',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the SQLite persistence layer. Safe for concurrent use; database/sql
// serializes access to the single connection pool.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates (or opens) the database at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTask upserts a task.
func (s *Store) SaveTask(t tasks.Task) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO tasks
		(id, title, estimated_pomodoros, completed_pomodoros, status, priority, due_date, tags, created_at, completed_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.EstimatedPomodoros, t.CompletedPomodoros, t.Status, t.Priority,
		formatDate(t.DueDate), strings.Join(t.Tags, ","),
		t.CreatedAt.Format(time.RFC3339), formatTime(t.CompletedAt), t.Notes,
	)
	return err
}

// LoadTasks returns all tasks, newest first.
func (s *Store) LoadTasks() ([]tasks.Task, error) {
	rows, err := s.db.Query(`
		SELECT id, title, estimated_pomodoros, completed_pomodoros, status, priority, due_date, tags, created_at, completed_at, notes
		FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tasks.Task
	for rows.Next() {
		var t tasks.Task
		var due, tags, createdAt sql.NullString
		var completedAt sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.EstimatedPomodoros, &t.CompletedPomodoros,
			&t.Status, &t.Priority, &due, &tags, &createdAt, &completedAt, &t.Notes); err != nil {
			return nil, err
		}
		t.DueDate = parseDate(due)
		t.Tags = splitTags(tags.String)
		if ts, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			t.CreatedAt = ts
		}
		t.CompletedAt = parseTime(completedAt)
		if t.Priority == "" {
			t.Priority = tasks.PriorityMedium
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTask removes a task record.
func (s *Store) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// SaveTag records a tag, assigning the next color in the rotation for new
// names. Existing tags keep their color.
func (s *Store) SaveTag(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	var existing string
	err := s.db.QueryRow(`SELECT color FROM tags WHERE name = ?`, name).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tags`).Scan(&count); err != nil {
		return err
	}
	color := tagColors[count%len(tagColors)]

	_, err = s.db.Exec(`INSERT INTO tags (name, color) VALUES (?, ?)`, name, color)
	return err
}

// AllTags returns all tags ordered by name.
func (s *Store) AllTags() ([]tasks.Tag, error) {
	rows, err := s.db.Query(`SELECT name, color FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tasks.Tag
	for rows.Next() {
		var t tasks.Tag
		if err := rows.Scan(&t.Name, &t.Color); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTag removes a tag by name.
func (s *Store) DeleteTag(name string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM tags WHERE name = ?`, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Session is one recorded pomodoro session.
type Session struct {
	ID              int64     `json:"id"`
	TaskID          string    `json:"task_id"`
	TaskTitle       string    `json:"task_title"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds int       `json:"duration_seconds"`
	SessionType     string    `json:"session_type"`
	Tags            string    `json:"tags"`
}

// RecordSession inserts a session and, for focus sessions, rolls it into the
// daily stats.
func (s *Store) RecordSession(sess Session) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO pomodoro_sessions
		(task_id, task_title, started_at, completed_at, duration_seconds, session_type, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.TaskID, sess.TaskTitle,
		sess.StartedAt.Format(time.RFC3339), sess.CompletedAt.Format(time.RFC3339),
		sess.DurationSeconds, sess.SessionType, sess.Tags,
	)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()

	if sess.SessionType == "focus" {
		day := sess.CompletedAt.Format("2006-01-02")
		minutes := sess.DurationSeconds / 60
		_, err = s.db.Exec(`
			INSERT INTO daily_stats (date, total_pomodoros, total_focus_minutes, tasks_completed)
			VALUES (?, 1, ?, 0)
			ON CONFLICT(date) DO UPDATE SET
				total_pomodoros = total_pomodoros + 1,
				total_focus_minutes = total_focus_minutes + ?`,
			day, minutes, minutes,
		)
		if err != nil {
			return id, err
		}
	}
	return id, nil
}

// RecentSessions returns the latest sessions, newest first.
func (s *Store) RecentSessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, task_title, started_at, completed_at, duration_seconds, session_type, tags
		FROM pomodoro_sessions ORDER BY completed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var started, completed string
		var taskID, tags sql.NullString
		if err := rows.Scan(&sess.ID, &taskID, &sess.TaskTitle, &started, &completed,
			&sess.DurationSeconds, &sess.SessionType, &tags); err != nil {
			return nil, err
		}
		sess.TaskID = taskID.String
		sess.Tags = tags.String
		sess.StartedAt, _ = time.Parse(time.RFC3339, started)
		sess.CompletedAt, _ = time.Parse(time.RFC3339, completed)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// IncrementTasksCompleted bumps today's completed-task counter.
func (s *Store) IncrementTasksCompleted() error {
	day := s.now().Format("2006-01-02")
	_, err := s.db.Exec(`
		INSERT INTO daily_stats (date, total_pomodoros, total_focus_minutes, tasks_completed)
		VALUES (?, 0, 0, 1)
		ON CONFLICT(date) DO UPDATE SET tasks_completed = tasks_completed + 1`,
		day,
	)
	return err
}

// TodayStats returns today's pomodoro and completed-task counters.
func (s *Store) TodayStats() (pomodoros, tasksCompleted int, err error) {
	day := s.now().Format("2006-01-02")
	err = s.db.QueryRow(`
		SELECT total_pomodoros, tasks_completed FROM daily_stats WHERE date = ?`, day,
	).Scan(&pomodoros, &tasksCompleted)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	return pomodoros, tasksCompleted, err
}

// DailyStats is one day's aggregate counters.
type DailyStats struct {
	Date              string `json:"date"`
	TotalPomodoros    int    `json:"total_pomodoros"`
	TotalFocusMinutes int    `json:"total_focus_minutes"`
	TasksCompleted    int    `json:"tasks_completed"`
}

// StatsRange returns daily stats between two dates inclusive, newest first.
func (s *Store) StatsRange(start, end time.Time) ([]DailyStats, error) {
	rows, err := s.db.Query(`
		SELECT date, total_pomodoros, total_focus_minutes, tasks_completed
		FROM daily_stats WHERE date >= ? AND date <= ? ORDER BY date DESC`,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyStats
	for rows.Next() {
		var d DailyStats
		if err := rows.Scan(&d.Date, &d.TotalPomodoros, &d.TotalFocusMinutes, &d.TasksCompleted); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// HistorySummary aggregates the last N days of sessions and completed tasks.
func (s *Store) HistorySummary(days int) (tasks.History, error) {
	h := tasks.History{Days: days}
	cutoff := s.now().AddDate(0, 0, -days).Format(time.RFC3339)

	var focusSeconds sql.NullInt64
	var focusSessions sql.NullInt64
	err := s.db.QueryRow(`
		SELECT COUNT(*),
			SUM(CASE WHEN session_type = 'focus' THEN 1 ELSE 0 END),
			SUM(CASE WHEN session_type = 'focus' THEN duration_seconds ELSE 0 END)
		FROM pomodoro_sessions WHERE completed_at >= ?`, cutoff,
	).Scan(&h.TotalSessions, &focusSessions, &focusSeconds)
	if err != nil {
		return h, err
	}
	h.FocusSessions = int(focusSessions.Int64)
	h.TotalFocusMinutes = int(focusSeconds.Int64) / 60

	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM tasks WHERE status = 'completed' AND completed_at >= ?`, cutoff,
	).Scan(&h.CompletedTasks)
	return h, err
}

// SaveSetting upserts a key/value setting.
func (s *Store) SaveSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// Setting returns a setting value, or fallback when unset.
func (s *Store) Setting(key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	return value, nil
}

func splitTags(v string) []string {
	if v == "" {
		return []string{}
	}
	return strings.Split(v, ",")
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseDate(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", v.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

var _ tasks.Store = (*Store)(nil)
