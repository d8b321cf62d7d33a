package web

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/movement"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/tasks"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/timer"
)

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"timer": s.timer.Status(),
		"tasks": s.tasks.Snapshot(),
	})
}

// Timer control.

func (s *Server) handleTimerStart(c *fiber.Ctx) error {
	// Starting without a selected task picks the first pending one.
	if s.tasks.CurrentTask() == nil {
		if pending := s.tasks.PendingTasks(); len(pending) > 0 {
			s.tasks.SetCurrentTask(pending[0].ID)
		}
	}
	ok := s.timer.StartFocus()
	return c.JSON(fiber.Map{"success": ok, "status": s.timer.Status()})
}

func (s *Server) handleTimerPause(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": s.timer.Pause(), "status": s.timer.Status()})
}

func (s *Server) handleTimerResume(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": s.timer.Resume(), "status": s.timer.Status()})
}

func (s *Server) handleTimerStop(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": s.timer.Stop(), "status": s.timer.Status()})
}

func (s *Server) handleTimerSkip(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": s.timer.Skip(), "status": s.timer.Status()})
}

func (s *Server) handleTimerBreak(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": s.timer.StartBreak(false), "status": s.timer.Status()})
}

// Tasks.

type taskRequest struct {
	Title              string   `json:"title"`
	EstimatedPomodoros int      `json:"estimated_pomodoros"`
	Notes              string   `json:"notes"`
	Tags               []string `json:"tags"`
	Priority           string   `json:"priority"`
	DueDate            string   `json:"due_date"`
}

func parseDueDate(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil
	}
	return &t
}

func (s *Server) handleGetTasks(c *fiber.Ctx) error {
	return c.JSON(s.tasks.Snapshot())
}

func (s *Server) handleAddTask(c *fiber.Ctx) error {
	var req taskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "title is required"})
	}

	task := s.tasks.AddTask(tasks.NewTaskParams{
		Title:              req.Title,
		EstimatedPomodoros: req.EstimatedPomodoros,
		Notes:              req.Notes,
		Tags:               req.Tags,
		Priority:           req.Priority,
		DueDate:            parseDueDate(req.DueDate),
	})
	s.movements.StartMovement(movement.KindNodYes, time.Second, false, nil)
	return c.JSON(fiber.Map{"success": true, "task": task})
}

type updateTaskRequest struct {
	Title              *string  `json:"title"`
	EstimatedPomodoros *int     `json:"estimated_pomodoros"`
	Notes              *string  `json:"notes"`
	Tags               []string `json:"tags"`
	Priority           *string  `json:"priority"`
	DueDate            *string  `json:"due_date"`
}

func (s *Server) handleUpdateTask(c *fiber.Ctx) error {
	var req updateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	update := tasks.TaskUpdate{
		Title:              req.Title,
		EstimatedPomodoros: req.EstimatedPomodoros,
		Notes:              req.Notes,
		Tags:               req.Tags,
		Priority:           req.Priority,
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			update.ClearDueDate = true
		} else {
			update.DueDate = parseDueDate(*req.DueDate)
		}
	}

	task := s.tasks.UpdateTask(c.Params("id"), update)
	if task == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Task not found"})
	}
	return c.JSON(fiber.Map{"success": true, "task": task})
}

func (s *Server) handleDeleteTask(c *fiber.Ctx) error {
	ok := s.tasks.DeleteTask(c.Params("id"))
	if ok {
		s.movements.StartMovement(movement.KindNodNo, 800*time.Millisecond, false, nil)
	}
	return c.JSON(fiber.Map{"success": ok})
}

func (s *Server) handleSelectTask(c *fiber.Ctx) error {
	task := s.tasks.SetCurrentTask(c.Params("id"))
	if task == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false, "error": "Task not found or already completed",
		})
	}
	return c.JSON(fiber.Map{"success": true, "task": task})
}

func (s *Server) handleCompleteTask(c *fiber.Ctx) error {
	task := s.tasks.CompleteTask(c.Params("id"))
	if task == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Task not found"})
	}

	s.movements.StartMovement(movement.KindCelebration, 3*time.Second, false, nil)
	if s.voice != nil {
		go s.voice.NotifyEvent("The user just completed a task called '" + task.Title +
			"'. Congratulate them briefly and enthusiastically!")
	}
	return c.JSON(fiber.Map{"success": true, "task": task})
}

func (s *Server) handleReorderTasks(c *fiber.Ctx) error {
	var req struct {
		TaskIDs []string `json:"task_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": s.tasks.Reorder(req.TaskIDs)})
}

func (s *Server) handleClearCompleted(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "removed_count": s.tasks.ClearCompleted()})
}

// Tags.

func (s *Server) handleGetTags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tags": s.tasks.AllTags()})
}

func (s *Server) handleCreateTag(c *fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false, "error": "Database not available",
		})
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "name is required"})
	}
	if err := s.store.SaveTag(req.Name); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleDeleteTag(c *fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false, "error": "Database not available",
		})
	}
	removed, err := s.store.DeleteTag(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": removed})
}

func (s *Server) handleSetTagFilter(c *fiber.Ctx) error {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	s.tasks.SetTagFilter(req.Tag)
	return c.JSON(fiber.Map{"success": true, "filter": s.tasks.TagFilter()})
}

func (s *Server) handleClearTagFilter(c *fiber.Ctx) error {
	s.tasks.SetTagFilter("")
	return c.JSON(fiber.Map{"success": true, "filter": ""})
}

// History and stats.

func (s *Server) handleHistory(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	return c.JSON(s.tasks.History(days))
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.tasks.Stats())
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	if s.store == nil {
		return c.JSON(fiber.Map{"sessions": []any{}})
	}
	sessions, err := s.store.RecentSessions(c.QueryInt("limit", 20))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

// Settings.

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(s.timer.Settings())
}

func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	var req timer.SettingsUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	settings := s.timer.UpdateSettings(req)
	return c.JSON(fiber.Map{"success": true, "settings": settings})
}

// Robot demos.

func (s *Server) handleRobotCelebrate(c *fiber.Ctx) error {
	s.movements.StartMovement(movement.KindCelebration, 3*time.Second, false, nil)
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleRobotDemoStretch(c *fiber.Ctx) error {
	s.movements.StartMovement(movement.KindStretchDemo, 8*time.Second, false, nil)
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleRobotDemoBreathing(c *fiber.Ctx) error {
	s.movements.StartMovement(movement.KindBreathingDemo, 12*time.Second, false, nil)
	return c.JSON(fiber.Map{"success": true})
}

// Voice.

func (s *Server) handleVoiceStatus(c *fiber.Ctx) error {
	running := s.voice != nil
	var state string
	if running {
		state = string(s.voice.State())
	}

	s.settingsMu.Lock()
	enabled, hasKey := s.voiceEnabled, s.apiKey != ""
	s.settingsMu.Unlock()

	return c.JSON(fiber.Map{
		"enabled":     enabled,
		"running":     running,
		"has_api_key": hasKey,
		"state":       state,
	})
}

func (s *Server) handleVoiceActivate(c *fiber.Ctx) error {
	if s.voice == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false, "message": "No active voice session",
		})
	}
	if err := s.voice.Activate(context.Background()); err != nil {
		log.Warn("manual voice activation failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"success": false, "message": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "message": "Voice assistant activated"})
}

// Voice settings.

var validVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer", "coral"}

// maskAPIKey hides the middle of the key so the dashboard can show which key
// is configured without ever receiving it back.
func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) > 8 {
		return key[:7] + "..." + key[len(key)-4:]
	}
	return "••••••••"
}

func (s *Server) handleGetVoiceSettings(c *fiber.Ctx) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return c.JSON(fiber.Map{
		"enabled":        s.voiceEnabled,
		"openai_api_key": maskAPIKey(s.apiKey),
		"voice":          s.voiceName,
		"has_api_key":    s.apiKey != "",
	})
}

type voiceSettingsRequest struct {
	Enabled      *bool   `json:"enabled"`
	OpenAIAPIKey *string `json:"openai_api_key"`
	Voice        *string `json:"voice"`
}

// handleUpdateVoiceSettings applies and persists assistant settings. Changes
// take effect for the running session on the next restart; the response says
// so via restart_needed.
func (s *Server) handleUpdateVoiceSettings(c *fiber.Ctx) error {
	var req voiceSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	s.settingsMu.Lock()
	restart := false

	if req.Enabled != nil {
		s.voiceEnabled = *req.Enabled
		s.persistSetting("voice_enabled", strconv.FormatBool(*req.Enabled))
		restart = true
	}
	if req.OpenAIAPIKey != nil {
		// The dashboard echoes the masked key back; only a genuinely new key
		// counts.
		key := strings.TrimSpace(*req.OpenAIAPIKey)
		if key != "" && !strings.HasPrefix(key, "•") && !strings.Contains(key, "...") {
			s.apiKey = key
			s.persistSetting("openai_api_key", key)
			restart = true
		}
	}
	if req.Voice != nil {
		for _, v := range validVoices {
			if *req.Voice == v {
				s.voiceName = v
				s.persistSetting("voice_name", v)
				restart = true
				break
			}
		}
	}

	enabled, voiceName, hasKey := s.voiceEnabled, s.voiceName, s.apiKey != ""
	s.settingsMu.Unlock()

	return c.JSON(fiber.Map{
		"success":        true,
		"restart_needed": restart,
		"settings": fiber.Map{
			"enabled":     enabled,
			"voice":       voiceName,
			"has_api_key": hasKey,
		},
	})
}

func (s *Server) persistSetting(key, value string) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveSetting(key, value); err != nil {
		log.Warn("voice setting persist failed", "key", key, "error", err)
	}
}
