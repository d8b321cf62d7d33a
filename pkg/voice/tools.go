package voice

import (
	"encoding/json"
	"fmt"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/tasks"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/timer"
)

// Tool is a function the assistant can invoke.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(args map[string]any) (map[string]any, error)
}

// Dispatcher routes tool calls to their handlers.
type Dispatcher struct {
	tools map[string]Tool
}

// NewDispatcher builds a Dispatcher from the tool list.
func NewDispatcher(tools []Tool) *Dispatcher {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	return &Dispatcher{tools: m}
}

// Dispatch executes a tool call and returns the JSON result to hand back to
// the assistant. Unknown tools, handler errors and panics all produce an
// error payload rather than failing the conversation.
func (d *Dispatcher) Dispatch(call ToolCall) string {
	tool, ok := d.tools[call.Name]
	if !ok {
		return errorPayload(fmt.Sprintf("Unknown tool: %s", call.Name))
	}

	var result map[string]any
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool panicked: %v", r)
			}
		}()
		result, err = tool.Handler(call.Arguments)
	}()

	if err != nil {
		log.Error("tool execution failed", "tool", call.Name, "error", err)
		return errorPayload(err.Error())
	}

	out, err := json.Marshal(result)
	if err != nil {
		return errorPayload("result not serializable")
	}
	return string(out)
}

func errorPayload(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}

// PomodoroTools exposes timer and task control to the assistant.
func PomodoroTools(tm *timer.Machine, taskMgr *tasks.Manager) []Tool {
	return []Tool{
		{
			Name:        "get_timer_status",
			Description: "Get the current status of the Pomodoro timer, including state, time remaining, and current task.",
			Handler: func(args map[string]any) (map[string]any, error) {
				st := tm.Status()
				var current any
				if t := taskMgr.CurrentTask(); t != nil {
					current = t.Title
				}
				return map[string]any{
					"state":          string(st.State),
					"time_remaining": fmt.Sprintf("%d minutes and %d seconds", st.TimeRemaining/60, st.TimeRemaining%60),
					"current_task":   current,
					"session_count":  st.TotalPomodoros,
				}, nil
			},
		},
		{
			Name:        "start_focus",
			Description: "Start a focus session. This begins the Pomodoro timer for focused work.",
			Handler: func(args map[string]any) (map[string]any, error) {
				if taskMgr.CurrentTask() == nil {
					if pending := taskMgr.PendingTasks(); len(pending) > 0 {
						taskMgr.SetCurrentTask(pending[0].ID)
					}
				}
				ok := tm.StartFocus()
				var current any
				if t := taskMgr.CurrentTask(); t != nil {
					current = t.Title
				}
				return map[string]any{
					"success":      ok,
					"message":      resultMessage(ok, "Focus session started!", "Could not start focus session"),
					"current_task": current,
				}, nil
			},
		},
		{
			Name:        "pause_timer",
			Description: "Pause the current timer (focus or break).",
			Handler: func(args map[string]any) (map[string]any, error) {
				ok := tm.Pause()
				return map[string]any{
					"success": ok,
					"message": resultMessage(ok, "Timer paused", "Could not pause timer"),
				}, nil
			},
		},
		{
			Name:        "resume_timer",
			Description: "Resume a paused timer.",
			Handler: func(args map[string]any) (map[string]any, error) {
				ok := tm.Resume()
				return map[string]any{
					"success": ok,
					"message": resultMessage(ok, "Timer resumed", "Could not resume timer"),
				}, nil
			},
		},
		{
			Name:        "stop_timer",
			Description: "Stop the current timer and reset to idle state.",
			Handler: func(args map[string]any) (map[string]any, error) {
				ok := tm.Stop()
				return map[string]any{
					"success": ok,
					"message": resultMessage(ok, "Timer stopped", "Could not stop timer"),
				}, nil
			},
		},
		{
			Name:        "start_break",
			Description: "Start a break session after completing a focus session.",
			Handler: func(args map[string]any) (map[string]any, error) {
				ok := tm.StartBreak(false)
				result := map[string]any{"success": ok}
				if ok {
					breakType := "short"
					if tm.State() == timer.StateLongBreak {
						breakType = "long"
					}
					result["message"] = fmt.Sprintf("Starting %s break!", breakType)
					result["break_type"] = breakType
				} else {
					result["message"] = "Could not start break"
					result["break_type"] = nil
				}
				return result, nil
			},
		},
		{
			Name:        "get_tasks",
			Description: "Get the list of pending tasks.",
			Handler: func(args map[string]any) (map[string]any, error) {
				pending := taskMgr.PendingTasks()
				current := taskMgr.CurrentTask()

				list := make([]map[string]any, 0, len(pending))
				for _, t := range pending {
					list = append(list, map[string]any{
						"title":      t.Title,
						"pomodoros":  fmt.Sprintf("%d/%d", t.CompletedPomodoros, t.EstimatedPomodoros),
						"is_current": current != nil && t.ID == current.ID,
						"priority":   t.Priority,
					})
				}
				return map[string]any{"count": len(pending), "tasks": list}, nil
			},
		},
		{
			Name:        "create_task",
			Description: "Create a new task to work on.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "The title of the task.",
					},
					"estimated_pomodoros": map[string]any{
						"type":        "integer",
						"description": "Estimated number of pomodoros to complete the task (default: 1).",
					},
					"priority": map[string]any{
						"type":        "string",
						"enum":        []string{"low", "medium", "high"},
						"description": "Priority level of the task (default: medium).",
					},
				},
				"required": []string{"title"},
			},
			Handler: func(args map[string]any) (map[string]any, error) {
				title, _ := args["title"].(string)
				if title == "" {
					return nil, fmt.Errorf("title is required")
				}
				estimated := 1
				if v, ok := args["estimated_pomodoros"].(float64); ok {
					estimated = int(v)
				}
				priority, _ := args["priority"].(string)
				if priority == "" {
					priority = tasks.PriorityMedium
				}

				task := taskMgr.AddTask(tasks.NewTaskParams{
					Title:              title,
					EstimatedPomodoros: estimated,
					Priority:           priority,
				})
				return map[string]any{
					"success": true,
					"message": fmt.Sprintf("Task '%s' created", title),
					"task_id": task.ID,
				}, nil
			},
		},
		{
			Name:        "complete_current_task",
			Description: "Mark the current task as completed.",
			Handler: func(args map[string]any) (map[string]any, error) {
				current := taskMgr.CurrentTask()
				if current == nil {
					return map[string]any{
						"success": false,
						"message": "No current task to complete",
					}, nil
				}
				if done := taskMgr.CompleteTask(current.ID); done != nil {
					return map[string]any{
						"success": true,
						"message": fmt.Sprintf("Task '%s' completed!", done.Title),
					}, nil
				}
				return map[string]any{
					"success": false,
					"message": "Could not complete task",
				}, nil
			},
		},
		{
			Name:        "get_stats",
			Description: "Get productivity statistics including pomodoros completed today and tasks finished.",
			Handler: func(args map[string]any) (map[string]any, error) {
				stats := taskMgr.Stats()
				return map[string]any{
					"today_pomodoros":       stats.TodayPomodoros,
					"today_tasks_completed": stats.TodayTasksCompleted,
					"current_session":       tm.TotalPomodoros(),
				}, nil
			},
		},
	}
}

func resultMessage(ok bool, success, failure string) string {
	if ok {
		return success
	}
	return failure
}
