package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/reachy-mini-pomodoro/pkg/movement"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/store"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/tasks"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/timer"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/voice"
)

type fakeVoice struct {
	state     voice.State
	activated chan struct{}
	notified  chan string
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{
		state:     voice.StateListening,
		activated: make(chan struct{}, 8),
		notified:  make(chan string, 8),
	}
}

func (f *fakeVoice) State() voice.State { return f.state }

func (f *fakeVoice) Activate(ctx context.Context) error {
	f.activated <- struct{}{}
	return nil
}

func (f *fakeVoice) ProcessAudio(ctx context.Context, chunk []byte) {}
func (f *fakeVoice) HandleTranscript(text string)                  {}

func (f *fakeVoice) NotifyEvent(text string) {
	f.notified <- text
}

type testServer struct {
	server *Server
	tasks  *tasks.Manager
	timer  *timer.Machine
	voice  *fakeVoice
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		tasks: tasks.NewManager(nil),
		timer: timer.New(timer.DefaultSettings()),
		voice: newFakeVoice(),
	}
	ts.server = NewServer(Options{
		Port:         "0",
		Timer:        ts.timer,
		Tasks:        ts.tasks,
		Movements:    movement.NewManager(),
		Voice:        ts.voice,
		VoiceEnabled: true,
		VoiceName:    "coral",
		APIKey:       "sk-proj-abcdefgh1234",
	})
	return ts
}

// fakeSessionStore backs the tag and settings endpoints in tests.
type fakeSessionStore struct {
	mu       sync.Mutex
	tags     []string
	settings map[string]string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{settings: map[string]string{}}
}

func (f *fakeSessionStore) SaveTag(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, name)
	return nil
}

func (f *fakeSessionStore) DeleteTag(name string) (bool, error) { return true, nil }

func (f *fakeSessionStore) RecentSessions(limit int) ([]store.Session, error) {
	return nil, nil
}

func (f *fakeSessionStore) SaveSetting(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[key] = value
	return nil
}

func (f *fakeSessionStore) Setting(key, fallback string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.settings[key]; ok {
		return v, nil
	}
	return fallback, nil
}

func (f *fakeSessionStore) setting(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings[key]
}

func (ts *testServer) request(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.server.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	var decoded map[string]any
	data, _ := io.ReadAll(resp.Body)
	json.Unmarshal(data, &decoded)
	return resp, decoded
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.request(t, "GET", "/api/status", "")
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if _, ok := body["timer"]; !ok {
		t.Error("no timer in status payload")
	}
	if _, ok := body["tasks"]; !ok {
		t.Error("no tasks in status payload")
	}
}

func TestTimerStartSelectsFirstPendingTask(t *testing.T) {
	ts := newTestServer(t)
	ts.tasks.AddTask(tasks.NewTaskParams{Title: "older"})
	newest := ts.tasks.AddTask(tasks.NewTaskParams{Title: "newest"})

	_, body := ts.request(t, "POST", "/api/timer/start", "")
	if body["success"] != true {
		t.Fatalf("start failed: %v", body)
	}
	if ts.timer.State() != timer.StateFocus {
		t.Errorf("timer state: %s", ts.timer.State())
	}
	current := ts.tasks.CurrentTask()
	if current == nil || current.ID != newest.ID {
		t.Errorf("auto-selected task: %+v", current)
	}
}

func TestAddTaskValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.request(t, "POST", "/api/tasks", `{"title":""}`)
	if resp.StatusCode != 400 {
		t.Errorf("empty title: status %d, want 400", resp.StatusCode)
	}

	resp, body := ts.request(t, "POST", "/api/tasks",
		`{"title":"write tests","estimated_pomodoros":3,"tags":["work"],"due_date":"2026-09-01"}`)
	if resp.StatusCode != 200 || body["success"] != true {
		t.Fatalf("add: %d %v", resp.StatusCode, body)
	}
	task := body["task"].(map[string]any)
	if task["title"] != "write tests" {
		t.Errorf("task: %v", task)
	}
	if task["due_date"] == nil {
		t.Error("due date dropped")
	}
}

func TestUpdateAndDeleteTask(t *testing.T) {
	ts := newTestServer(t)
	task := ts.tasks.AddTask(tasks.NewTaskParams{Title: "draft"})

	resp, body := ts.request(t, "PUT", "/api/tasks/"+task.ID, `{"title":"final","estimated_pomodoros":99}`)
	if resp.StatusCode != 200 {
		t.Fatalf("update: %d", resp.StatusCode)
	}
	updated := body["task"].(map[string]any)
	if updated["title"] != "final" {
		t.Errorf("title: %v", updated["title"])
	}
	if updated["estimated_pomodoros"].(float64) != 8 {
		t.Errorf("estimate not clamped: %v", updated["estimated_pomodoros"])
	}

	resp, _ = ts.request(t, "PUT", "/api/tasks/missing", `{"title":"x"}`)
	if resp.StatusCode != 404 {
		t.Errorf("update missing: %d", resp.StatusCode)
	}

	resp, body = ts.request(t, "DELETE", "/api/tasks/"+task.ID, "")
	if resp.StatusCode != 200 || body["success"] != true {
		t.Errorf("delete: %d %v", resp.StatusCode, body)
	}
}

func TestCompleteTaskCelebratesAndNotifiesVoice(t *testing.T) {
	ts := newTestServer(t)
	task := ts.tasks.AddTask(tasks.NewTaskParams{Title: "ship it"})

	_, body := ts.request(t, "POST", "/api/tasks/"+task.ID+"/complete", "")
	if body["success"] != true {
		t.Fatalf("complete: %v", body)
	}

	kind, _ := ts.server.movements.Current()
	if kind != movement.KindCelebration {
		t.Errorf("gesture: %v", kind)
	}

	select {
	case text := <-ts.voice.notified:
		if !strings.Contains(text, "ship it") {
			t.Errorf("notification: %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("voice never notified")
	}
}

func TestReorderEndpoint(t *testing.T) {
	ts := newTestServer(t)
	a := ts.tasks.AddTask(tasks.NewTaskParams{Title: "a"})
	b := ts.tasks.AddTask(tasks.NewTaskParams{Title: "b"})

	_, body := ts.request(t, "POST", "/api/tasks/reorder",
		`{"task_ids":["`+a.ID+`","`+b.ID+`"]}`)
	if body["success"] != true {
		t.Errorf("reorder: %v", body)
	}

	_, body = ts.request(t, "POST", "/api/tasks/reorder", `{"task_ids":["`+a.ID+`"]}`)
	if body["success"] != false {
		t.Errorf("partial reorder accepted: %v", body)
	}
}

func TestTagFilterEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.tasks.AddTask(tasks.NewTaskParams{Title: "work", Tags: []string{"work"}})
	ts.tasks.AddTask(tasks.NewTaskParams{Title: "home", Tags: []string{"home"}})

	_, body := ts.request(t, "POST", "/api/tags/filter", `{"tag":"work"}`)
	if body["filter"] != "work" {
		t.Errorf("filter: %v", body)
	}
	if got := len(ts.tasks.FilteredTasks()); got != 1 {
		t.Errorf("filtered tasks: %d", got)
	}

	ts.request(t, "DELETE", "/api/tags/filter", "")
	if got := len(ts.tasks.FilteredTasks()); got != 2 {
		t.Errorf("after clear: %d", got)
	}
}

func TestSettingsEndpointClamps(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.request(t, "PUT", "/api/settings", `{"focus_duration":10}`)
	settings := body["settings"].(map[string]any)
	if settings["focus_duration"].(float64) != 60 {
		t.Errorf("focus duration not clamped: %v", settings["focus_duration"])
	}

	resp, _ := ts.request(t, "GET", "/api/settings", "")
	if resp.StatusCode != 200 {
		t.Errorf("get settings: %d", resp.StatusCode)
	}
}

func TestRobotDemoEndpoints(t *testing.T) {
	ts := newTestServer(t)

	ts.request(t, "POST", "/api/robot/demo-stretch", "")
	if kind, _ := ts.server.movements.Current(); kind != movement.KindStretchDemo {
		t.Errorf("gesture: %v", kind)
	}

	ts.request(t, "POST", "/api/robot/demo-breathing", "")
	if kind, _ := ts.server.movements.Current(); kind != movement.KindBreathingDemo {
		t.Errorf("gesture: %v", kind)
	}
}

func TestVoiceStatusAndActivate(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.request(t, "GET", "/api/voice/status", "")
	if body["running"] != true || body["has_api_key"] != true {
		t.Errorf("voice status: %v", body)
	}

	_, body = ts.request(t, "POST", "/api/voice/activate", "")
	if body["success"] != true {
		t.Errorf("activate: %v", body)
	}
	select {
	case <-ts.voice.activated:
	default:
		t.Error("session never activated")
	}
}

func TestVoiceSettingsMasksKey(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.request(t, "GET", "/api/voice/settings", "")
	masked, _ := body["openai_api_key"].(string)
	if strings.Contains(masked, "abcdefgh") {
		t.Errorf("key not masked: %q", masked)
	}
	if !strings.HasPrefix(masked, "sk-proj") || !strings.HasSuffix(masked, "1234") {
		t.Errorf("mask shape: %q", masked)
	}
	if body["voice"] != "coral" || body["has_api_key"] != true {
		t.Errorf("settings: %v", body)
	}
}

func TestVoiceSettingsUpdatePersists(t *testing.T) {
	ts := newTestServer(t)
	db := newFakeSessionStore()
	ts.server.store = db

	_, body := ts.request(t, "PUT", "/api/voice/settings",
		`{"enabled":false,"voice":"nova","openai_api_key":"sk-new-key-5678"}`)
	if body["success"] != true || body["restart_needed"] != true {
		t.Fatalf("update: %v", body)
	}
	settings := body["settings"].(map[string]any)
	if settings["voice"] != "nova" || settings["enabled"] != false {
		t.Errorf("settings payload: %v", settings)
	}

	if db.setting("voice_name") != "nova" {
		t.Errorf("voice name not persisted: %q", db.setting("voice_name"))
	}
	if db.setting("voice_enabled") != "false" {
		t.Errorf("enabled not persisted: %q", db.setting("voice_enabled"))
	}
	if db.setting("openai_api_key") != "sk-new-key-5678" {
		t.Errorf("key not persisted: %q", db.setting("openai_api_key"))
	}
}

func TestVoiceSettingsRejectsUnknownVoiceAndMaskedKey(t *testing.T) {
	ts := newTestServer(t)
	db := newFakeSessionStore()
	ts.server.store = db

	// An unknown voice and a masked key echoed back are both ignored.
	_, body := ts.request(t, "PUT", "/api/voice/settings",
		`{"voice":"robotic","openai_api_key":"sk-proj...1234"}`)
	if body["restart_needed"] != false {
		t.Errorf("no-op update flagged a restart: %v", body)
	}
	settings := body["settings"].(map[string]any)
	if settings["voice"] != "coral" {
		t.Errorf("voice changed to unknown value: %v", settings["voice"])
	}
	if db.setting("openai_api_key") != "" {
		t.Error("masked key overwrote the stored key")
	}
}

func TestVoiceEndpointsWithoutSession(t *testing.T) {
	ts := newTestServer(t)
	ts.server.voice = nil

	resp, _ := ts.request(t, "POST", "/api/voice/activate", "")
	if resp.StatusCode != 503 {
		t.Errorf("activate without session: %d", resp.StatusCode)
	}

	_, body := ts.request(t, "GET", "/api/voice/status", "")
	if body["running"] != false {
		t.Errorf("status without session: %v", body)
	}
}

func TestSessionsWithoutStore(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.request(t, "GET", "/api/sessions", "")
	if resp.StatusCode != 200 {
		t.Fatalf("sessions: %d", resp.StatusCode)
	}
	if _, ok := body["sessions"]; !ok {
		t.Error("no sessions key")
	}
}

func TestTagsWithoutStore(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.request(t, "POST", "/api/tags", `{"name":"focus"}`)
	if resp.StatusCode != 503 {
		t.Errorf("create tag without store: %d", resp.StatusCode)
	}
}
