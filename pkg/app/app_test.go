package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/reachy-mini-pomodoro/pkg/movement"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/pose"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/store"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/tasks"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/timer"
)

type fakeRobot struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRobot) SetTarget(head pose.Matrix, antennas [2]float64, bodyYaw float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeRobot) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu       sync.Mutex
	sessions []store.Session
	err      error
	delay    time.Duration
}

func (f *fakeRecorder) RecordSession(sess store.Session) (int64, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sess)
	return int64(len(f.sessions)), f.err
}

func (f *fakeRecorder) recorded() []store.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Session, len(f.sessions))
	copy(out, f.sessions)
	return out
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
	delay time.Duration
}

func (f *fakeNotifier) NotifyEvent(text string) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
}

func (f *fakeNotifier) notified() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

// waitFor polls cond until it holds or the test times out. Announcements and
// session writes are dispatched off the control loop, so tests wait for them.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

type fixture struct {
	app      *App
	timer    *timer.Machine
	tasks    *tasks.Manager
	robot    *fakeRobot
	recorder *fakeRecorder
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		timer:    timer.New(timer.DefaultSettings()),
		tasks:    tasks.NewManager(nil),
		robot:    &fakeRobot{},
		recorder: &fakeRecorder{},
		notifier: &fakeNotifier{},
	}
	f.app = New(Options{
		Timer:     f.timer,
		Tasks:     f.tasks,
		Movements: movement.NewManager(),
		Robot:     f.robot,
		Recorder:  f.recorder,
		Notifier:  f.notifier,
	})
	return f
}

func TestFocusStartTriggersGesture(t *testing.T) {
	f := newFixture(t)

	// The timer listener is registered by New, so StartFocus alone must
	// reach the gesture engine.
	if !f.timer.StartFocus() {
		t.Fatal("StartFocus failed")
	}
	kind, ok := f.app.movements.Current()
	if !ok || kind != movement.KindFocusStart {
		t.Errorf("gesture: got %v %v, want focus_start", kind, ok)
	}
}

func TestFocusReminderGesture(t *testing.T) {
	f := newFixture(t)
	f.app.handleTimerEvent(timer.Event{Type: timer.EventFocusReminder})

	kind, _ := f.app.movements.Current()
	if kind != movement.KindFocusReminder {
		t.Errorf("gesture: got %v", kind)
	}
}

func TestFocusCompletedRecordsSessionAndPomodoro(t *testing.T) {
	f := newFixture(t)
	task := f.tasks.AddTask(tasks.NewTaskParams{Title: "deep work", EstimatedPomodoros: 4})
	f.tasks.SetCurrentTask(task.ID)

	f.app.handleTimerEvent(timer.Event{Type: timer.EventFocusStarted})
	f.app.handleTimerEvent(timer.Event{Type: timer.EventFocusCompleted})

	if got := f.tasks.Task(task.ID).CompletedPomodoros; got != 1 {
		t.Errorf("completed pomodoros: got %d", got)
	}

	waitFor(t, "session record", func() bool { return len(f.recorder.recorded()) == 1 })
	sess := f.recorder.recorded()[0]
	if sess.SessionType != "focus" {
		t.Errorf("session type: got %q", sess.SessionType)
	}
	if sess.TaskID != task.ID || sess.TaskTitle != "deep work" {
		t.Errorf("session task: %+v", sess)
	}
}

func TestBreakStartedAnnouncesActivity(t *testing.T) {
	f := newFixture(t)
	f.app.handleTimerEvent(timer.Event{
		Type: timer.EventBreakStarted,
		Data: map[string]any{
			"activity": timer.BreakActivity{Name: "Neck Stretches", Description: "Slow side-to-side"},
		},
	})

	kind, _ := f.app.movements.Current()
	if kind != movement.KindBreakStart {
		t.Errorf("gesture: got %v", kind)
	}

	waitFor(t, "break announcement", func() bool { return len(f.notifier.notified()) == 1 })
	if texts := f.notifier.notified(); !strings.Contains(texts[0], "Neck Stretches") {
		t.Errorf("announcement: %v", texts)
	}
}

func TestBreakCompletedRecordsBreakType(t *testing.T) {
	f := newFixture(t)
	f.app.handleTimerEvent(timer.Event{
		Type: timer.EventBreakCompleted,
		Data: map[string]any{"break_type": "long"},
	})

	waitFor(t, "session record", func() bool { return len(f.recorder.recorded()) == 1 })
	if sessions := f.recorder.recorded(); sessions[0].SessionType != "long_break" {
		t.Errorf("sessions: %+v", sessions)
	}
}

func TestSlowCollaboratorsDoNotStallEventHandling(t *testing.T) {
	f := newFixture(t)
	f.notifier.delay = 500 * time.Millisecond
	f.recorder.delay = 500 * time.Millisecond

	// Break events announce over the network and write to the database. Both
	// run inside a control-loop tick, so they must return immediately.
	start := time.Now()
	f.app.handleTimerEvent(timer.Event{
		Type: timer.EventBreakStarted,
		Data: map[string]any{
			"activity": timer.BreakActivity{Name: "Walk", Description: "Around the room"},
		},
	})
	f.app.handleTimerEvent(timer.Event{
		Type: timer.EventBreakCompleted,
		Data: map[string]any{"break_type": "short"},
	})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("event handling blocked for %v", elapsed)
	}

	waitFor(t, "announcements", func() bool { return len(f.notifier.notified()) == 2 })
	waitFor(t, "session record", func() bool { return len(f.recorder.recorded()) == 1 })
}

func TestTickToleratesRobotFailure(t *testing.T) {
	f := newFixture(t)
	f.robot.err = errors.New("daemon unreachable")

	f.app.tick()
	f.app.tick()

	if got := f.robot.callCount(); got != 2 {
		t.Errorf("robot calls: got %d, want 2", got)
	}
}

func TestRecorderFailureDoesNotPanic(t *testing.T) {
	f := newFixture(t)
	f.recorder.err = errors.New("disk full")

	f.app.handleTimerEvent(timer.Event{Type: timer.EventFocusCompleted})
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.app.period = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.app.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for f.robot.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("control loop never ticked")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
