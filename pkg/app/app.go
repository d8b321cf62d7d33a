// Package app wires the timer, task list, gesture engine and robot client
// into the control loop, and maps timer events onto the gesture choreography.
package app

import (
	"context"
	"time"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/movement"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/robot"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/store"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/tasks"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/timer"
)

// Recorder persists completed sessions. Satisfied by *store.Store.
type Recorder interface {
	RecordSession(sess store.Session) (int64, error)
}

// Notifier pushes a text event into the voice session so the assistant can
// announce it. Satisfied by *voice.Session.
type Notifier interface {
	NotifyEvent(text string)
}

// Options collects the App's collaborators. Robot, Recorder and Notifier are
// optional; everything else is required.
type Options struct {
	Timer     *timer.Machine
	Tasks     *tasks.Manager
	Movements *movement.Manager
	Robot     robot.PoseSink
	Recorder  Recorder
	Notifier  Notifier

	// LoopFrequency is the control loop rate in Hz. Defaults to 50.
	LoopFrequency int
}

// App runs the control loop and reacts to timer events.
type App struct {
	timer     *timer.Machine
	tasks     *tasks.Manager
	movements *movement.Manager
	robot     robot.PoseSink
	recorder  Recorder
	notifier  Notifier

	period time.Duration
	now    func() time.Time

	sessionStart time.Time
	sessionTask  *tasks.Task
}

// New creates an App and registers its timer event handler.
func New(opts Options) *App {
	freq := opts.LoopFrequency
	if freq <= 0 {
		freq = 50
	}
	a := &App{
		timer:     opts.Timer,
		tasks:     opts.Tasks,
		movements: opts.Movements,
		robot:     opts.Robot,
		recorder:  opts.Recorder,
		notifier:  opts.Notifier,
		period:    time.Second / time.Duration(freq),
		now:       time.Now,
	}
	a.timer.AddListener(a.handleTimerEvent)
	return a
}

// SetNotifier attaches the voice session after construction. The session
// needs the movement manager before it exists, so wiring happens in two
// steps.
func (a *App) SetNotifier(n Notifier) {
	a.notifier = n
}

// Run drives the control loop until ctx is cancelled. Every tick advances the
// timer, evaluates the gesture pose and sends one batched target to the
// robot. A failed send is logged and the loop keeps going.
func (a *App) Run(ctx context.Context) {
	a.movements.StartMovement(movement.KindIdle, time.Second, true, nil)

	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	log.Info("control loop started", "period", a.period)
	for {
		select {
		case <-ctx.Done():
			log.Info("control loop stopped")
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *App) tick() {
	start := a.now()

	a.timer.Update()
	head, antennas, bodyYaw := a.movements.Update()

	if a.robot != nil {
		if err := a.robot.SetTarget(head, antennas, bodyYaw); err != nil {
			log.Warn("robot target send failed", "error", err)
		}
	}

	if elapsed := a.now().Sub(start); elapsed > a.period {
		log.Debug("control loop tick overran", "elapsed", elapsed)
	}
}

// handleTimerEvent maps timer events to gestures, session recording and voice
// announcements. Runs on the control loop goroutine via the timer listener, so
// anything that touches the network or the database is handed off; only the
// pose-write in tick may block a tick.
func (a *App) handleTimerEvent(ev timer.Event) {
	log.Info("timer event", "type", ev.Type)

	switch ev.Type {
	case timer.EventFocusStarted:
		a.sessionStart = a.now()
		a.sessionTask = a.tasks.CurrentTask()
		a.movements.StartMovement(movement.KindFocusStart, 2*time.Second, false, nil)
		a.movements.QueueMovement(movement.KindBreathing, 60*time.Second, true, nil)

	case timer.EventFocusReminder:
		a.movements.StartMovement(movement.KindFocusReminder, 1500*time.Millisecond, false, nil)
		a.movements.QueueMovement(movement.KindBreathing, 60*time.Second, true, nil)

	case timer.EventFocusCompleted:
		a.movements.StartMovement(movement.KindFocusComplete, 2*time.Second, false, nil)
		task := a.tasks.CompletePomodoro()
		if task != nil && task.CompletedPomodoros >= task.EstimatedPomodoros {
			a.movements.QueueMovement(movement.KindTaskComplete, 2*time.Second, false, nil)
		}
		a.recordSession("focus")

	case timer.EventBreakStarted:
		a.movements.StartMovement(movement.KindBreakStart, 2*time.Second, false, nil)
		a.movements.QueueMovement(movement.KindBreathingDemo, 12*time.Second, true, nil)
		a.announceBreak(ev)
		// A skipped focus jumps straight here without a completion event, so
		// the break's own start time is pinned down again.
		a.sessionStart = a.now()

	case timer.EventBreakCompleted:
		a.movements.StartMovement(movement.KindNodYes, time.Second, false, nil)
		a.movements.QueueMovement(movement.KindIdle, time.Second, false, nil)
		a.recordSession(breakSessionType(ev))
		a.notify("The break is over. Gently encourage the user to start their next focus session.")

	case timer.EventTimerPaused:
		a.movements.StartMovement(movement.KindIdle, time.Second, false, nil)

	case timer.EventTimerResumed:
		if a.timer.State() == timer.StateFocus {
			a.movements.StartMovement(movement.KindBreathing, 60*time.Second, true, nil)
		}

	case timer.EventTimerStopped:
		a.movements.StartMovement(movement.KindIdle, time.Second, false, nil)
	}
}

// recordSession persists the session that just finished. The start timestamp
// is reused across the focus/break pair, so it is refreshed here for the
// phase that follows.
func (a *App) recordSession(sessionType string) {
	if a.recorder == nil {
		a.sessionStart = a.now()
		return
	}

	sess := store.Session{
		StartedAt:   a.sessionStart,
		CompletedAt: a.now(),
		SessionType: sessionType,
	}
	sess.DurationSeconds = int(sess.CompletedAt.Sub(sess.StartedAt).Seconds())
	if sessionType == "focus" && a.sessionTask != nil {
		sess.TaskID = a.sessionTask.ID
		sess.TaskTitle = a.sessionTask.Title
	}

	// The write goes to SQLite; hand it off so the tick is not held up.
	go func() {
		if _, err := a.recorder.RecordSession(sess); err != nil {
			log.Error("session record failed", "type", sessionType, "error", err)
		}
	}()
	a.sessionStart = a.now()
}

func breakSessionType(ev timer.Event) string {
	if bt, _ := ev.Data["break_type"].(string); bt == "long" {
		return "long_break"
	}
	return "short_break"
}

// announceBreak asks the voice assistant to introduce the break activity.
func (a *App) announceBreak(ev timer.Event) {
	activity, ok := ev.Data["activity"].(timer.BreakActivity)
	if !ok {
		return
	}
	a.notify("A break just started. Briefly suggest this activity to the user: " +
		activity.Name + " (" + activity.Description + ").")
}

// notify hands the announcement off; activating the voice session can dial
// the network and must never stall a tick.
func (a *App) notify(text string) {
	if a.notifier == nil {
		return
	}
	go a.notifier.NotifyEvent(text)
}
