// Package timer implements the pomodoro timer state machine.
//
// The machine owns all timer state and mutates it exclusively through the
// transition methods. Remaining time is always recomputed from the session
// start timestamp rather than decremented, so a missed tick never drifts the
// clock; pausing freezes it by shifting the start forward on resume.
package timer

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
)

// State is the current phase of the pomodoro cycle.
type State string

// Timer states.
const (
	StateIdle       State = "idle"
	StateFocus      State = "focus"
	StateShortBreak State = "short_break"
	StateLongBreak  State = "long_break"
	StatePaused     State = "paused"
)

// EventType identifies a timer event.
type EventType string

// Events emitted by the machine.
const (
	EventFocusStarted   EventType = "focus_started"
	EventFocusReminder  EventType = "focus_reminder"
	EventFocusCompleted EventType = "focus_completed"
	EventFocusSkipped   EventType = "focus_skipped"
	EventBreakStarted   EventType = "break_started"
	EventBreakCompleted EventType = "break_completed"
	EventBreakSkipped   EventType = "break_skipped"
	EventTimerPaused    EventType = "timer_paused"
	EventTimerResumed   EventType = "timer_resumed"
	EventTimerStopped   EventType = "timer_stopped"
)

// Event is a typed notification emitted by the machine.
type Event struct {
	Type EventType
	Data map[string]any
}

// Listener receives timer events. Listeners are invoked synchronously in
// registration order; a panicking listener is recovered and logged so it can
// never abort the control loop tick.
type Listener func(Event)

// Machine is the pomodoro timer state machine.
type Machine struct {
	mu sync.Mutex

	settings      Settings
	state         State
	previousState State // state to resume into after PAUSED

	timeRemaining   int // seconds, recomputed by Update
	sessionDuration int // seconds, fixed when the session starts
	sessionStart    time.Time
	pauseTime       time.Time
	lastReminder    time.Time

	pomodorosInCycle int
	totalPomodoros   int

	breakActivity *BreakActivity

	listeners []Listener

	now  func() time.Time
	rand *rand.Rand
}

// New creates a Machine with the given settings.
func New(settings Settings) *Machine {
	return &Machine{
		settings:      settings,
		state:         StateIdle,
		previousState: StateIdle,
		now:           time.Now,
		rand:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AddListener registers a listener for timer events.
func (m *Machine) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// emit delivers events outside the machine lock, in registration order.
func (m *Machine) emit(listeners []Listener, events []Event) {
	for _, ev := range events {
		for _, l := range listeners {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error("timer listener panicked", "event", ev.Type, "panic", r)
					}
				}()
				l(ev)
			}()
		}
	}
}

// StartFocus begins a focus session. Legal from idle and both break states;
// returns false (and emits nothing) otherwise.
func (m *Machine) StartFocus() bool {
	m.mu.Lock()
	events, ok := m.startFocusLocked()
	listeners := m.listeners
	m.mu.Unlock()

	m.emit(listeners, events)
	return ok
}

func (m *Machine) startFocusLocked() ([]Event, bool) {
	switch m.state {
	case StateIdle, StateShortBreak, StateLongBreak:
	default:
		return nil, false
	}

	now := m.now()
	m.state = StateFocus
	m.timeRemaining = m.settings.FocusDuration
	m.sessionDuration = m.settings.FocusDuration
	m.sessionStart = now
	m.lastReminder = now
	m.breakActivity = nil

	return []Event{{
		Type: EventFocusStarted,
		Data: map[string]any{
			"duration":        m.settings.FocusDuration,
			"pomodoro_number": m.totalPomodoros + 1,
		},
	}}, true
}

// StartBreak ends a focus session and begins a break. The break is long when
// forceLong is set or the cycle count reaches the configured threshold.
// Legal only from focus.
func (m *Machine) StartBreak(forceLong bool) bool {
	m.mu.Lock()
	events, ok := m.startBreakLocked(forceLong)
	listeners := m.listeners
	m.mu.Unlock()

	m.emit(listeners, events)
	return ok
}

func (m *Machine) startBreakLocked(forceLong bool) ([]Event, bool) {
	if m.state != StateFocus {
		return nil, false
	}

	m.pomodorosInCycle++
	m.totalPomodoros++

	var breakType string
	if forceLong || m.pomodorosInCycle >= m.settings.PomodorosUntilLongBreak {
		m.state = StateLongBreak
		m.timeRemaining = m.settings.LongBreakDuration
		m.pomodorosInCycle = 0
		breakType = "long"
	} else {
		m.state = StateShortBreak
		m.timeRemaining = m.settings.ShortBreakDuration
		breakType = "short"
	}

	m.sessionDuration = m.timeRemaining
	m.sessionStart = m.now()

	activity := DefaultBreakActivities[m.rand.Intn(len(DefaultBreakActivities))]
	m.breakActivity = &activity

	return []Event{{
		Type: EventBreakStarted,
		Data: map[string]any{
			"break_type":          breakType,
			"duration":            m.timeRemaining,
			"activity":            activity,
			"pomodoros_completed": m.totalPomodoros,
		},
	}}, true
}

// Pause freezes the running timer. Legal from focus and both break states.
func (m *Machine) Pause() bool {
	m.mu.Lock()
	var events []Event
	ok := false
	switch m.state {
	case StateFocus, StateShortBreak, StateLongBreak:
		m.previousState = m.state
		m.pauseTime = m.now()
		m.state = StatePaused
		events = []Event{{
			Type: EventTimerPaused,
			Data: map[string]any{
				"time_remaining": m.timeRemaining,
				"previous_state": string(m.previousState),
			},
		}}
		ok = true
	}
	listeners := m.listeners
	m.mu.Unlock()

	m.emit(listeners, events)
	return ok
}

// Resume restores a paused timer. The session start is shifted forward by the
// pause duration so elapsed time excludes the pause interval.
func (m *Machine) Resume() bool {
	m.mu.Lock()
	var events []Event
	ok := false
	if m.state == StatePaused {
		pauseDuration := m.now().Sub(m.pauseTime)
		m.sessionStart = m.sessionStart.Add(pauseDuration)
		m.lastReminder = m.lastReminder.Add(pauseDuration)
		m.state = m.previousState
		events = []Event{{
			Type: EventTimerResumed,
			Data: map[string]any{
				"state":          string(m.state),
				"time_remaining": m.timeRemaining,
			},
		}}
		ok = true
	}
	listeners := m.listeners
	m.mu.Unlock()

	m.emit(listeners, events)
	return ok
}

// Stop resets the machine to idle. Legal from any non-idle state.
func (m *Machine) Stop() bool {
	m.mu.Lock()
	var events []Event
	ok := false
	if m.state != StateIdle {
		previous := m.state
		m.state = StateIdle
		m.timeRemaining = 0
		m.breakActivity = nil
		events = []Event{{
			Type: EventTimerStopped,
			Data: map[string]any{"previous_state": string(previous)},
		}}
		ok = true
	}
	listeners := m.listeners
	m.mu.Unlock()

	m.emit(listeners, events)
	return ok
}

// Skip abandons the current session: a skipped focus starts its break, a
// skipped break starts the next focus. Illegal while paused or idle.
func (m *Machine) Skip() bool {
	m.mu.Lock()
	var events []Event
	ok := false
	switch m.state {
	case StateFocus:
		events = append(events, Event{Type: EventFocusSkipped, Data: map[string]any{}})
		breakEvents, started := m.startBreakLocked(false)
		events = append(events, breakEvents...)
		ok = started
	case StateShortBreak, StateLongBreak:
		m.state = StateIdle
		events = append(events, Event{Type: EventBreakSkipped, Data: map[string]any{}})
		focusEvents, started := m.startFocusLocked()
		events = append(events, focusEvents...)
		ok = started
	}
	listeners := m.listeners
	m.mu.Unlock()

	m.emit(listeners, events)
	return ok
}

// Update recomputes remaining time and fires completion/reminder events.
// Called once per control-loop tick; a no-op while paused or idle.
func (m *Machine) Update() {
	m.mu.Lock()
	var events []Event

	switch m.state {
	case StateFocus, StateShortBreak, StateLongBreak:
		now := m.now()
		elapsed := now.Sub(m.sessionStart)
		remaining := m.sessionDuration - int(elapsed.Seconds())
		if remaining < 0 {
			remaining = 0
		}
		m.timeRemaining = remaining

		if m.state == StateFocus {
			if now.Sub(m.lastReminder) >= time.Duration(m.settings.FocusReminderInterval)*time.Second {
				m.lastReminder = now
				events = append(events, Event{
					Type: EventFocusReminder,
					Data: map[string]any{
						"time_remaining": m.timeRemaining,
						"minutes_left":   m.timeRemaining / 60,
					},
				})
			}
		}

		if m.timeRemaining <= 0 {
			if m.state == StateFocus {
				events = append(events, Event{
					Type: EventFocusCompleted,
					Data: map[string]any{"pomodoro_number": m.totalPomodoros + 1},
				})
				breakEvents, _ := m.startBreakLocked(false)
				events = append(events, breakEvents...)
			} else {
				breakType := "short"
				if m.state == StateLongBreak {
					breakType = "long"
				}
				m.state = StateIdle
				m.breakActivity = nil
				events = append(events, Event{
					Type: EventBreakCompleted,
					Data: map[string]any{"break_type": breakType},
				})
			}
		}
	}

	listeners := m.listeners
	m.mu.Unlock()

	m.emit(listeners, events)
}

// State returns the current timer state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TimeRemaining returns the remaining seconds as of the last Update.
func (m *Machine) TimeRemaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeRemaining
}

// TotalPomodoros returns the number of completed focus sessions.
func (m *Machine) TotalPomodoros() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalPomodoros
}

// Status is a snapshot of the machine for the API and voice tools.
type Status struct {
	State                   State          `json:"state"`
	TimeRemaining           int            `json:"time_remaining"`
	TimeRemainingFormatted  string         `json:"time_remaining_formatted"`
	PomodorosInCycle        int            `json:"pomodoros_in_cycle"`
	TotalPomodoros          int            `json:"total_pomodoros"`
	PomodorosUntilLongBreak int            `json:"pomodoros_until_long_break"`
	CurrentBreakActivity    *BreakActivity `json:"current_break_activity,omitempty"`
	Settings                Settings       `json:"settings"`
}

// Status returns a consistent snapshot of the machine.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	var activity *BreakActivity
	if m.breakActivity != nil {
		a := *m.breakActivity
		activity = &a
	}

	return Status{
		State:                   m.state,
		TimeRemaining:           m.timeRemaining,
		TimeRemainingFormatted:  FormatTime(m.timeRemaining),
		PomodorosInCycle:        m.pomodorosInCycle,
		TotalPomodoros:          m.totalPomodoros,
		PomodorosUntilLongBreak: m.settings.PomodorosUntilLongBreak - m.pomodorosInCycle,
		CurrentBreakActivity:    activity,
		Settings:                m.settings,
	}
}

// Settings returns a copy of the current settings.
func (m *Machine) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// UpdateSettings applies the non-nil fields of u, clamping each to its
// allowed range. Takes effect from the next session; the running one keeps
// the duration it started with.
func (m *Machine) UpdateSettings(u SettingsUpdate) Settings {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.FocusDuration != nil {
		m.settings.FocusDuration = clampInt(*u.FocusDuration, 60, 3600)
	}
	if u.ShortBreakDuration != nil {
		m.settings.ShortBreakDuration = clampInt(*u.ShortBreakDuration, 60, 1800)
	}
	if u.LongBreakDuration != nil {
		m.settings.LongBreakDuration = clampInt(*u.LongBreakDuration, 60, 3600)
	}
	if u.PomodorosUntilLongBreak != nil {
		m.settings.PomodorosUntilLongBreak = clampInt(*u.PomodorosUntilLongBreak, 2, 10)
	}
	return m.settings
}

// FormatTime renders seconds as MM:SS.
func FormatTime(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
