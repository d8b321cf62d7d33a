// Package movement is the gesture animation engine. A Manager holds one
// current gesture plus a FIFO queue and evaluates a parametric pose curve for
// it every tick; a thread-safe speech offset layer is composed on top so
// voice-driven head wobble rides on whatever gesture is playing.
package movement

import (
	"sync"
	"time"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/pose"
)

// Manager owns the gesture state. All methods are safe for concurrent use;
// only the control loop calls Update.
type Manager struct {
	mu sync.Mutex

	current *State
	queue   []*State

	speech    Offsets
	listening bool

	baseTime time.Time
	now      func() time.Time
}

// NewManager creates a Manager resting in the idle animation.
func NewManager() *Manager {
	return &Manager{
		baseTime: time.Now(),
		now:      time.Now,
	}
}

// StartMovement starts a gesture immediately, replacing the current one.
// Queued gestures are kept and will play once this one completes.
func (m *Manager) StartMovement(kind Kind, duration time.Duration, loop bool, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &State{
		Kind:      kind,
		StartTime: m.now(),
		Duration:  duration,
		Loop:      loop,
		Payload:   payload,
	}
	log.Debug("gesture started", "kind", kind, "duration", duration, "loop", loop)
}

// QueueMovement appends a gesture to play after the current one finishes.
// Its start time is assigned when it is promoted.
func (m *Manager) QueueMovement(kind Kind, duration time.Duration, loop bool, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, &State{
		Kind:     kind,
		Duration: duration,
		Loop:     loop,
		Payload:  payload,
	})
}

// StopMovement drops the current gesture and the queue, returning to idle.
func (m *Manager) StopMovement() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.queue = nil
}

// Current returns the kind of the playing gesture and true, or false when
// idle.
func (m *Manager) Current() (Kind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", false
	}
	return m.current.Kind, true
}

// SetSpeechOffsets replaces the additive speech offset applied on top of the
// gesture pose.
func (m *Manager) SetSpeechOffsets(o Offsets) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speech = o
}

// ClearSpeechOffsets zeroes the speech offset.
func (m *Manager) ClearSpeechOffsets() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speech = Offsets{}
}

// SetListening records whether the robot is currently being spoken to. The
// flag is informational; it does not alter pose output.
func (m *Manager) SetListening(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listening = v
}

// IsListening reports the listening flag.
func (m *Manager) IsListening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

// Update advances the animation one tick and returns the head pose, antenna
// positions and body yaw to send to the robot. Completed one-shots promote
// the next queued gesture atomically, so no tick ever observes a gap between
// them.
func (m *Manager) Update() (pose.Matrix, [2]float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if m.current != nil && m.current.IsComplete(now) {
		if len(m.queue) > 0 {
			next := m.queue[0]
			m.queue = m.queue[1:]
			next.StartTime = now
			m.current = next
		} else {
			m.current = nil
		}
	}

	head, antennas, bodyYaw := m.evaluateLocked(now)

	if !m.speech.IsZero() {
		offset := pose.FromRadians(
			m.speech.Roll, m.speech.Pitch, m.speech.Yaw,
			m.speech.X, m.speech.Y, m.speech.Z,
		)
		head = pose.Compose(head, offset)
	}

	return head, antennas, bodyYaw
}

// evaluateLocked computes the base pose for the current gesture, falling back
// to idle for nil or unrecognized kinds.
func (m *Manager) evaluateLocked(now time.Time) (pose.Matrix, [2]float64, float64) {
	if m.current == nil {
		return idlePose(now.Sub(m.baseTime).Seconds())
	}

	elapsed := m.current.Elapsed(now).Seconds()
	progress := m.current.Progress(now)

	switch m.current.Kind {
	case KindIdle:
		return idlePose(now.Sub(m.baseTime).Seconds())
	case KindBreathing:
		return breathingPose(elapsed)
	case KindTalking:
		return talkingPose(elapsed)
	case KindFocusStart:
		return focusStartPose(progress)
	case KindFocusReminder:
		return focusReminderPose(progress)
	case KindFocusComplete:
		return focusCompletePose(progress)
	case KindBreakStart:
		return breakStartPose(progress)
	case KindCelebration:
		return celebrationPose(elapsed)
	case KindTaskComplete:
		return taskCompletePose(elapsed)
	case KindNodYes:
		return nodYesPose(progress)
	case KindNodNo:
		return nodNoPose(progress)
	case KindLookAround:
		return lookAroundPose(elapsed)
	case KindStretchDemo:
		return stretchDemoPose(progress)
	case KindBreathingDemo:
		return breathingDemoPose(elapsed)
	default:
		return idlePose(now.Sub(m.baseTime).Seconds())
	}
}
