package movement

import "time"

// Kind identifies a gesture animation.
type Kind string

// The gesture set. Anything outside this set falls back to idle.
const (
	KindIdle          Kind = "idle"
	KindBreathing     Kind = "breathing"
	KindTalking       Kind = "talking"
	KindFocusStart    Kind = "focus_start"
	KindFocusReminder Kind = "focus_reminder"
	KindFocusComplete Kind = "focus_complete"
	KindBreakStart    Kind = "break_start"
	KindTaskComplete  Kind = "task_complete"
	KindCelebration   Kind = "celebration"
	KindNodYes        Kind = "nod_yes"
	KindNodNo         Kind = "nod_no"
	KindLookAround    Kind = "look_around"
	KindStretchDemo   Kind = "stretch_demo"
	KindBreathingDemo Kind = "breathing_demo"
)

// State tracks one gesture animation in flight.
type State struct {
	Kind      Kind
	StartTime time.Time
	Duration  time.Duration
	Loop      bool
	Payload   map[string]any
}

// Elapsed returns time since the gesture started.
func (s *State) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// Progress returns animation progress in [0,1]. Looping gestures ramp through
// [0,1) repeatedly; one-shots saturate at 1.
func (s *State) Progress(now time.Time) float64 {
	if s.Duration <= 0 {
		return 1
	}
	elapsed := s.Elapsed(now)
	if s.Loop {
		cycle := elapsed % s.Duration
		return float64(cycle) / float64(s.Duration)
	}
	p := float64(elapsed) / float64(s.Duration)
	if p > 1 {
		return 1
	}
	return p
}

// IsComplete reports whether a one-shot gesture has run its duration.
// Looping gestures never complete; they run until replaced or stopped.
func (s *State) IsComplete(now time.Time) bool {
	if s.Loop {
		return false
	}
	return s.Elapsed(now) >= s.Duration
}

// Offsets is a 6-DOF additive head offset in radians and meters, produced by
// the speech-to-motion analyzer and composed onto the gesture pose.
type Offsets struct {
	Roll  float64
	Pitch float64
	Yaw   float64
	X     float64
	Y     float64
	Z     float64
}

// IsZero reports whether the offset would leave a pose unchanged.
func (o Offsets) IsZero() bool {
	return o == Offsets{}
}
