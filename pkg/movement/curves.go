package movement

import (
	"math"

	"github.com/teslashibe/reachy-mini-pomodoro/pkg/pose"
)

const twoPi = 2 * math.Pi

// Curve functions compute the head pose, antenna positions and body yaw for a
// gesture. Looping and open-ended gestures are keyed on elapsed seconds so
// their oscillators stay continuous across cycles; one-shots are keyed on
// progress so they reach a defined end pose.

// idlePose is the resting breathing sway, keyed to time since the manager was
// created so it never jumps when a gesture ends.
func idlePose(t float64) (pose.Matrix, [2]float64, float64) {
	pitch := 2 * math.Sin(twoPi*0.15*t)
	z := 3 * math.Sin(twoPi*0.15*t)
	antenna := 0.05 * math.Sin(twoPi*0.2*t)
	return pose.New(0, pitch, 0, 0, 0, z), [2]float64{antenna, -antenna}, 0
}

// breathingPose is the slow deep-breathing loop shown during focus.
func breathingPose(elapsed float64) (pose.Matrix, [2]float64, float64) {
	pitch := 5 * math.Sin(twoPi*0.1*elapsed)
	z := 8 * math.Sin(twoPi*0.1*elapsed)
	const antennaBase = 0.3
	variation := 0.1 * math.Sin(twoPi*0.1*elapsed)
	return pose.New(0, pitch, 0, 0, 0, z),
		[2]float64{antennaBase + variation, antennaBase - variation}, 0
}

// talkingPose layers fast and slow nods to mimic speech rhythm.
func talkingPose(elapsed float64) (pose.Matrix, [2]float64, float64) {
	nodFast := 3 * math.Sin(twoPi*2.5*elapsed)
	nodSlow := 2 * math.Sin(twoPi*0.8*elapsed)
	pitch := nodFast + nodSlow
	roll := 2 * math.Sin(twoPi*0.6*elapsed+0.5)
	yaw := 3 * math.Sin(twoPi*0.4*elapsed)
	const antennaBase = 0.25
	wiggle := 0.1 * math.Sin(twoPi*1.5*elapsed)
	return pose.New(roll, pitch, yaw, 0, 0, 0),
		[2]float64{antennaBase + wiggle, antennaBase - wiggle}, 0
}

// focusStartPose: alert look-up, return to center, antennas rise.
func focusStartPose(progress float64) (pose.Matrix, [2]float64, float64) {
	var pitch, roll float64
	switch {
	case progress < 0.3:
		p := progress / 0.3
		pitch = -15 * math.Sin(math.Pi*p)
		roll = 10 * math.Sin(math.Pi*p)
	case progress < 0.6:
		p := (progress - 0.3) / 0.3
		pitch = -15 * (1 - p) * math.Sin(math.Pi*0.5)
		roll = 10 * (1 - p)
	}
	antennaUp := 0.5 * math.Min(1, progress*2)
	return pose.New(roll, pitch, 0, 0, 0, 0), [2]float64{antennaUp, antennaUp}, 0
}

// focusReminderPose: a brief head tilt, as if checking on the user.
func focusReminderPose(progress float64) (pose.Matrix, [2]float64, float64) {
	var roll, yaw float64
	if progress < 0.5 {
		p := progress / 0.5
		roll = 8 * math.Sin(math.Pi*p)
		yaw = 5 * math.Sin(math.Pi*p)
	} else {
		p := (progress - 0.5) / 0.5
		roll = 8 * (1 - p)
		yaw = 5 * (1 - p)
	}
	return pose.New(roll, 0, yaw, 0, 0, 0), [2]float64{0.2, 0.2}, 0
}

// focusCompletePose: a decaying happy bounce.
func focusCompletePose(progress float64) (pose.Matrix, [2]float64, float64) {
	bounce := math.Sin(math.Pi*progress*2) * (1 - progress)
	z := 15 * bounce
	pitch := -10 * bounce
	wave := 0.5 * math.Sin(math.Pi*progress*3)
	return pose.New(0, pitch, 0, 0, 0, z), [2]float64{0.3 + wave, 0.3 - wave}, 0
}

// breakStartPose: stretch up, then settle; antennas relax down.
func breakStartPose(progress float64) (pose.Matrix, [2]float64, float64) {
	var pitch, z float64
	if progress < 0.4 {
		p := progress / 0.4
		pitch = -10 * p
		z = 10 * p
	} else {
		p := (progress - 0.4) / 0.6
		pitch = -10 + 15*p
		z = 10 - 5*p
	}
	antenna := 0.4 * (1 - progress)
	return pose.New(0, pitch, 0, 0, 0, z), [2]float64{antenna, antenna}, 0
}

// celebrationPose: the victory dance loop, bouncing and swaying.
func celebrationPose(elapsed float64) (pose.Matrix, [2]float64, float64) {
	const (
		bounceFreq = 1.0
		swayFreq   = 0.5
	)
	z := 15 * math.Abs(math.Sin(twoPi*bounceFreq*elapsed))
	yaw := 20 * math.Sin(twoPi*swayFreq*elapsed)
	roll := 15 * math.Sin(twoPi*swayFreq*elapsed+math.Pi/4)
	wave := 0.6 * math.Sin(twoPi*0.8*elapsed)
	return pose.New(roll, 0, yaw, 0, 0, z), [2]float64{wave, -wave}, 0
}

// taskCompletePose: one quick victory bounce, then settle.
func taskCompletePose(elapsed float64) (pose.Matrix, [2]float64, float64) {
	var pitch, z, antennaUp float64
	if elapsed < 1 {
		z = 20 * math.Sin(math.Pi*elapsed)
		pitch = -15 * math.Sin(math.Pi*elapsed)
		antennaUp = 0.7
	} else {
		p := math.Min(1, elapsed-1)
		antennaUp = 0.7 * (1 - p)
	}
	return pose.New(0, pitch, 0, 0, 0, z), [2]float64{antennaUp, antennaUp}, 0
}

// nodYesPose: two nods over the gesture duration.
func nodYesPose(progress float64) (pose.Matrix, [2]float64, float64) {
	pitch := -12 * math.Sin(math.Pi*progress*2*2)
	return pose.New(0, pitch, 0, 0, 0, 0), [2]float64{0.2, 0.2}, 0
}

// nodNoPose: two head shakes.
func nodNoPose(progress float64) (pose.Matrix, [2]float64, float64) {
	yaw := 15 * math.Sin(math.Pi*progress*2*2)
	return pose.New(0, 0, yaw, 0, 0, 0), [2]float64{-0.2, -0.2}, 0
}

// lookAroundPose: curious scanning loop.
func lookAroundPose(elapsed float64) (pose.Matrix, [2]float64, float64) {
	yaw := 30 * math.Sin(twoPi*0.3*elapsed)
	pitch := 10 * math.Sin(twoPi*0.2*elapsed+0.5)
	offset := 0.3 * math.Sin(twoPi*0.4*elapsed)
	return pose.New(0, pitch, yaw, 0, 0, 0), [2]float64{0.3 + offset, 0.3 - offset}, 0
}

// stretchDemoPose: four neck stretches, left right up down.
func stretchDemoPose(progress float64) (pose.Matrix, [2]float64, float64) {
	cycle := progress * 4
	var yaw, pitch float64
	switch {
	case cycle < 1:
		yaw = 25 * math.Sin(math.Pi*cycle)
	case cycle < 2:
		yaw = -25 * math.Sin(math.Pi*(cycle-1))
	case cycle < 3:
		pitch = -20 * math.Sin(math.Pi*(cycle-2))
	default:
		pitch = 15 * math.Sin(math.Pi*(cycle-3))
	}
	return pose.New(0, pitch, yaw, 0, 0, 0), [2]float64{0.2, 0.2}, 0
}

// breathingDemoPose: a 12 s box-breath cycle, inhale / hold / exhale.
func breathingDemoPose(elapsed float64) (pose.Matrix, [2]float64, float64) {
	const cycleDuration = 12.0
	cyclePos := math.Mod(elapsed, cycleDuration) / cycleDuration

	var pitch, z float64
	switch {
	case cyclePos < 0.33:
		p := cyclePos / 0.33
		z = 20 * p
		pitch = -10 * p
	case cyclePos < 0.66:
		z = 20
		pitch = -10
	default:
		p := (cyclePos - 0.66) / 0.34
		z = 20 * (1 - p)
		pitch = -10 * (1 - p)
	}
	antenna := 0.4 * (z / 20)
	return pose.New(0, pitch, 0, 0, 0, z), [2]float64{antenna, antenna}, 0
}
