package wobble

import "math"

// Audio format of the conversation channel's output stream.
const (
	SampleRate = 24000
	HopMS      = 20
	hopSamples = SampleRate * HopMS / 1000
)

// offset is one 6-DOF head offset sample, radians and meters.
type offset struct {
	roll, pitch, yaw float64
	x, y, z          float64
}

// sway turns a PCM stream into per-hop head offsets. It tracks a smoothed
// loudness envelope and runs slow oscillators scaled by it, so the head sways
// with speech energy and settles in silence. Not safe for concurrent use;
// the Wobbler serializes access.
type sway struct {
	residual []int16
	envelope float64
	phase    float64
}

// Envelope smoothing and oscillator tuning. The attack is fast so the head
// reacts at syllable onset; the release is slow so motion decays smoothly
// between words.
const (
	attackCoeff  = 0.55
	releaseCoeff = 0.08

	swayFreqHz = 1.4

	rollAmpRad  = 0.10
	pitchAmpRad = 0.05
	yawAmpRad   = 0.04
	zAmpM       = 0.006
)

func newSway() *sway {
	return &sway{}
}

// feed appends pcm and returns one offset per complete hop. Leftover samples
// are kept for the next call.
func (s *sway) feed(pcm []int16) []offset {
	s.residual = append(s.residual, pcm...)

	var out []offset
	for len(s.residual) >= hopSamples {
		hop := s.residual[:hopSamples]
		s.residual = s.residual[hopSamples:]
		out = append(out, s.step(hop))
	}
	return out
}

// step processes one hop: update the envelope from the hop's RMS level,
// advance the sway phase, and emit the scaled offset.
func (s *sway) step(hop []int16) offset {
	var sum float64
	for _, v := range hop {
		f := float64(v) / 32768.0
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(hop)))

	coeff := releaseCoeff
	if rms > s.envelope {
		coeff = attackCoeff
	}
	s.envelope += coeff * (rms - s.envelope)

	s.phase += 2 * math.Pi * swayFreqHz * (HopMS / 1000.0)
	if s.phase > 2*math.Pi {
		s.phase -= 2 * math.Pi
	}

	env := s.envelope
	return offset{
		roll:  rollAmpRad * env * math.Sin(s.phase),
		pitch: pitchAmpRad * env * math.Sin(2*s.phase+0.7),
		yaw:   yawAmpRad * env * math.Sin(0.5*s.phase),
		z:     zAmpM * env,
	}
}

// reset clears the envelope, phase and any buffered samples.
func (s *sway) reset() {
	s.residual = nil
	s.envelope = 0
	s.phase = 0
}
