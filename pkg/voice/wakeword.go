package voice

import (
	"encoding/binary"
	"math"
	"strings"
)

// WakeDetector decides whether a raw audio chunk contains the wake phrase.
// Implementations are interchangeable black boxes; the Session also matches
// the wake phrase against transcripts independently of the detector.
type WakeDetector interface {
	// Process inspects one PCM16 chunk and reports a wake trigger.
	Process(pcm16 []byte) bool

	// Reset clears accumulated detector state.
	Reset()
}

// TranscriptDetector does no acoustic detection at all: it always returns
// false and relies on the backend transcribing the wake phrase, which the
// Session matches via HandleTranscript.
type TranscriptDetector struct{}

func (TranscriptDetector) Process([]byte) bool { return false }
func (TranscriptDetector) Reset()              {}

// EnergyDetector triggers on sustained audio energy: a cheap local
// alternative when no transcription is flowing while listening. It fires once
// per burst after consecutive hops above the RMS threshold.
type EnergyDetector struct {
	// Threshold is the normalized RMS level counted as speech.
	Threshold float64

	// HopsRequired is how many consecutive loud hops trigger a wake.
	HopsRequired int

	loudHops int
	fired    bool
}

// NewEnergyDetector returns an EnergyDetector with default tuning.
func NewEnergyDetector() *EnergyDetector {
	return &EnergyDetector{Threshold: 0.02, HopsRequired: 5}
}

func (d *EnergyDetector) Process(pcm16 []byte) bool {
	n := len(pcm16) / 2
	if n == 0 {
		return false
	}

	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm16[2*i:]))) / 32768.0
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(n))

	if rms < d.Threshold {
		d.loudHops = 0
		d.fired = false
		return false
	}

	d.loudHops++
	if d.loudHops >= d.HopsRequired && !d.fired {
		d.fired = true
		return true
	}
	return false
}

func (d *EnergyDetector) Reset() {
	d.loudHops = 0
	d.fired = false
}

// matchesWakePhrase reports whether a transcript contains the wake phrase,
// case-insensitively.
func matchesWakePhrase(transcript, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(strings.ToLower(transcript), strings.ToLower(phrase))
}
