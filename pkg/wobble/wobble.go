// Package wobble converts the assistant's speech audio into head movement
// offsets so the robot appears to talk. Audio chunks are stamped with a
// generation counter when queued; Reset bumps the generation, which makes the
// worker discard everything queued before the reset. That is what stops the
// head from wobbling to a response the user just interrupted.
package wobble

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/movement"
)

// OffsetSink receives the computed speech offsets, one per hop.
type OffsetSink interface {
	SetSpeechOffsets(movement.Offsets)
}

type chunk struct {
	generation uint64
	pcm        []int16
}

// Wobbler runs a worker goroutine that drains queued PCM16 chunks, computes
// one 6-DOF offset per 20 ms hop and applies it to the sink, sleeping each
// hop so emission tracks playback in real time.
type Wobbler struct {
	sink OffsetSink

	generation atomic.Uint64
	queue      chan chunk

	swayMu sync.Mutex
	sway   *sway

	stop chan struct{}
	wg   sync.WaitGroup

	sleep func(time.Duration)
}

// NewWobbler creates a Wobbler feeding the given sink. Call Start to run it.
func NewWobbler(sink OffsetSink) *Wobbler {
	return &Wobbler{
		sink:  sink,
		queue: make(chan chunk, 256),
		sway:  newSway(),
		stop:  make(chan struct{}),
		sleep: time.Sleep,
	}
}

// Start launches the worker goroutine.
func (w *Wobbler) Start() {
	w.wg.Add(1)
	go w.run()
	log.Debug("head wobbler started")
}

// Stop terminates the worker and waits for it to exit.
func (w *Wobbler) Stop() {
	close(w.stop)
	w.wg.Wait()
	log.Debug("head wobbler stopped")
}

// Feed queues raw little-endian PCM16 audio, stamped with the current
// generation. Safe from any goroutine. A trailing odd byte is dropped; if the
// queue is full the chunk is discarded rather than blocking the caller.
func (w *Wobbler) Feed(audio []byte) {
	n := len(audio) / 2
	if n == 0 {
		return
	}
	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(audio[2*i:]))
	}

	c := chunk{generation: w.generation.Load(), pcm: pcm}
	select {
	case w.queue <- c:
	default:
		log.Debug("wobbler queue full, dropping chunk", "samples", n)
	}
}

// Reset invalidates all queued audio for a new conversation turn: it bumps
// the generation, drains the queue, clears the sway state and zeroes the
// applied offset. Safe from any goroutine.
func (w *Wobbler) Reset() {
	w.generation.Add(1)

	for {
		select {
		case <-w.queue:
		default:
			w.swayMu.Lock()
			w.sway.reset()
			w.swayMu.Unlock()
			w.sink.SetSpeechOffsets(movement.Offsets{})
			return
		}
	}
}

func (w *Wobbler) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		case c := <-w.queue:
			w.process(c)
		}
	}
}

// process converts one chunk into hop offsets. The generation is re-checked
// after every slow step so a Reset takes effect mid-chunk.
func (w *Wobbler) process(c chunk) {
	if c.generation != w.generation.Load() {
		return
	}

	w.swayMu.Lock()
	offsets := w.sway.feed(c.pcm)
	w.swayMu.Unlock()

	for _, o := range offsets {
		if c.generation != w.generation.Load() {
			return
		}
		w.sink.SetSpeechOffsets(movement.Offsets{
			Roll: o.roll, Pitch: o.pitch, Yaw: o.yaw,
			X: o.x, Y: o.y, Z: o.z,
		})

		select {
		case <-w.stop:
			return
		default:
		}
		w.sleep(HopMS * time.Millisecond)
	}
}
