// Package voice runs the Compita voice assistant: a Session coordinates wake
// detection, a conversation channel to the assistant backend, and the robot's
// motion reactions to speech.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/movement"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/wobble"
)

// State is the session's conversation state.
type State string

const (
	// StateListening: passively buffering audio, waiting for the wake phrase.
	StateListening State = "listening"
	// StateActive: audio streams to the assistant.
	StateActive State = "active"
	// StateProcessing: a tool call is executing.
	StateProcessing State = "processing"
)

// prebufferLimit caps the rolling prebuffer at 2 seconds of PCM16 audio, so
// activation can replay the words spoken just before the wake trigger.
const prebufferLimit = 2 * 24000 * 2

// ChannelFactory builds the conversation channel with the session's
// callbacks wired in.
type ChannelFactory func(cfg Config, cb Callbacks) (Channel, error)

// SessionOptions are the session's collaborators.
type SessionOptions struct {
	Movements *movement.Manager
	Wobbler   *wobble.Wobbler

	// Playback receives response audio for the speaker. Optional.
	Playback func(pcm16 []byte)

	// Wake is the acoustic wake detector. Defaults to TranscriptDetector.
	Wake WakeDetector

	// OnStateChange is notified of session state transitions. Optional.
	OnStateChange func(State)

	// OnTranscript receives user and assistant transcripts. Optional.
	OnTranscript func(role, text string)
}

// Session is the voice session coordinator.
type Session struct {
	cfg     Config
	channel Channel

	movements *movement.Manager
	wobbler   *wobble.Wobbler
	playback  func([]byte)
	wake      WakeDetector

	onStateChange func(State)
	onTranscript  func(role, text string)

	// activateMu serializes Activate; concurrent wake paths (audio, transcript,
	// timer notification, web) must not race the channel dial.
	activateMu sync.Mutex

	mu             sync.Mutex
	state          State
	started        bool
	stopped        bool
	prebuffer      [][]byte
	prebufferBytes int
	lastActivity   time.Time

	dispatcher *Dispatcher

	now func() time.Time
}

// NewSession builds a Session and its conversation channel.
func NewSession(cfg Config, factory ChannelFactory, dispatcher *Dispatcher, opts SessionOptions) (*Session, error) {
	if opts.Movements == nil || opts.Wobbler == nil {
		return nil, errors.New("voice: session requires movement manager and wobbler")
	}

	s := &Session{
		cfg:           cfg,
		movements:     opts.Movements,
		wobbler:       opts.Wobbler,
		playback:      opts.Playback,
		wake:          opts.Wake,
		onStateChange: opts.OnStateChange,
		onTranscript:  opts.OnTranscript,
		state:         StateListening,
		dispatcher:    dispatcher,
		now:           time.Now,
	}
	if s.wake == nil {
		s.wake = TranscriptDetector{}
	}

	ch, err := factory(cfg, Callbacks{
		OnSpeechStarted: s.handleSpeechStarted,
		OnSpeechStopped: s.handleSpeechStopped,
		OnTranscript:    s.HandleTranscript,
		OnAudioDelta:    s.handleAudioDelta,
		OnResponseText:  s.handleResponseText,
		OnResponseDone:  s.handleResponseDone,
		OnToolCall:      s.handleToolCall,
		OnError:         s.handleChannelError,
		OnClosed:        s.handleChannelClosed,
	})
	if err != nil {
		return nil, err
	}
	s.channel = ch
	return s, nil
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	changed := s.state != st
	s.state = st
	s.mu.Unlock()

	if changed {
		log.Info("voice session state", "state", st)
		if s.onStateChange != nil {
			s.onStateChange(st)
		}
	}
}

// Activate transitions to the active state: the channel is opened if needed,
// readiness is polled briefly, and the prebuffer is flushed so the assistant
// hears what was said just before the wake trigger. A no-op when already
// active. Safe for concurrent use; one caller dials, the rest wait and find
// the session already active.
func (s *Session) Activate(ctx context.Context) error {
	s.activateMu.Lock()
	defer s.activateMu.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.New("voice: session stopped")
	}
	if s.state == StateActive {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if !s.channel.IsReady() {
		if err := s.channel.Start(ctx); err != nil && !errors.Is(err, ErrAlreadyStarted) {
			return fmt.Errorf("voice: activate: %w", err)
		}
		deadline := s.now().Add(2 * time.Second)
		for !s.channel.IsReady() && s.now().Before(deadline) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
		if !s.channel.IsReady() {
			return errors.New("voice: channel not ready")
		}
	}

	s.mu.Lock()
	buffered := s.prebuffer
	s.prebuffer = nil
	s.prebufferBytes = 0
	s.lastActivity = s.now()
	s.mu.Unlock()

	for _, chunk := range buffered {
		if err := s.channel.SendAudio(chunk); err != nil {
			log.Warn("prebuffer flush failed", "error", err)
			break
		}
	}

	s.wake.Reset()
	s.setState(StateActive)
	return nil
}

// ProcessAudio handles one microphone chunk. While listening it goes to the
// prebuffer and the wake detector; while active it is forwarded to the
// assistant and refreshes the activity clock.
func (s *Session) ProcessAudio(ctx context.Context, chunk []byte) {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	switch st {
	case StateListening:
		s.bufferChunk(chunk)
		if s.wake.Process(chunk) {
			log.Info("wake detected from audio")
			if err := s.Activate(ctx); err != nil {
				log.Warn("activation failed", "error", err)
			}
		}

	case StateActive:
		if err := s.channel.SendAudio(chunk); err != nil {
			log.Debug("send audio failed", "error", err)
			return
		}
		s.mu.Lock()
		s.lastActivity = s.now()
		s.mu.Unlock()
	}
}

// bufferChunk appends to the rolling prebuffer, dropping the oldest chunks
// once over the 2 second cap.
func (s *Session) bufferChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prebuffer = append(s.prebuffer, buf)
	s.prebufferBytes += len(buf)
	for s.prebufferBytes > prebufferLimit && len(s.prebuffer) > 0 {
		s.prebufferBytes -= len(s.prebuffer[0])
		s.prebuffer = s.prebuffer[1:]
	}
}

// HandleTranscript receives a user transcript. While listening, a transcript
// containing the wake phrase activates the session.
func (s *Session) HandleTranscript(text string) {
	if s.onTranscript != nil {
		s.onTranscript("user", text)
	}

	s.mu.Lock()
	listening := s.state == StateListening
	s.mu.Unlock()

	if listening && matchesWakePhrase(text, s.cfg.WakePhrase) {
		log.Info("wake phrase heard", "transcript", text)
		if err := s.Activate(context.Background()); err != nil {
			log.Warn("activation from transcript failed", "error", err)
		}
	}
}

// NotifyEvent speaks a proactive announcement: the session is activated if
// needed, the event text is injected as a system message and a response is
// requested. Failures are logged, never returned; a missed announcement must
// not disturb the timer.
func (s *Session) NotifyEvent(text string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	active := s.state == StateActive
	s.mu.Unlock()

	if !active {
		if err := s.Activate(context.Background()); err != nil {
			log.Warn("event notification skipped", "error", err)
			return
		}
	}

	if err := s.channel.InjectText(text); err != nil {
		log.Warn("event inject failed", "error", err)
		return
	}
	if err := s.channel.CreateResponse(); err != nil {
		log.Warn("event response request failed", "error", err)
	}

	s.mu.Lock()
	s.lastActivity = s.now()
	s.mu.Unlock()
}

// RunTimeoutChecker watches for silence while active and returns the session
// to listening after the configured timeout. Blocks until ctx is done.
func (s *Session) RunTimeoutChecker(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			timedOut := s.state == StateActive && s.now().Sub(s.lastActivity) > s.cfg.SilenceTimeout
			s.mu.Unlock()
			if timedOut {
				log.Info("voice session silence timeout")
				s.deactivate()
			}
		}
	}
}

// deactivate returns to listening, keeping the channel open for the next
// activation.
func (s *Session) deactivate() {
	s.wobbler.Reset()
	s.movements.SetListening(false)
	s.movements.ClearSpeechOffsets()
	s.setState(StateListening)
}

// Stop tears the session down. Idempotent; ordering matters: the channel
// closes first so no more audio arrives, then the wobbler stops, then the
// offsets are cleared.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if err := s.channel.Stop(); err != nil {
		log.Debug("channel stop", "error", err)
	}
	s.wobbler.Stop()
	s.movements.ClearSpeechOffsets()
	s.setState(StateListening)
	log.Info("voice session stopped")
}

// Channel event bridging.

func (s *Session) handleSpeechStarted() {
	s.movements.SetListening(true)
	// The user interrupted: drop any queued response audio.
	s.wobbler.Reset()
	s.mu.Lock()
	s.lastActivity = s.now()
	s.mu.Unlock()
}

func (s *Session) handleSpeechStopped() {
	s.movements.SetListening(false)
}

func (s *Session) handleAudioDelta(pcm []byte) {
	s.wobbler.Feed(pcm)
	if s.playback != nil {
		s.playback(pcm)
	}
	s.mu.Lock()
	s.lastActivity = s.now()
	s.mu.Unlock()
}

func (s *Session) handleResponseText(text string, final bool) {
	if final && s.onTranscript != nil {
		s.onTranscript("assistant", text)
	}
}

// handleResponseDone settles the head once the assistant finishes speaking.
// A celebration in progress is left running.
func (s *Session) handleResponseDone() {
	s.movements.ClearSpeechOffsets()
	if k, ok := s.movements.Current(); !ok || k != movement.KindCelebration {
		s.movements.StartMovement(movement.KindIdle, time.Second, false, nil)
	}
}

func (s *Session) handleToolCall(call ToolCall) {
	if s.dispatcher == nil {
		if err := s.channel.SubmitToolResult(call.ID, errorPayload("no tools available")); err != nil {
			log.Warn("tool result submit failed", "error", err)
		}
		return
	}

	s.setState(StateProcessing)
	result := s.dispatcher.Dispatch(call)
	s.triggerToolGesture(call.Name, result)

	if err := s.channel.SubmitToolResult(call.ID, result); err != nil {
		log.Warn("tool result submit failed", "tool", call.Name, "error", err)
	}

	s.mu.Lock()
	s.lastActivity = s.now()
	s.mu.Unlock()
	s.setState(StateActive)
}

// triggerToolGesture animates the robot to match a tool outcome.
func (s *Session) triggerToolGesture(name, result string) {
	failed := strings.Contains(result, `"success":false`)
	if failed {
		s.movements.StartMovement(movement.KindNodNo, 800*time.Millisecond, false, nil)
		return
	}

	switch name {
	case "start_focus":
		s.movements.StartMovement(movement.KindFocusStart, 2*time.Second, false, nil)
	case "start_break":
		s.movements.StartMovement(movement.KindBreakStart, 2*time.Second, false, nil)
	case "create_task":
		s.movements.StartMovement(movement.KindNodYes, time.Second, false, nil)
	case "complete_current_task":
		s.movements.StartMovement(movement.KindCelebration, 3*time.Second, false, nil)
	}
}

func (s *Session) handleChannelError(err error) {
	log.Error("voice channel error", "error", err)
}

// handleChannelClosed tears down to listening when the backend drops the
// connection.
func (s *Session) handleChannelClosed(err error) {
	log.Warn("voice channel closed", "error", err)
	s.deactivate()
}
