package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
)

const realtimeURL = "wss://api.openai.com/v1/realtime"

// Realtime is a Channel over the OpenAI Realtime API. One WebSocket carries
// both directions: base64 PCM16 audio frames in, audio deltas, transcripts
// and function calls out. Server VAD does turn detection.
type Realtime struct {
	config    Config
	tools     []Tool
	callbacks Callbacks

	ws   *websocket.Conn
	wsMu sync.Mutex

	// startMu is held across the connected check and the dial, so two
	// concurrent Starts can never open two sockets.
	startMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	ready     bool
	closed    bool

	cancel context.CancelFunc
}

// NewRealtime creates a Realtime channel with the given tools exposed to the
// assistant.
func NewRealtime(cfg Config, tools []Tool, cb Callbacks) (*Realtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Realtime{
		config:    cfg,
		tools:     tools,
		callbacks: cb,
	}, nil
}

// Start dials the Realtime API and configures the session.
func (r *Realtime) Start(ctx context.Context) error {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	r.mu.Lock()
	if r.connected {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.mu.Unlock()

	ctx, r.cancel = context.WithCancel(ctx)

	url := fmt.Sprintf("%s?model=%s", realtimeURL, r.config.Model)
	header := map[string][]string{
		"Authorization": {"Bearer " + r.config.APIKey},
		"OpenAI-Beta":   {"realtime=v1"},
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("voice: realtime connect: %w", err)
	}

	r.mu.Lock()
	r.ws = ws
	r.connected = true
	r.closed = false
	r.mu.Unlock()

	if err := r.configureSession(); err != nil {
		r.Stop()
		return fmt.Errorf("voice: realtime session config: %w", err)
	}

	go r.readLoop()
	log.Info("realtime channel connected", "model", r.config.Model)
	return nil
}

// Stop closes the connection. Idempotent.
func (r *Realtime) Stop() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.connected = false
	r.ready = false
	ws := r.ws
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	if ws != nil {
		return ws.Close()
	}
	return nil
}

// IsReady reports whether the session is created and accepting audio.
func (r *Realtime) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected && r.ready && !r.closed
}

// SendAudio forwards PCM16 audio to the input buffer.
func (r *Realtime) SendAudio(pcm16 []byte) error {
	r.mu.RLock()
	ok := r.connected && !r.closed
	r.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	return r.sendJSON(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm16),
	})
}

// InjectText adds a system message to the conversation.
func (r *Realtime) InjectText(text string) error {
	return r.sendJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "system",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
}

// CreateResponse asks the assistant to produce a response.
func (r *Realtime) CreateResponse() error {
	return r.sendJSON(map[string]string{"type": "response.create"})
}

// SubmitToolResult returns a function call output and requests a spoken
// response.
func (r *Realtime) SubmitToolResult(callID, output string) error {
	err := r.sendJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	})
	if err != nil {
		return err
	}
	return r.CreateResponse()
}

// configureSession pushes instructions, voice, VAD tuning and the tool
// schemas in a session.update.
func (r *Realtime) configureSession() error {
	apiTools := make([]map[string]any, len(r.tools))
	for i, t := range r.tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			}
		}
		apiTools[i] = map[string]any{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters":  params,
		}
	}

	return r.sendJSON(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":          []string{"text", "audio"},
			"instructions":        r.config.SystemPrompt,
			"voice":               r.config.Voice,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           r.config.VADThreshold,
				"prefix_padding_ms":   int(r.config.VADPrefixPadding.Milliseconds()),
				"silence_duration_ms": int(r.config.VADSilenceDuration.Milliseconds()),
			},
			"tools":       apiTools,
			"tool_choice": "auto",
		},
	})
}

// readLoop dispatches server events to the callbacks until the connection
// closes.
func (r *Realtime) readLoop() {
	for {
		r.mu.RLock()
		closed := r.closed
		ws := r.ws
		r.mu.RUnlock()
		if closed {
			return
		}

		_, message, err := ws.ReadMessage()
		if err != nil {
			r.mu.RLock()
			closed := r.closed
			r.mu.RUnlock()
			if !closed && r.callbacks.OnClosed != nil {
				r.callbacks.OnClosed(err)
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		msgType, _ := msg["type"].(string)

		switch msgType {
		case "session.created":
			r.mu.Lock()
			r.ready = true
			r.mu.Unlock()
			log.Debug("realtime session created")

		case "input_audio_buffer.speech_started":
			if r.callbacks.OnSpeechStarted != nil {
				r.callbacks.OnSpeechStarted()
			}

		case "input_audio_buffer.speech_stopped":
			if r.callbacks.OnSpeechStopped != nil {
				r.callbacks.OnSpeechStopped()
			}

		case "conversation.item.input_audio_transcription.completed":
			if transcript, ok := msg["transcript"].(string); ok && r.callbacks.OnTranscript != nil {
				r.callbacks.OnTranscript(transcript)
			}

		case "response.audio.delta":
			if delta, ok := msg["delta"].(string); ok && r.callbacks.OnAudioDelta != nil {
				if pcm, err := base64.StdEncoding.DecodeString(delta); err == nil {
					r.callbacks.OnAudioDelta(pcm)
				}
			}

		case "response.audio_transcript.delta":
			if delta, ok := msg["delta"].(string); ok && r.callbacks.OnResponseText != nil {
				r.callbacks.OnResponseText(delta, false)
			}

		case "response.audio_transcript.done":
			if transcript, ok := msg["transcript"].(string); ok && r.callbacks.OnResponseText != nil {
				r.callbacks.OnResponseText(transcript, true)
			}

		case "response.done":
			if r.callbacks.OnResponseDone != nil {
				r.callbacks.OnResponseDone()
			}

		case "response.function_call_arguments.done":
			r.handleFunctionCall(msg)

		case "error":
			if errData, ok := msg["error"].(map[string]any); ok {
				if errMsg, ok := errData["message"].(string); ok && r.callbacks.OnError != nil {
					r.callbacks.OnError(fmt.Errorf("voice: realtime api: %s", errMsg))
				}
			}
		}
	}
}

func (r *Realtime) handleFunctionCall(msg map[string]any) {
	if r.callbacks.OnToolCall == nil {
		return
	}

	name, _ := msg["name"].(string)
	callID, _ := msg["call_id"].(string)
	argsStr, _ := msg["arguments"].(string)

	var args map[string]any
	if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
		args = map[string]any{}
	}

	r.callbacks.OnToolCall(ToolCall{ID: callID, Name: name, Arguments: args})
}

func (r *Realtime) sendJSON(v any) error {
	r.wsMu.Lock()
	defer r.wsMu.Unlock()
	if r.ws == nil {
		return ErrNotConnected
	}
	return r.ws.WriteJSON(v)
}

var _ Channel = (*Realtime)(nil)
