package voice

import "context"

// ToolCall is a function invocation requested by the assistant.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Callbacks receive events from a conversation channel. Nil callbacks are
// skipped. They are invoked from the channel's reader goroutine, so they must
// not block.
type Callbacks struct {
	OnSpeechStarted func()
	OnSpeechStopped func()
	OnTranscript    func(text string)
	OnAudioDelta    func(pcm16 []byte)
	OnResponseText  func(text string, final bool)
	OnResponseDone  func()
	OnToolCall      func(call ToolCall)
	OnError         func(err error)
	OnClosed        func(err error)
}

// Channel is a bidirectional conversation channel to the assistant backend.
// The Session treats it as opaque: audio and text go in, audio, transcripts
// and tool calls come out through the callbacks.
type Channel interface {
	// Start opens the channel. Readiness may lag Start; poll IsReady.
	Start(ctx context.Context) error

	// Stop closes the channel. Safe to call more than once.
	Stop() error

	// IsReady reports whether the channel is accepting audio.
	IsReady() bool

	// SendAudio forwards raw PCM16 audio.
	SendAudio(pcm16 []byte) error

	// InjectText adds a system message to the conversation.
	InjectText(text string) error

	// CreateResponse asks the assistant to respond now.
	CreateResponse() error

	// SubmitToolResult returns a tool call's output and requests a response.
	SubmitToolResult(callID, output string) error
}
