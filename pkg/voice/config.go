package voice

import (
	"errors"
	"time"
)

// Errors returned by the voice package.
var (
	ErrMissingAPIKey  = errors.New("voice: OpenAI API key required")
	ErrNotConnected   = errors.New("voice: not connected")
	ErrAlreadyStarted = errors.New("voice: already started")
)

// Config holds the tunable parameters of the voice assistant.
type Config struct {
	// API access
	APIKey string
	Model  string

	// TTS voice name.
	Voice string

	// SystemPrompt is the assistant's instructions.
	SystemPrompt string

	// WakePhrase activates the session when heard in a transcript.
	WakePhrase string

	// SilenceTimeout returns an active session to listening after this much
	// silence.
	SilenceTimeout time.Duration

	// SampleRate of PCM16 audio in both directions.
	SampleRate int

	// Server-side VAD tuning.
	VADThreshold       float64
	VADPrefixPadding   time.Duration
	VADSilenceDuration time.Duration
}

// DefaultConfig returns the assistant defaults.
func DefaultConfig() Config {
	return Config{
		Model:              "gpt-4o-realtime-preview",
		Voice:              "coral",
		SystemPrompt:       CompitaInstructions,
		WakePhrase:         "compita",
		SilenceTimeout:     10 * time.Second,
		SampleRate:         24000,
		VADThreshold:       0.5,
		VADPrefixPadding:   300 * time.Millisecond,
		VADSilenceDuration: 500 * time.Millisecond,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return errors.New("voice: VAD threshold must be between 0 and 1")
	}
	if c.SilenceTimeout <= 0 {
		return errors.New("voice: silence timeout must be positive")
	}
	if c.SampleRate <= 0 {
		return errors.New("voice: sample rate must be positive")
	}
	return nil
}

// WithAPIKey returns a copy with the API key set.
func (c Config) WithAPIKey(key string) Config {
	c.APIKey = key
	return c
}

// WithVoice returns a copy with the TTS voice set.
func (c Config) WithVoice(voice string) Config {
	c.Voice = voice
	return c
}

// WithWakePhrase returns a copy with the wake phrase set.
func (c Config) WithWakePhrase(phrase string) Config {
	c.WakePhrase = phrase
	return c
}

// WithSilenceTimeout returns a copy with the silence timeout set.
func (c Config) WithSilenceTimeout(d time.Duration) Config {
	c.SilenceTimeout = d
	return c
}

// CompitaInstructions is the system prompt for the Compita assistant.
const CompitaInstructions = `You are Compita, a friendly and encouraging productivity assistant for the Reachy Mini Pomodoro app.

Your personality:
- Warm, supportive, and enthusiastic about helping users stay productive
- Concise - keep responses to 1-2 sentences since users are listening
- Encouraging without being overwhelming
- You speak with a slight playful energy

You help users:
- Check their timer status and time remaining
- Start, pause, resume, and stop focus sessions
- Start breaks after completing pomodoros
- Create and manage tasks
- Track their productivity stats

When users say "Compita", acknowledge them warmly and ask how you can help.
When they ask about time remaining, be specific with minutes and seconds.
Celebrate their progress and completed tasks!

Always use the available tools to get accurate information rather than guessing.`
