// Package web serves the dashboard REST API and the browser voice stream.
package web

import (
	"context"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/hub"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/movement"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/store"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/tasks"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/timer"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/voice"
)

// VoiceSession is the slice of the voice session the API needs. Satisfied by
// *voice.Session.
type VoiceSession interface {
	State() voice.State
	Activate(ctx context.Context) error
	ProcessAudio(ctx context.Context, chunk []byte)
	HandleTranscript(text string)
	NotifyEvent(text string)
}

// SessionStore is the slice of the store the API needs beyond what the task
// manager already wraps. Satisfied by *store.Store.
type SessionStore interface {
	SaveTag(name string) error
	DeleteTag(name string) (bool, error)
	RecentSessions(limit int) ([]store.Session, error)
	SaveSetting(key, value string) error
	Setting(key, fallback string) (string, error)
}

// Options configures the Server. Voice and Store are optional; handlers
// answer with an error payload when they are absent.
type Options struct {
	Port      string
	Timer     *timer.Machine
	Tasks     *tasks.Manager
	Movements *movement.Manager
	Voice     VoiceSession
	Store     SessionStore

	// VoiceEnabled, VoiceName and APIKey seed the voice settings endpoints.
	// The key is never echoed back unmasked.
	VoiceEnabled bool
	VoiceName    string
	APIKey       string
}

// Server is the dashboard HTTP server.
type Server struct {
	app  *fiber.App
	port string

	timer     *timer.Machine
	tasks     *tasks.Manager
	movements *movement.Manager
	voice     VoiceSession
	store     SessionStore

	// settingsMu guards the mutable voice settings below.
	settingsMu   sync.Mutex
	voiceEnabled bool
	voiceName    string
	apiKey       string

	voiceHub *hub.Hub
}

// NewServer builds the server and mounts all routes.
func NewServer(opts Options) *Server {
	s := &Server{
		port:         opts.Port,
		timer:        opts.Timer,
		tasks:        opts.Tasks,
		movements:    opts.Movements,
		voice:        opts.Voice,
		store:        opts.Store,
		voiceEnabled: opts.VoiceEnabled,
		voiceName:    opts.VoiceName,
		apiKey:       opts.APIKey,
		voiceHub:     hub.New("voice"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Reachy Mini Pomodoro",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)

	api.Post("/timer/start", s.handleTimerStart)
	api.Post("/timer/pause", s.handleTimerPause)
	api.Post("/timer/resume", s.handleTimerResume)
	api.Post("/timer/stop", s.handleTimerStop)
	api.Post("/timer/skip", s.handleTimerSkip)
	api.Post("/timer/break", s.handleTimerBreak)

	api.Get("/tasks", s.handleGetTasks)
	api.Post("/tasks", s.handleAddTask)
	api.Put("/tasks/:id", s.handleUpdateTask)
	api.Delete("/tasks/:id", s.handleDeleteTask)
	api.Post("/tasks/:id/select", s.handleSelectTask)
	api.Post("/tasks/:id/complete", s.handleCompleteTask)
	api.Post("/tasks/reorder", s.handleReorderTasks)
	api.Post("/tasks/clear-completed", s.handleClearCompleted)

	api.Get("/tags", s.handleGetTags)
	api.Post("/tags", s.handleCreateTag)
	api.Delete("/tags/:name", s.handleDeleteTag)
	api.Post("/tags/filter", s.handleSetTagFilter)
	api.Delete("/tags/filter", s.handleClearTagFilter)

	api.Get("/history", s.handleHistory)
	api.Get("/stats", s.handleStats)
	api.Get("/sessions", s.handleSessions)

	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings", s.handleUpdateSettings)

	api.Post("/robot/celebrate", s.handleRobotCelebrate)
	api.Post("/robot/demo-stretch", s.handleRobotDemoStretch)
	api.Post("/robot/demo-breathing", s.handleRobotDemoBreathing)

	api.Get("/voice/status", s.handleVoiceStatus)
	api.Post("/voice/activate", s.handleVoiceActivate)
	api.Get("/voice/settings", s.handleGetVoiceSettings)
	api.Put("/voice/settings", s.handleUpdateVoiceSettings)

	api.Use("/voice/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/voice/stream", websocket.New(s.handleVoiceStream))

	s.app = app
	return s
}

// SetVoice attaches the voice session after construction. The session needs
// the server's broadcast sinks before it exists, so wiring happens in two
// steps.
func (s *Server) SetVoice(v VoiceSession) {
	s.voice = v
}

// Start runs the broadcast hub and serves until Shutdown. Blocking.
func (s *Server) Start() error {
	go s.voiceHub.Run()
	log.Info("web server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// SendResponseAudio broadcasts assistant speech to connected browsers. Wire
// as the voice session's playback sink.
func (s *Server) SendResponseAudio(pcm []byte) {
	s.voiceHub.BroadcastBinary(pcm)
}

// SendTranscript broadcasts a conversation line.
func (s *Server) SendTranscript(role, text string) {
	s.voiceHub.BroadcastJSON(fiber.Map{"type": "transcript", "role": role, "text": text})
}

// SendSessionState broadcasts a voice session state change.
func (s *Server) SendSessionState(state voice.State) {
	s.voiceHub.BroadcastJSON(fiber.Map{"type": "state", "state": state})
}
