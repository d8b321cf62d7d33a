// Command pomodoro runs the Reachy Mini pomodoro companion: timer, task list,
// gesture engine, voice assistant and the dashboard API in one process.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/config"
	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/app"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/movement"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/robot"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/store"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/tasks"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/timer"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/voice"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/web"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/wobble"
)

func main() {
	robotIP := flag.String("robot", config.RobotIP("192.168.68.75"), "robot daemon IP address")
	port := flag.String("port", config.WebPort(), "dashboard/API port")
	dbPath := flag.String("db", config.DatabasePath(), "sqlite database path")
	noRobot := flag.Bool("no-robot", false, "run without a robot daemon")
	noVoice := flag.Bool("no-voice", false, "disable the voice assistant")
	flag.Parse()

	log.Init(config.LogLevel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	// Persistence. A failed open degrades to in-memory operation.
	var db *store.Store
	if s, err := store.Open(*dbPath); err != nil {
		log.Warn("database unavailable, running in memory", "path", *dbPath, "error", err)
	} else {
		db = s
		defer db.Close()
	}

	var taskStore tasks.Store
	if db != nil {
		taskStore = db
	}
	taskMgr := tasks.NewManager(taskStore)
	machine := timer.New(timer.DefaultSettings())
	movements := movement.NewManager()

	var poseSink robot.PoseSink
	if !*noRobot {
		client := robot.NewClient(*robotIP)
		if state, err := client.DaemonStatus(); err != nil {
			log.Warn("robot daemon not reachable", "ip", *robotIP, "error", err)
		} else {
			log.Info("robot daemon connected", "ip", *robotIP, "state", state)
		}
		poseSink = client
	}

	var recorder app.Recorder
	if db != nil {
		recorder = db
	}
	runner := app.New(app.Options{
		Timer:         machine,
		Tasks:         taskMgr,
		Movements:     movements,
		Robot:         poseSink,
		Recorder:      recorder,
		LoopFrequency: config.ControlLoopFrequency,
	})

	// Settings saved from the dashboard override the environment defaults.
	apiKey := storedSetting(db, "openai_api_key", config.OpenAIKey())
	voiceName := storedSetting(db, "voice_name", config.VoiceName())
	voiceOn := config.VoiceEnabled()
	if v := storedSetting(db, "voice_enabled", ""); v != "" {
		voiceOn = v == "true"
	}
	voiceEnabled := voiceOn && !*noVoice && apiKey != ""

	server := web.NewServer(web.Options{
		Port:         *port,
		Timer:        machine,
		Tasks:        taskMgr,
		Movements:    movements,
		Store:        sessionStore(db),
		VoiceEnabled: voiceEnabled,
		VoiceName:    voiceName,
		APIKey:       apiKey,
	})

	if voiceEnabled {
		session, err := startVoice(ctx, apiKey, voiceName, machine, taskMgr, movements, server)
		if err != nil {
			log.Error("voice assistant failed to start", "error", err)
		} else {
			server.SetVoice(session)
			runner.SetNotifier(session)
			defer session.Stop()
		}
	}

	go runner.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(); err != nil {
			log.Warn("server shutdown", "error", err)
		}
	}()

	log.Info("pomodoro companion started", "port", *port, "voice", voiceEnabled)
	if err := server.Start(); err != nil {
		log.Error("web server exited", "error", err)
	}
}

// sessionStore adapts the nilable concrete store to the web layer's optional
// interface without smuggling a typed nil into it.
func sessionStore(db *store.Store) web.SessionStore {
	if db == nil {
		return nil
	}
	return db
}

// storedSetting reads a persisted setting, falling back when the database is
// absent or the read fails.
func storedSetting(db *store.Store, key, fallback string) string {
	if db == nil {
		return fallback
	}
	v, err := db.Setting(key, fallback)
	if err != nil {
		log.Warn("setting read failed", "key", key, "error", err)
		return fallback
	}
	return v
}

// startVoice builds the wobbler, tool dispatcher and voice session, and
// starts the silence watchdog.
func startVoice(ctx context.Context, apiKey, voiceName string, machine *timer.Machine,
	taskMgr *tasks.Manager, movements *movement.Manager, server *web.Server) (*voice.Session, error) {

	wobbler := wobble.NewWobbler(movements)
	wobbler.Start()

	tools := voice.PomodoroTools(machine, taskMgr)
	cfg := voice.DefaultConfig().
		WithAPIKey(apiKey).
		WithVoice(voiceName)

	factory := func(c voice.Config, cb voice.Callbacks) (voice.Channel, error) {
		return voice.NewRealtime(c, tools, cb)
	}

	session, err := voice.NewSession(cfg, factory, voice.NewDispatcher(tools), voice.SessionOptions{
		Movements:     movements,
		Wobbler:       wobbler,
		Playback:      server.SendResponseAudio,
		OnStateChange: server.SendSessionState,
		OnTranscript:  server.SendTranscript,
	})
	if err != nil {
		wobbler.Stop()
		return nil, err
	}

	go session.RunTimeoutChecker(ctx)
	return session, nil
}
