package web

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/log"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/hub"
)

// streamControl is a text-frame control message from the browser.
type streamControl struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// handleVoiceStream bridges a browser microphone into the voice session.
// Binary frames carry PCM16 microphone audio; text frames carry control
// messages. Outbound traffic (response audio, transcripts, state) arrives
// through the voice hub broadcast.
func (s *Server) handleVoiceStream(conn *websocket.Conn) {
	client := hub.NewClient(s.voiceHub, conn)

	if s.voice == nil {
		client.Run()
		return
	}

	client.OnMessage = func(messageType int, data []byte) {
		switch messageType {
		case websocket.BinaryMessage:
			s.voice.ProcessAudio(context.Background(), data)

		case websocket.TextMessage:
			var ctrl streamControl
			if err := json.Unmarshal(data, &ctrl); err != nil {
				log.Debug("voice stream control unparseable", "error", err)
				return
			}
			switch ctrl.Type {
			case "activate":
				if err := s.voice.Activate(context.Background()); err != nil {
					log.Warn("voice stream activation failed", "error", err)
				}
			case "transcript":
				s.voice.HandleTranscript(ctrl.Text)
			}
		}
	}

	client.Run()
}
