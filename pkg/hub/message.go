// Package hub is a thread-safe websocket broadcast hub using the channel
// fan-out pattern. One goroutine owns the client set; each client gets a
// dedicated write pump so no two goroutines ever write the same connection.
package hub

// MessageType indicates the websocket frame format.
type MessageType int

const (
	// JSONMessage is a JSON-encoded text frame.
	JSONMessage MessageType = iota
	// BinaryMessage is a raw binary frame (PCM16 audio).
	BinaryMessage
)

// Message is one frame to broadcast to clients.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON bytes.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps binary data.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
