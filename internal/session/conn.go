package session

import "encoding/json"

// Message is the JSON envelope for every websocket message, in both
// directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Identity is what a client declares about its user on join.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
}

// Conn is one live websocket connection. Send is drained by the connection's
// writer goroutine.
type Conn struct {
	ID   string
	User Identity
	Send chan []byte
}

// NewConn allocates a connection with a buffered outbound channel.
func NewConn(id string) *Conn {
	return &Conn{ID: id, Send: make(chan []byte, 64)}
}

// Encode wraps a payload in the message envelope.
func Encode(msgType string, payload any) []byte {
	p, _ := json.Marshal(payload)
	msg, _ := json.Marshal(Message{Type: msgType, Payload: p})
	return msg
}

// SendEvent queues an event for the connection without blocking. Messages are
// dropped if the client cannot keep up.
func (c *Conn) SendEvent(msgType string, payload any) {
	select {
	case c.Send <- Encode(msgType, payload):
	default:
	}
}
