package ws

import (
	"time"

	"github.com/HerbHall/textlens/internal/process"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	// MessageState carries a process.State snapshot.
	MessageState MessageType = "process.state"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType   `json:"type"`
	RunID     string        `json:"run_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Data      process.State `json:"data"`
}

func stateMessage(s process.State, at time.Time) Message {
	return Message{
		Type:      MessageState,
		RunID:     s.RunID,
		Timestamp: at,
		Data:      s,
	}
}
