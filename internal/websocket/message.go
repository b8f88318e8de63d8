package websocket

import (
	"encoding/json"
	"time"

	"draftcrane-agent/internal/domain"
)

type MessageType string

const (
	TypeEdit   MessageType = "edit"
	TypeRetry  MessageType = "retry"
	TypeStatus MessageType = "status"
	TypePing   MessageType = "ping"
	TypePong   MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		Timestamp: time.Now(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}

	return msg, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// EditPayload carries one content-change event from the editor surface.
type EditPayload struct {
	Content string `json:"content"`
}

// AnnounceAssertive asks the UI to read the update out as soon as it
// arrives. Assertive live regions announce without moving focus, so a save
// transition reaches screen reader users the moment it happens without
// interrupting typing.
const AnnounceAssertive = "assertive"

// StatusPayload is pushed on every save-status transition. Announce hints
// how the UI should surface the change to assistive technology.
type StatusPayload struct {
	SessionID string            `json:"session_id"`
	ChapterID string            `json:"chapter_id"`
	Status    domain.SaveStatus `json:"status"`
	Label     string            `json:"label"`
	Announce  string            `json:"announce"`
}
