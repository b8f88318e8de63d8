package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftcrane-agent/internal/domain"
)

func TestStatusMessageAnnouncesAssertively(t *testing.T) {
	msg, err := NewMessage(TypeStatus, &StatusPayload{
		SessionID: "s1",
		ChapterID: "ch1",
		Status:    domain.Saving(),
		Label:     "Saving…",
		Announce:  AnnounceAssertive,
	})
	require.NoError(t, err)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded struct {
		Type    MessageType `json:"type"`
		Payload struct {
			Announce string `json:"announce"`
			Label    string `json:"label"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, TypeStatus, decoded.Type)
	assert.Equal(t, "assertive", decoded.Payload.Announce)
	assert.Equal(t, "Saving…", decoded.Payload.Label)
}

func TestMessage_UnmarshalPayload(t *testing.T) {
	msg, err := NewMessage(TypeEdit, &EditPayload{Content: "<p>Hi</p>"})
	require.NoError(t, err)

	var payload EditPayload
	require.NoError(t, msg.UnmarshalPayload(&payload))
	assert.Equal(t, "<p>Hi</p>", payload.Content)
}
