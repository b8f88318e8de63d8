package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"draftcrane-agent/internal/autosave"
	"draftcrane-agent/internal/websocket"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	sessions *autosave.Manager
	upgrader ws.Upgrader
}

func NewWebSocketHandler(manager *websocket.Manager, sessions *autosave.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		manager:  manager,
		sessions: sessions,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}

	if _, err := h.sessions.Get(sessionID); err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("failed to upgrade connection for session %s: %v", sessionID, err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), sessionID, conn, h.manager)
	h.manager.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// WebSocketMessageHandler routes inbound socket messages: high-frequency
// edit events take the same path as HTTP edits.
type WebSocketMessageHandler struct {
	sessions *autosave.Manager
}

func NewWebSocketMessageHandler(sessions *autosave.Manager) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{sessions: sessions}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeEdit:
		return h.handleEdit(client, msg)

	case websocket.TypeRetry:
		session, err := h.sessions.Get(client.SessionID)
		if err != nil {
			return err
		}
		session.Retry()
		return nil

	case websocket.TypePing:
		return h.handlePing(client)

	default:
		log.Printf("unknown message type: %s", msg.Type)
	}

	return nil
}

func (h *WebSocketMessageHandler) handleEdit(client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.EditPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return err
	}

	session, err := h.sessions.Get(client.SessionID)
	if err != nil {
		return err
	}
	return session.Edit(context.Background(), payload.Content)
}

func (h *WebSocketMessageHandler) handlePing(client *websocket.Client) error {
	pongMsg, err := websocket.NewMessage(websocket.TypePong, nil)
	if err != nil {
		return err
	}
	return client.Manager.SendToClient(client.ID, pongMsg)
}
