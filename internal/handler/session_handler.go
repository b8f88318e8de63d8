package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"draftcrane-agent/internal/autosave"
	"draftcrane-agent/internal/domain"
	"draftcrane-agent/internal/status"
	"draftcrane-agent/internal/websocket"
	"draftcrane-agent/pkg/response"
)

type SessionHandler struct {
	sessions  *autosave.Manager
	wsManager *websocket.Manager
	validate  *validator.Validate
}

func NewSessionHandler(sessions *autosave.Manager, wsManager *websocket.Manager) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		wsManager: wsManager,
		validate:  validator.New(),
	}
}

func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req domain.OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	resp, err := h.sessions.Open(r.Context(), req.ChapterID)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	h.streamStatus(resp.SessionID, resp.ChapterID)

	response.Created(w, resp)
}

// streamStatus wires the session's status projector to the websocket fanout
// so every transition reaches the editor UI without polling.
func (h *SessionHandler) streamStatus(sessionID, chapterID string) {
	session, err := h.sessions.Get(sessionID)
	if err != nil {
		return
	}

	session.Subscribe(func(st domain.SaveStatus) {
		msg, err := websocket.NewMessage(websocket.TypeStatus, &websocket.StatusPayload{
			SessionID: sessionID,
			ChapterID: chapterID,
			Status:    st,
			Label:     status.Label(st, time.Now()),
			Announce:  websocket.AnnounceAssertive,
		})
		if err != nil {
			return
		}
		h.wsManager.BroadcastToSession(sessionID, msg)
	})
}

func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := h.sessions.Close(sessionID); err != nil {
		response.NotFound(w, err.Error())
		return
	}
	response.NoContent(w)
}

func (h *SessionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := h.sessions.Get(sessionID)
	if err != nil {
		response.NotFound(w, err.Error())
		return
	}

	var req domain.EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := session.Edit(r.Context(), req.Content); err != nil {
		response.Conflict(w, err.Error())
		return
	}
	response.Success(w, map[string]interface{}{
		"accepted": true,
	})
}

func (h *SessionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := h.sessions.Get(sessionID)
	if err != nil {
		response.NotFound(w, err.Error())
		return
	}

	session.Retry()
	response.Success(w, map[string]interface{}{
		"retrying": true,
	})
}

func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := h.sessions.Get(sessionID)
	if err != nil {
		response.NotFound(w, err.Error())
		return
	}

	snapshot := session.Status()
	response.Success(w, &domain.StatusResponse{
		SessionID: session.ID,
		ChapterID: session.ChapterID,
		Status:    snapshot,
		Label:     status.Label(snapshot, time.Now()),
	})
}
