package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"draftcrane-agent/internal/draftstore"
	"draftcrane-agent/pkg/response"
)

type DraftHandler struct {
	drafts draftstore.Store
}

func NewDraftHandler(drafts draftstore.Store) *DraftHandler {
	return &DraftHandler{drafts: drafts}
}

func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	chapterID := mux.Vars(r)["chapterID"]

	entry, err := h.drafts.LoadDraft(r.Context(), chapterID)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	if entry == nil {
		response.NotFound(w, "no draft for chapter "+chapterID)
		return
	}
	response.Success(w, entry)
}

func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	chapterID := mux.Vars(r)["chapterID"]

	if err := h.drafts.DeleteDraft(r.Context(), chapterID); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.NoContent(w)
}

func (h *DraftHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.drafts.ClearAll(r.Context()); err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.NoContent(w)
}
