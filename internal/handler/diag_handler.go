package handler

import (
	"net/http"

	"draftcrane-agent/internal/diag"
	"draftcrane-agent/pkg/response"
)

type DiagHandler struct {
	errs *diag.Ring
}

func NewDiagHandler(errs *diag.Ring) *DiagHandler {
	return &DiagHandler{errs: errs}
}

func (h *DiagHandler) Errors(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.errs.Snapshot())
}
