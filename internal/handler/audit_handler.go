package handler

import (
	"context"
	"net/http"

	"go-auth-api/internal/model"
)

type auditService interface {
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

type AuditHandler struct {
	service auditService
	opts    Options
}

func NewAuditHandler(service auditService, opts Options) *AuditHandler {
	return &AuditHandler{service: service, opts: opts}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	req := model.AuditListRequest{
		Type:      values.Get("type"),
		SubjectID: values.Get("subjectId"),
		From:      values.Get("from"),
		To:        values.Get("to"),
	}
	if err := parsePaging(values, &req.Limit, &req.Page); err != nil {
		writeError(w, r, err, h.opts)
		return
	}
	if err := validate(req); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	entries, meta, err := h.service.Query(r.Context(), req.Query())
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeSuccess(w, http.StatusOK, entries, &meta)
}
