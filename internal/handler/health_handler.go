package handler

import (
	"context"
	"net/http"
	"time"

	"go-auth-api/pkg/apierror"
)

type HealthHandler struct {
	check func(ctx context.Context) error
}

// NewHealthHandler reports healthy while check succeeds. check may be nil.
func NewHealthHandler(check func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{check: check}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.check(ctx); err != nil {
			writeError(w, r, apierror.Wrap(err, "SERVICE_UNAVAILABLE", "dependency check failed", http.StatusServiceUnavailable), Options{})
			return
		}
	}

	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, nil)
}
