package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"go-auth-api/pkg/apierror"
)

// Recovery turns a panic into a 500. With exposeDetails the panic value is
// returned to the client, which is only meant for development.
func Recovery(exposeDetails bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				slog.Error("panic recovered",
					"error", fmt.Sprintf("%v", recovered),
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				apiErr := apierror.Internal(nil)
				if exposeDetails {
					apiErr.Details = fmt.Sprintf("panic: %v", recovered)
				}
				writeError(w, apiErr)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
