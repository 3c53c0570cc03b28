package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, apiErr *apierror.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}

func asAPIError(err error) *apierror.APIError {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return apierror.Internal(err)
}

// failRequest renders err and logs the cause of server-side failures. With
// exposeDetails the cause is also returned to the client.
func failRequest(w http.ResponseWriter, r *http.Request, err error, exposeDetails bool) {
	apiErr := asAPIError(err)
	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		cause := errors.Unwrap(apiErr)
		attrs := []any{"method", r.Method, "path", r.URL.Path, "code", apiErr.Code, "error", err.Error()}
		if cause != nil {
			attrs = append(attrs, "cause", cause.Error())
		}
		slog.ErrorContext(r.Context(), "request failed", attrs...)

		if exposeDetails && apiErr.Details == "" && cause != nil {
			apiErr = &apierror.APIError{Code: apiErr.Code, Message: apiErr.Message, Details: cause.Error(), HTTPStatus: apiErr.HTTPStatus}
		}
	}
	writeError(w, apiErr)
}
