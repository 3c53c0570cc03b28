package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

const maxBodyBytes = 1 << 20

// Options controls how much of an internal failure reaches the client.
type Options struct {
	ExposeInternalErrors bool
}

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError renders err. API errors keep their code and status; bare model
// sentinels are mapped; anything else is an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, opts Options) {
	apiErr := classify(err)

	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		cause := errors.Unwrap(apiErr)
		attrs := []any{"method", r.Method, "path", r.URL.Path, "code", apiErr.Code, "error", err.Error()}
		if cause != nil {
			attrs = append(attrs, "cause", cause.Error())
		}
		slog.ErrorContext(r.Context(), "request failed", attrs...)

		if opts.ExposeInternalErrors && apiErr.Details == "" && cause != nil {
			apiErr = &apierror.APIError{Code: apiErr.Code, Message: apiErr.Message, Details: cause.Error(), HTTPStatus: apiErr.HTTPStatus}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}

func classify(err error) *apierror.APIError {
	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, model.ErrUserNotFound):
		return apierror.UserNotFound(err)
	case errors.Is(err, model.ErrEmailTaken):
		return apierror.EmailTaken(err)
	case errors.Is(err, model.ErrInvalidCredentials):
		return apierror.InvalidCredentials(err)
	case errors.Is(err, model.ErrUnauthenticated),
		errors.Is(err, model.ErrInvalidToken),
		errors.Is(err, model.ErrTokenExpired),
		errors.Is(err, model.ErrTokenTypeMismatch):
		return apierror.Unauthenticated(err)
	case errors.Is(err, model.ErrForbidden):
		return apierror.Forbidden(err)
	case errors.Is(err, model.ErrTokenNotFound):
		return apierror.TokenNotFound(err)
	case errors.Is(err, model.ErrResourceNotFound):
		return apierror.Wrap(err, apierror.CodeNotFound, "not found", http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidInput):
		return apierror.Validation(err.Error())
	default:
		return apierror.Internal(err)
	}
}

type validatable interface {
	Validate() error
}

// decodeJSON reads a single JSON object into dst. Unknown fields are
// rejected. An empty body decodes as {}.
func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apierror.New(apierror.CodeValidation, "request body too large", "", http.StatusRequestEntityTooLarge)
		}
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return apierror.Validation(fmt.Sprintf("%s: is not allowed", strings.Trim(field, `"`)))
		}
		return apierror.Validation("invalid JSON body")
	}
	if decoder.More() {
		return apierror.Validation("body must contain a single JSON object")
	}
	return nil
}

func validate(v validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return apierror.Validation(fieldErrs.Error())
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return apierror.Internal(err)
	}
	return apierror.Validation(err.Error())
}

// bind decodes and validates a JSON body.
func bind(r *http.Request, w http.ResponseWriter, dst validatable) error {
	if err := decodeJSON(r, w, dst); err != nil {
		return err
	}
	return validate(dst)
}
