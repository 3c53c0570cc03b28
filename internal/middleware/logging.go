package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"go-auth-api/internal/model"
)

const requestIDHeader = "X-Request-ID"

// sensitiveQueryParams never reach the log in clear text.
var sensitiveQueryParams = []string{"token"}

// Logging tags every request with an X-Request-ID and writes one access line
// when it completes. Failed requests also log the envelope's error code.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		started := time.Now()
		rec := &errorCapture{statusRecorder: statusRecorder{ResponseWriter: w, status: http.StatusOK}}
		next.ServeHTTP(rec, r)

		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int64("duration_ms", time.Since(started).Milliseconds()),
			slog.String("client_ip", extractClientIP(r)),
		}
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			attrs = append(attrs, slog.String("route", rctx.RoutePattern()))
		}
		if actorID, ok := ActorIDFromContext(r.Context()); ok {
			attrs = append(attrs, slog.String("actor_id", actorID))
		}
		if rec.status >= http.StatusBadRequest {
			attrs = append(attrs, rec.failureAttrs(r.URL)...)
		}

		slog.LogAttrs(r.Context(), levelForStatus(rec.status), "request", attrs...)
	})
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func redactQuery(values url.Values) string {
	for _, key := range sensitiveQueryParams {
		if values.Has(key) {
			values.Set(key, "[REDACTED]")
		}
	}
	return values.Encode()
}

// errorCapture buffers the body of error responses so the access line can
// carry the error code.
type errorCapture struct {
	statusRecorder
	body bytes.Buffer
}

func (rw *errorCapture) Write(b []byte) (int, error) {
	if rw.status >= http.StatusBadRequest {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *errorCapture) failureAttrs(u *url.URL) []slog.Attr {
	var attrs []slog.Attr
	if u.RawQuery != "" {
		attrs = append(attrs, slog.String("query", redactQuery(u.Query())))
	}

	var envelope model.APIResponse
	if rw.body.Len() == 0 || json.Unmarshal(rw.body.Bytes(), &envelope) != nil || envelope.Error == nil {
		return attrs
	}
	attrs = append(attrs,
		slog.String("error_code", envelope.Error.Code),
		slog.String("error_message", envelope.Error.Message),
	)
	if envelope.Error.Details != "" {
		attrs = append(attrs, slog.String("error_details", envelope.Error.Details))
	}
	return attrs
}
