package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-api/internal/model"
)

func TestRecovery(t *testing.T) {
	t.Parallel()

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	tests := []struct {
		name        string
		expose      bool
		wantDetails string
	}{
		{name: "production hides the panic", expose: false, wantDetails: ""},
		{name: "development shows the panic", expose: true, wantDetails: "panic: boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Recovery(tc.expose)(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			var body model.APIResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
			assert.Equal(t, tc.wantDetails, body.Error.Details)
		})
	}
}

func TestSecureHeaders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	SecureHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	rec := httptest.NewRecorder()
	Timeout(20*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQUEST_TIMEOUT")
}

func TestRedactQuery(t *testing.T) {
	t.Parallel()

	got := redactQuery(url.Values{"token": {"secret.jwt"}, "page": {"2"}})
	assert.NotContains(t, got, "secret.jwt")
	assert.Contains(t, got, "page=2")
}

// Not parallel: swaps the default logger.
func TestLoggingSetsRequestIDAndRedacts(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(previous)

	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"UNAUTHENTICATED","message":"please authenticate"}}`))
	})

	rec := httptest.NewRecorder()
	Logging(failing).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/verify-email?token=secret.jwt", nil))

	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	logged := buf.String()
	assert.Contains(t, logged, `"error_code":"UNAUTHENTICATED"`)
	assert.Contains(t, logged, `"level":"WARN"`)
	assert.NotContains(t, logged, "secret.jwt")
}

type observation struct {
	method string
	route  string
	status int
}

type fakeObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (f *fakeObserver) ObserveRequest(method string, route string, status int, _ time.Duration) {
	f.mu.Lock()
	f.seen = append(f.seen, observation{method, route, status})
	f.mu.Unlock()
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	t.Parallel()

	observer := &fakeObserver{}
	r := chi.NewRouter()
	r.Use(Metrics(observer))
	r.Delete("/v1/users/{userId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/users/123", nil))

	require.Len(t, observer.seen, 1)
	assert.Equal(t, observation{http.MethodDelete, "/v1/users/{userId}", http.StatusNoContent}, observer.seen[0])
}
