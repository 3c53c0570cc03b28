package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-auth-api/internal/middleware"
	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Register(ctx context.Context, c model.UserCandidate) (model.User, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email string, password string) (model.User, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *mockAuthService) RefreshAuth(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *mockAuthService) GenerateAuthTokens(ctx context.Context, userID string) (model.TokenPair, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthService) ResetPasswordWithToken(ctx context.Context, token string, password string) error {
	return m.Called(ctx, token, password).Error(0)
}

func (m *mockAuthService) SendVerificationEmail(ctx context.Context, user model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockAuthService) VerifyEmail(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) CreateUser(ctx context.Context, c model.UserCandidate) (model.User, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserService) ListUsers(ctx context.Context, f model.UserFilter, o model.ListOptions) (model.UserPage, error) {
	args := m.Called(ctx, f, o)
	return args.Get(0).(model.UserPage), args.Error(1)
}

func (m *mockUserService) GetUserByID(ctx context.Context, id string) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserService) UpdateUserByID(ctx context.Context, id string, u model.UserUpdate) (model.User, error) {
	args := m.Called(ctx, id, u)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserService) DeleteUserByID(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) model.APIResponse {
	t.Helper()
	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func jsonRequest(method string, target string, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

var jane = model.User{ID: "u-1", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", PasswordHash: "$2a$08$secret", Role: model.RoleUser}

func TestAuthHandlerRegister(t *testing.T) {
	t.Parallel()

	t.Run("creates the user and returns tokens without the hash", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("Register", mock.Anything, model.UserCandidate{
			FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password1",
		}).Return(jane, nil)
		svc.On("GenerateAuthTokens", mock.Anything, "u-1").Return(model.TokenPair{
			Access:  model.IssuedToken{Token: "a"},
			Refresh: model.IssuedToken{Token: "r"},
		}, nil)

		rec := httptest.NewRecorder()
		NewAuthHandler(svc, Options{}).Register(rec, jsonRequest(http.MethodPost, "/v1/auth/register",
			`{"firstname":"Jane","lastname":"Doe","email":"jane@example.com","password":"password1"}`))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret")
		assert.NotContains(t, rec.Body.String(), "password")
		assert.Contains(t, rec.Body.String(), `"refresh":{"token":"r"`)
		svc.AssertExpectations(t)
	})

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "role is rejected", body: `{"firstname":"J","lastname":"D","email":"j@example.com","password":"password1","role":"admin"}`, want: "role"},
		{name: "email flag is rejected", body: `{"firstname":"J","lastname":"D","email":"j@example.com","password":"password1","isEmailVerified":true}`, want: "isEmailVerified"},
		{name: "unknown field is rejected", body: `{"firstname":"J","lastname":"D","email":"j@example.com","password":"password1","admin":true}`, want: "admin"},
		{name: "weak password", body: `{"firstname":"J","lastname":"D","email":"j@example.com","password":"password"}`, want: "password"},
		{name: "bad email", body: `{"firstname":"J","lastname":"D","email":"nope","password":"password1"}`, want: "email"},
		{name: "malformed json", body: `{"firstname":`, want: "invalid JSON"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockAuthService{}
			rec := httptest.NewRecorder()
			NewAuthHandler(svc, Options{}).Register(rec, jsonRequest(http.MethodPost, "/v1/auth/register", tc.body))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeResponse(t, rec)
			require.NotNil(t, body.Error)
			assert.Equal(t, apierror.CodeValidation, body.Error.Code)
			assert.Contains(t, body.Error.Details, tc.want)
			svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthHandlerLoginFailure(t *testing.T) {
	t.Parallel()

	svc := &mockAuthService{}
	svc.On("Login", mock.Anything, "jane@example.com", "wrong").
		Return(model.User{}, apierror.InvalidCredentials(model.ErrInvalidCredentials))

	rec := httptest.NewRecorder()
	NewAuthHandler(svc, Options{}).Login(rec, jsonRequest(http.MethodPost, "/v1/auth/login",
		`{"email":"jane@example.com","password":"wrong"}`))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, apierror.CodeInvalidCredentials, body.Error.Code)
	svc.AssertNotCalled(t, "GenerateAuthTokens", mock.Anything, mock.Anything)
}

func TestAuthHandlerTokenQueryEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("reset password reads the token from the query", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("ResetPasswordWithToken", mock.Anything, "tok", "newpassword1").Return(nil).Once()

		rec := httptest.NewRecorder()
		NewAuthHandler(svc, Options{}).ResetPassword(rec, jsonRequest(http.MethodPost, "/v1/auth/reset-password?token=tok",
			`{"password":"newpassword1"}`))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("reset password without token is a validation error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewAuthHandler(&mockAuthService{}, Options{}).ResetPassword(rec, jsonRequest(http.MethodPost, "/v1/auth/reset-password",
			`{"password":"newpassword1"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("verify email without token is a validation error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewAuthHandler(&mockAuthService{}, Options{}).VerifyEmail(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/verify-email", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("verify email passes the token through", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("VerifyEmail", mock.Anything, "tok").Return(apierror.Unauthenticated(model.ErrTokenNotFound))

		rec := httptest.NewRecorder()
		NewAuthHandler(svc, Options{}).VerifyEmail(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/verify-email?token=tok", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthHandlerMe(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	NewAuthHandler(&mockAuthService{}, Options{}).Me(rec, req.WithContext(middleware.WithActor(req.Context(), jane)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"jane@example.com"`)
	assert.NotContains(t, rec.Body.String(), "$2a$")
}

func TestUserHandlerList(t *testing.T) {
	t.Parallel()

	t.Run("passes filter and options and returns meta", func(t *testing.T) {
		svc := &mockUserService{}
		svc.On("ListUsers", mock.Anything, model.UserFilter{Role: model.RoleAdmin},
			model.ListOptions{SortBy: "email:desc", Limit: 5, Page: 2}).
			Return(model.UserPage{Results: []model.User{jane}, Page: 2, Limit: 5, TotalResults: 6}, nil)

		rec := httptest.NewRecorder()
		NewUserHandler(svc, Options{}).List(rec, httptest.NewRequest(http.MethodGet, "/v1/users?role=admin&sortBy=email:desc&limit=5&page=2", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		require.NotNil(t, body.Meta)
		assert.Equal(t, model.Meta{Page: 2, Limit: 5, Total: 6, TotalPages: 2}, *body.Meta)
		svc.AssertExpectations(t)
	})

	for _, query := range []string{"limit=abc", "limit=0", "limit=101", "page=0", "role=root", "sortBy=password"} {
		t.Run("rejects "+query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewUserHandler(&mockUserService{}, Options{}).List(rec, httptest.NewRequest(http.MethodGet, "/v1/users?"+query, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUserHandlerUpdateAndDelete(t *testing.T) {
	t.Parallel()

	svc := &mockUserService{}
	name := "Janet"
	svc.On("UpdateUserByID", mock.Anything, "u-1", model.UserUpdate{FirstName: &name}).Return(jane, nil)
	svc.On("DeleteUserByID", mock.Anything, "u-2").Return(apierror.UserNotFound(model.ErrUserNotFound))

	h := NewUserHandler(svc, Options{})
	r := chi.NewRouter()
	r.Patch("/v1/users/{userId}", h.Update)
	r.Delete("/v1/users/{userId}", h.Delete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, jsonRequest(http.MethodPatch, "/v1/users/u-1", `{"firstname":"Janet"}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, jsonRequest(http.MethodPatch, "/v1/users/u-1", `{"role":"admin"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, jsonRequest(http.MethodPatch, "/v1/users/u-1", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/users/u-2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierror.CodeUserNotFound, decodeResponse(t, rec).Error.Code)
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		opts        Options
		wantStatus  int
		wantCode    string
		wantDetails string
	}{
		{name: "api error kept", err: apierror.Forbidden(nil), wantStatus: http.StatusForbidden, wantCode: apierror.CodeForbidden},
		{name: "wrapped sentinel mapped", err: fmt.Errorf("lookup: %w", model.ErrUserNotFound), wantStatus: http.StatusNotFound, wantCode: apierror.CodeUserNotFound},
		{name: "token sentinel is unauthenticated", err: model.ErrTokenExpired, wantStatus: http.StatusUnauthorized, wantCode: apierror.CodeUnauthenticated},
		{name: "unknown error hidden in production", err: errors.New("pq: connection refused"), wantStatus: http.StatusInternalServerError, wantCode: apierror.CodeInternal},
		{name: "unknown error shown in development", err: errors.New("pq: connection refused"), opts: Options{ExposeInternalErrors: true}, wantStatus: http.StatusInternalServerError, wantCode: apierror.CodeInternal, wantDetails: "pq: connection refused"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err, tc.opts)

			require.Equal(t, tc.wantStatus, rec.Code)
			body := decodeResponse(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tc.wantCode, body.Error.Code)
			assert.Equal(t, tc.wantDetails, body.Error.Details)
		})
	}
}

func TestDocsHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewDocsHandler(false, "/v1/docs/openapi.yaml").SwaggerUI(rec, httptest.NewRequest(http.MethodGet, "/v1/docs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	NewDocsHandler(true, "/v1/docs/openapi.yaml").OpenAPI(rec, httptest.NewRequest(http.MethodGet, "/v1/docs/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/auth/refresh-tokens")
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewHealthHandler(nil).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(func(context.Context) error { return errors.New("db down") }).
		Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type mockAuditService struct {
	mock.Mock
}

func (m *mockAuditService) Query(ctx context.Context, q model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]model.AuditEntry), args.Get(1).(model.Meta), args.Error(2)
}

func TestAuditHandlerList(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := &mockAuditService{}
	svc.On("Query", mock.Anything, model.AuditQuery{Type: "auth.login_failed", From: from, Page: 1, Limit: 20}).
		Return([]model.AuditEntry{{ID: "e1", Type: "auth.login_failed"}}, model.NewMeta(1, 20, 1), nil)

	rec := httptest.NewRecorder()
	NewAuditHandler(svc, Options{}).List(rec, httptest.NewRequest(http.MethodGet, "/v1/audit?type=auth.login_failed&from=2026-01-01T00:00:00Z&limit=20", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"e1"`)
	svc.AssertExpectations(t)

	for _, query := range []string{"from=2026-01-01", "to=soon", "limit=500", "page=-1"} {
		rec := httptest.NewRecorder()
		NewAuditHandler(&mockAuditService{}, Options{}).List(rec, httptest.NewRequest(http.MethodGet, "/v1/audit?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}
