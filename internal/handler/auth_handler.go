package handler

import (
	"context"
	"net/http"

	"go-auth-api/internal/middleware"
	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

type authService interface {
	Register(ctx context.Context, candidate model.UserCandidate) (model.User, error)
	Login(ctx context.Context, email string, password string) (model.User, error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshAuth(ctx context.Context, refreshToken string) (model.TokenPair, error)
	GenerateAuthTokens(ctx context.Context, userID string) (model.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPasswordWithToken(ctx context.Context, token string, newPassword string) error
	SendVerificationEmail(ctx context.Context, user model.User) error
	VerifyEmail(ctx context.Context, token string) error
}

type AuthHandler struct {
	service authService
	opts    Options
}

func NewAuthHandler(service authService, opts Options) *AuthHandler {
	return &AuthHandler{service: service, opts: opts}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := bind(r, w, &payload); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	user, err := h.service.Register(r.Context(), payload.Candidate())
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	tokens, err := h.service.GenerateAuthTokens(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeSuccess(w, http.StatusCreated, model.AuthResult{User: user.View(), Tokens: tokens}, nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := bind(r, w, &payload); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	user, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	tokens, err := h.service.GenerateAuthTokens(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuthResult{User: user.View(), Tokens: tokens}, nil)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshTokenRequest
	if err := bind(r, w, &payload); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	if err := h.service.Logout(r.Context(), payload.RefreshToken); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeNoContent(w)
}

func (h *AuthHandler) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshTokenRequest
	if err := bind(r, w, &payload); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	tokens, err := h.service.RefreshAuth(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.ForgotPasswordRequest
	if err := bind(r, w, &payload); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), payload.Email); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeNoContent(w)
}

// ResetPassword takes the token from the query string and the new password
// from the body.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.ResetPasswordRequest
	if err := decodeJSON(r, w, &payload); err != nil {
		writeError(w, r, err, h.opts)
		return
	}
	payload.Token = r.URL.Query().Get("token")
	if err := validate(payload); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	if err := h.service.ResetPasswordWithToken(r.Context(), payload.Token, payload.Password); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeNoContent(w)
}

func (h *AuthHandler) SendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, apierror.Unauthenticated(model.ErrUnauthenticated), h.opts)
		return
	}

	if err := h.service.SendVerificationEmail(r.Context(), actor); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeNoContent(w)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	payload := model.VerifyEmailRequest{Token: r.URL.Query().Get("token")}
	if err := validate(payload); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), payload.Token); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeNoContent(w)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, apierror.Unauthenticated(model.ErrUnauthenticated), h.opts)
		return
	}

	writeSuccess(w, http.StatusOK, actor.View(), nil)
}
