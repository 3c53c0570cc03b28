package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"go-auth-api/internal/event"
	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

type AuthService struct {
	users    UserStore
	tokens   TokenStore
	hasher   PasswordHasher
	tokenSvc *TokenService
	userSvc  *UserService
	mailer   Mailer
	events   EventPublisher

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users UserStore, tokens TokenStore, hasher PasswordHasher, tokenSvc *TokenService, userSvc *UserService, mailer Mailer, events EventPublisher) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		tokenSvc: tokenSvc,
		userSvc:  userSvc,
		mailer:   mailer,
		events:   publisherOrNop(events),
	}
}

// Register creates a self-service account. Role is always user and both
// account flags start false whatever the candidate carries.
func (s *AuthService) Register(ctx context.Context, candidate model.UserCandidate) (model.User, error) {
	candidate.Role = model.RoleUser

	user, err := s.userSvc.insert(ctx, candidate)
	if err != nil {
		return model.User{}, err
	}

	s.events.Publish(event.Event{Type: event.TypeUserRegistered, ActorID: user.ID})
	return user, nil
}

// Login fails with the same error for an unknown email and a wrong password.
func (s *AuthService) Login(ctx context.Context, email string, password string) (model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		s.burnCompare(password)
		s.events.Publish(event.Event{Type: event.TypeLoginFailed})
		return model.User{}, apierror.InvalidCredentials(err)
	}
	if err != nil {
		return model.User{}, apierror.Internal(err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		slog.ErrorContext(ctx, "stored password hash is unreadable", "user_id", user.ID, "error", err)
		return model.User{}, apierror.Wrap(err, apierror.CodeCorruptCredential, "unexpected server error", http.StatusInternalServerError)
	}
	if !ok {
		s.events.Publish(event.Event{Type: event.TypeLoginFailed, ActorID: user.ID})
		return model.User{}, apierror.InvalidCredentials(model.ErrInvalidCredentials)
	}

	s.events.Publish(event.Event{Type: event.TypeLoginSucceeded, ActorID: user.ID})
	return user, nil
}

// burnCompare spends one bcrypt comparison so an unknown email costs as much
// as a wrong password.
func (s *AuthService) burnCompare(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("no-such-account-0")
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	record, err := s.tokens.FindByToken(ctx, refreshToken, model.TokenRefresh)
	if errors.Is(err, model.ErrTokenNotFound) {
		return apierror.TokenNotFound(err)
	}
	if err != nil {
		return apierror.Internal(err)
	}

	if err := s.tokens.Consume(ctx, record); err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			return apierror.TokenNotFound(err)
		}
		return apierror.Internal(err)
	}

	s.events.Publish(event.Event{Type: event.TypeLoggedOut, ActorID: record.UserID})
	return nil
}

// RefreshAuth rotates a refresh token. The presented token is consumed
// before the new pair is minted, so of two concurrent calls with the same
// token at most one succeeds.
func (s *AuthService) RefreshAuth(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	record, err := s.tokenSvc.VerifyToken(ctx, refreshToken, model.TokenRefresh)
	if err != nil {
		return model.TokenPair{}, s.rejectRefresh(err)
	}

	if _, err := s.users.FindByID(ctx, record.UserID); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.TokenPair{}, s.rejectRefresh(model.ErrTokenNotFound)
		}
		return model.TokenPair{}, apierror.Internal(err)
	}

	if err := s.tokens.Consume(ctx, record); err != nil {
		return model.TokenPair{}, s.rejectRefresh(err)
	}

	pair, err := s.tokenSvc.GenerateAuthTokens(ctx, record.UserID)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.events.Publish(event.Event{Type: event.TypeTokensRefreshed, ActorID: record.UserID})
	return pair, nil
}

func (s *AuthService) rejectRefresh(err error) error {
	if !isTokenRejection(err) {
		return apierror.Internal(err)
	}
	s.events.Publish(event.Event{Type: event.TypeRefreshRejected})
	return apierror.Unauthenticated(err)
}

func (s *AuthService) GenerateAuthTokens(ctx context.Context, userID string) (model.TokenPair, error) {
	return s.tokenSvc.GenerateAuthTokens(ctx, userID)
}

func (s *AuthService) ResetPassword(ctx context.Context, userID string, newPassword string) error {
	if _, err := s.userSvc.UpdateUserByID(ctx, userID, model.UserUpdate{Password: &newPassword}); err != nil {
		return passwordResetFailed(err)
	}
	return nil
}

// ResetPasswordWithToken consumes a reset-password token, sets the new
// password and revokes the user's outstanding reset and refresh tokens.
func (s *AuthService) ResetPasswordWithToken(ctx context.Context, token string, newPassword string) error {
	record, err := s.tokenSvc.VerifyToken(ctx, token, model.TokenResetPassword)
	if err != nil {
		if isTokenRejection(err) {
			return passwordResetFailed(err)
		}
		return apierror.Internal(err)
	}

	if err := s.tokens.Consume(ctx, record); err != nil {
		if isTokenRejection(err) {
			return passwordResetFailed(err)
		}
		return apierror.Internal(err)
	}

	if err := s.ResetPassword(ctx, record.UserID, newPassword); err != nil {
		return err
	}

	for _, t := range []model.TokenType{model.TokenResetPassword, model.TokenRefresh} {
		if err := s.tokens.PurgeAllOfType(ctx, record.UserID, t); err != nil {
			return apierror.Internal(err)
		}
	}

	s.events.Publish(event.Event{Type: event.TypePasswordReset, ActorID: record.UserID})
	return nil
}

func passwordResetFailed(cause error) error {
	return apierror.Wrap(cause, apierror.CodePasswordResetFailed, "password reset failed", http.StatusUnauthorized)
}

func (s *AuthService) GenerateVerifyEmailToken(ctx context.Context, userID string) (string, error) {
	return s.tokenSvc.GenerateVerifyEmailToken(ctx, userID)
}

// VerifyEmail marks the token owner verified and drops every verify-email
// token they hold.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	record, err := s.tokenSvc.VerifyToken(ctx, token, model.TokenVerifyEmail)
	if err != nil {
		if isTokenRejection(err) {
			return apierror.Unauthenticated(err)
		}
		return apierror.Internal(err)
	}

	verified := true
	if _, err := s.userSvc.UpdateUserByID(ctx, record.UserID, model.UserUpdate{IsEmailVerified: &verified}); err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) && apiErr.Code == apierror.CodeUserNotFound {
			return apierror.Unauthenticated(err)
		}
		return err
	}

	if err := s.tokens.PurgeAllOfType(ctx, record.UserID, model.TokenVerifyEmail); err != nil {
		return apierror.Internal(err)
	}

	s.events.Publish(event.Event{Type: event.TypeEmailVerified, ActorID: record.UserID})
	return nil
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	token, user, err := s.tokenSvc.GenerateResetPasswordToken(ctx, email)
	if err != nil {
		return err
	}

	if err := s.mailer.SendResetPasswordEmail(ctx, user.Email, token); err != nil {
		return apierror.Internal(err)
	}
	return nil
}

func (s *AuthService) SendVerificationEmail(ctx context.Context, user model.User) error {
	token, err := s.GenerateVerifyEmailToken(ctx, user.ID)
	if err != nil {
		return err
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, token); err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// Authenticate resolves a bearer access token to its user. Every failure is
// Unauthenticated except a store outage.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (model.User, error) {
	userID, err := s.tokenSvc.DecodeAccess(accessToken)
	if err != nil {
		return model.User{}, apierror.Unauthenticated(err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.Unauthenticated(err)
	}
	if err != nil {
		return model.User{}, apierror.Internal(err)
	}
	return user, nil
}
