package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go-auth-api/internal/event"
	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

type TokenTTLs struct {
	Access        time.Duration
	Refresh       time.Duration
	ResetPassword time.Duration
	VerifyEmail   time.Duration
}

func (t TokenTTLs) withDefaults() TokenTTLs {
	if t.Access <= 0 {
		t.Access = 30 * time.Minute
	}
	if t.Refresh <= 0 {
		t.Refresh = 30 * 24 * time.Hour
	}
	if t.ResetPassword <= 0 {
		t.ResetPassword = 10 * time.Minute
	}
	if t.VerifyEmail <= 0 {
		t.VerifyEmail = 10 * time.Minute
	}
	return t
}

// TokenService mints tokens and keeps the revocable ones in the token store.
type TokenService struct {
	codec  TokenCodec
	tokens TokenStore
	users  UserStore
	ttls   TokenTTLs
	events EventPublisher
	now    func() time.Time
}

func NewTokenService(codec TokenCodec, tokens TokenStore, users UserStore, ttls TokenTTLs, events EventPublisher) *TokenService {
	return &TokenService{
		codec:  codec,
		tokens: tokens,
		users:  users,
		ttls:   ttls.withDefaults(),
		events: publisherOrNop(events),
		now:    time.Now,
	}
}

// DecodeAccess verifies an access token and returns its subject.
func (s *TokenService) DecodeAccess(token string) (string, error) {
	payload, err := s.codec.Verify(token, model.TokenAccess)
	if err != nil {
		return "", err
	}
	return payload.Subject, nil
}

func (s *TokenService) GenerateAuthTokens(ctx context.Context, userID string) (model.TokenPair, error) {
	now := s.now()

	access, err := s.issue(ctx, userID, model.TokenAccess, now.Add(s.ttls.Access))
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.issue(ctx, userID, model.TokenRefresh, now.Add(s.ttls.Refresh))
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{Access: access, Refresh: refresh}, nil
}

// GenerateResetPasswordToken returns the token together with the user it was
// issued for.
func (s *TokenService) GenerateResetPasswordToken(ctx context.Context, email string) (string, model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return "", model.User{}, apierror.Wrap(err, apierror.CodeUserNotFound, "no user found with this email", http.StatusNotFound)
	}
	if err != nil {
		return "", model.User{}, apierror.Internal(err)
	}

	issued, err := s.issue(ctx, user.ID, model.TokenResetPassword, s.now().Add(s.ttls.ResetPassword))
	if err != nil {
		return "", model.User{}, err
	}
	return issued.Token, user, nil
}

func (s *TokenService) GenerateVerifyEmailToken(ctx context.Context, userID string) (string, error) {
	issued, err := s.issue(ctx, userID, model.TokenVerifyEmail, s.now().Add(s.ttls.VerifyEmail))
	if err != nil {
		return "", err
	}
	return issued.Token, nil
}

// VerifyToken checks the signature and type of token and returns the stored,
// unexpired record it belongs to. Errors are model sentinels.
func (s *TokenService) VerifyToken(ctx context.Context, token string, tokenType model.TokenType) (model.TokenRecord, error) {
	payload, err := s.codec.Verify(token, tokenType)
	if err != nil {
		return model.TokenRecord{}, err
	}
	return s.tokens.FindActive(ctx, token, tokenType, payload.Subject)
}

// PurgeExpired removes stored tokens past their expiry.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.events.Publish(event.Event{Type: event.TypeTokensPurged, Payload: removed})
	}
	return removed, nil
}

// StartCleanupTicker runs PurgeExpired every interval until ctx is cancelled.
func (s *TokenService) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.PurgeExpired(ctx)
			if err != nil {
				slog.Error("expired token cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("expired tokens removed", "count", removed)
			}
		}
	}
}

func (s *TokenService) issue(ctx context.Context, userID string, tokenType model.TokenType, expiresAt time.Time) (model.IssuedToken, error) {
	signed, err := s.codec.Sign(userID, expiresAt, tokenType)
	if err != nil {
		return model.IssuedToken{}, apierror.Internal(err)
	}

	if tokenType.Persisted() {
		if _, err := s.tokens.Save(ctx, signed, userID, tokenType, expiresAt); err != nil {
			return model.IssuedToken{}, apierror.Internal(fmt.Errorf("persist %s token: %w", tokenType, err))
		}
	}

	return model.IssuedToken{Token: signed, Expires: expiresAt}, nil
}
