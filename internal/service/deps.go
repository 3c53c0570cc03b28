package service

import (
	"context"
	"errors"
	"time"

	"go-auth-api/internal/event"
	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	IsEmailTaken(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, u model.User) error
	// Update applies patch to the stored row in a single write and returns
	// the row as stored afterwards.
	Update(ctx context.Context, id string, patch model.UserPatch) (model.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter model.UserFilter, opts model.ListOptions) (model.UserPage, error)
}

type TokenStore interface {
	Save(ctx context.Context, token string, userID string, tokenType model.TokenType, expiresAt time.Time) (model.TokenRecord, error)
	FindActive(ctx context.Context, token string, tokenType model.TokenType, userID string) (model.TokenRecord, error)
	FindByToken(ctx context.Context, token string, tokenType model.TokenType) (model.TokenRecord, error)
	Consume(ctx context.Context, record model.TokenRecord) error
	PurgeAllOfType(ctx context.Context, userID string, tokenType model.TokenType) error
	DeleteAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, hash string) (bool, error)
}

type TokenCodec interface {
	Sign(subject string, expiresAt time.Time, tokenType model.TokenType) (string, error)
	Verify(token string, expected model.TokenType) (model.TokenPayload, error)
}

type Mailer interface {
	SendResetPasswordEmail(ctx context.Context, to string, token string) error
	SendVerificationEmail(ctx context.Context, to string, token string) error
}

type EventPublisher interface {
	Publish(e event.Event)
}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return event.Nop{}
	}
	return p
}

// isTokenRejection reports whether err means the presented token is not
// acceptable, as opposed to the store failing.
func isTokenRejection(err error) bool {
	return errors.Is(err, model.ErrTokenNotFound) ||
		errors.Is(err, model.ErrTokenExpired) ||
		errors.Is(err, model.ErrInvalidToken) ||
		errors.Is(err, model.ErrTokenTypeMismatch)
}

// userStoreError translates repository sentinels to API errors.
func userStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrUserNotFound):
		return apierror.UserNotFound(err)
	case errors.Is(err, model.ErrEmailTaken):
		return apierror.EmailTaken(err)
	default:
		return apierror.Internal(err)
	}
}
