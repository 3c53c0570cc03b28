package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go-auth-api/internal/event"
	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

type UserService struct {
	users    UserStore
	tokens   TokenStore
	hasher   PasswordHasher
	tokenSvc *TokenService
	mailer   Mailer
	events   EventPublisher
	now      func() time.Time
}

func NewUserService(users UserStore, tokens TokenStore, hasher PasswordHasher, tokenSvc *TokenService, mailer Mailer, events EventPublisher) *UserService {
	return &UserService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		tokenSvc: tokenSvc,
		mailer:   mailer,
		events:   publisherOrNop(events),
		now:      time.Now,
	}
}

// newUser builds a persisted-ready user from candidate. The password is hashed
// here and nowhere else on the create path.
func newUser(hasher PasswordHasher, candidate model.UserCandidate, now time.Time) (model.User, error) {
	hash, err := hasher.Hash(candidate.Password)
	if err != nil {
		return model.User{}, err
	}

	role := candidate.Role
	if !role.Valid() {
		role = model.RoleUser
	}

	now = now.UTC()
	return model.User{
		ID:           uuid.NewString(),
		FirstName:    candidate.FirstName,
		LastName:     candidate.LastName,
		Email:        model.NormalizeEmail(candidate.Email),
		PasswordHash: hash,
		Role:         role,
		Gender:       candidate.Gender,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// insert checks email uniqueness, hashes and stores candidate.
func (s *UserService) insert(ctx context.Context, candidate model.UserCandidate) (model.User, error) {
	taken, err := s.users.IsEmailTaken(ctx, candidate.Email, "")
	if err != nil {
		return model.User{}, apierror.Internal(err)
	}
	if taken {
		return model.User{}, apierror.EmailTaken(model.ErrEmailTaken)
	}

	user, err := newUser(s.hasher, candidate, s.now())
	if err != nil {
		return model.User{}, apierror.Internal(err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return model.User{}, userStoreError(err)
	}
	return user, nil
}

// CreateUser stores an admin-provisioned account with a random password and
// mails a reset-password link so the owner picks their own.
func (s *UserService) CreateUser(ctx context.Context, candidate model.UserCandidate) (model.User, error) {
	if !candidate.Role.Valid() {
		return model.User{}, apierror.Validation("role: must be user or admin")
	}

	temp, err := temporaryPassword()
	if err != nil {
		return model.User{}, apierror.Internal(err)
	}
	candidate.Password = temp

	user, err := s.insert(ctx, candidate)
	if err != nil {
		return model.User{}, err
	}
	s.events.Publish(event.Event{Type: event.TypeUserCreated, ActorID: user.ID})

	if s.tokenSvc != nil && s.mailer != nil {
		token, _, err := s.tokenSvc.GenerateResetPasswordToken(ctx, user.Email)
		if err == nil {
			err = s.mailer.SendResetPasswordEmail(ctx, user.Email, token)
		}
		if err != nil {
			slog.WarnContext(ctx, "account created but password setup email failed", "user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, filter model.UserFilter, opts model.ListOptions) (model.UserPage, error) {
	page, err := s.users.List(ctx, filter, opts)
	if errors.Is(err, model.ErrInvalidInput) {
		return model.UserPage{}, apierror.Validation(err.Error())
	}
	if err != nil {
		return model.UserPage{}, apierror.Internal(err)
	}
	return page, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.User{}, userStoreError(err)
	}
	return user, nil
}

// UpdateUserByID applies the non-nil fields of update. Only those columns are
// written, so concurrent updates of other fields are never overwritten. Role
// is never touched.
func (s *UserService) UpdateUserByID(ctx context.Context, id string, update model.UserUpdate) (model.User, error) {
	patch := model.UserPatch{
		FirstName:       update.FirstName,
		LastName:        update.LastName,
		Gender:          update.Gender,
		IsEmailVerified: update.IsEmailVerified,
		UpdatedAt:       s.now().UTC(),
	}

	if update.Email != nil {
		taken, err := s.users.IsEmailTaken(ctx, *update.Email, id)
		if err != nil {
			return model.User{}, apierror.Internal(err)
		}
		if taken {
			return model.User{}, apierror.EmailTaken(model.ErrEmailTaken)
		}
		email := model.NormalizeEmail(*update.Email)
		patch.Email = &email
	}
	if update.Password != nil {
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return model.User{}, apierror.Internal(err)
		}
		patch.PasswordHash = &hash
	}

	user, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return model.User{}, userStoreError(err)
	}
	s.events.Publish(event.Event{Type: event.TypeUserUpdated, ActorID: user.ID})
	return user, nil
}

func (s *UserService) DeleteUserByID(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return userStoreError(err)
	}
	if err := s.tokens.DeleteAllForUser(ctx, id); err != nil {
		return apierror.Internal(err)
	}
	s.events.Publish(event.Event{Type: event.TypeUserDeleted, ActorID: id})
	return nil
}

// temporaryPassword returns a random password nobody knows. It always holds a
// letter and a digit so it satisfies the password rules.
func temporaryPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate temporary password: %w", err)
	}
	return "t0" + base64.RawURLEncoding.EncodeToString(buf), nil
}
