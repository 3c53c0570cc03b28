package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-auth-api/internal/event"
	"go-auth-api/internal/model"
	"go-auth-api/internal/repository/memory"
	"go-auth-api/internal/security"
	"go-auth-api/pkg/apierror"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendResetPasswordEmail(ctx context.Context, to string, token string) error {
	return m.Called(ctx, to, token).Error(0)
}

func (m *mockMailer) SendVerificationEmail(ctx context.Context, to string, token string) error {
	return m.Called(ctx, to, token).Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(e event.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) Types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// interleavingUserStore runs beforeUpdate ahead of the first Update it
// forwards, so another writer lands between a caller's decision and its write.
type interleavingUserStore struct {
	*memory.UserStore
	fired        atomic.Bool
	beforeUpdate func()
}

func (s *interleavingUserStore) Update(ctx context.Context, id string, patch model.UserPatch) (model.User, error) {
	if s.fired.CompareAndSwap(false, true) {
		s.beforeUpdate()
	}
	return s.UserStore.Update(ctx, id, patch)
}

type fixture struct {
	clock    *testClock
	users    *memory.UserStore
	tokens   *memory.TokenStore
	codec    *security.JWTCodec
	mailer   *mockMailer
	events   *recordingPublisher
	tokenSvc *TokenService
	userSvc  *UserService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := security.NewJWTCodec("service-test-secret", clock.Now)
	require.NoError(t, err)

	tokens := memory.NewTokenStore(clock.Now)
	users := memory.NewUserStore(tokens)
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	mailer := &mockMailer{}
	events := &recordingPublisher{}

	tokenSvc := NewTokenService(codec, tokens, users, TokenTTLs{}, events)
	tokenSvc.now = clock.Now
	userSvc := NewUserService(users, tokens, hasher, tokenSvc, mailer, events)
	userSvc.now = clock.Now
	auth := NewAuthService(users, tokens, hasher, tokenSvc, userSvc, mailer, events)

	return &fixture{
		clock:    clock,
		users:    users,
		tokens:   tokens,
		codec:    codec,
		mailer:   mailer,
		events:   events,
		tokenSvc: tokenSvc,
		userSvc:  userSvc,
		auth:     auth,
	}
}

func (f *fixture) register(t *testing.T, email string, password string) model.User {
	t.Helper()
	user, err := f.auth.Register(context.Background(), model.UserCandidate{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     email,
		Password:  password,
	})
	require.NoError(t, err)
	return user
}

func requireAPIError(t *testing.T, err error, code string, status int) *apierror.APIError {
	t.Helper()
	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr), "expected *apierror.APIError, got %v", err)
	require.Equal(t, code, apiErr.Code)
	require.Equal(t, status, apiErr.HTTPStatus)
	return apiErr
}
