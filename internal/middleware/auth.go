package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-auth-api/internal/event"
	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

type authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (model.User, error)
}

type eventPublisher interface {
	Publish(e event.Event)
}

// Guard decides whether actor may proceed with r. A non-nil error denies.
type Guard func(r *http.Request, actor model.User) error

type contextKey string

const actorContextKey contextKey = "actor"

type AuthMiddleware struct {
	auth          authenticator
	events        eventPublisher
	exposeDetails bool
}

// NewAuthMiddleware builds the guard. exposeDetails returns the cause of
// server-side failures to the client and is meant for development only.
func NewAuthMiddleware(auth authenticator, events eventPublisher, exposeDetails bool) *AuthMiddleware {
	if events == nil {
		events = event.Nop{}
	}
	return &AuthMiddleware{auth: auth, events: events, exposeDetails: exposeDetails}
}

// Authorize requires a valid bearer access token for an existing user, then
// runs guards in order. The acting user is attached to the request context.
func (m *AuthMiddleware) Authorize(guards ...Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, apierror.Unauthenticated(model.ErrUnauthenticated))
				return
			}

			actor, err := m.auth.Authenticate(r.Context(), token)
			if err != nil {
				failRequest(w, r, err, m.exposeDetails)
				return
			}

			for _, guard := range guards {
				if err := guard(r, actor); err != nil {
					m.events.Publish(event.Event{Type: event.TypeAccessDenied, ActorID: actor.ID, Payload: r.URL.Path})
					failRequest(w, r, err, m.exposeDetails)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRoles admits actors holding one of roles. No roles admits anyone
// authenticated.
func RequireRoles(roles ...model.Role) Guard {
	return func(_ *http.Request, actor model.User) error {
		if len(roles) == 0 || slices.Contains(roles, actor.Role) {
			return nil
		}
		return apierror.Forbidden(model.ErrForbidden)
	}
}

// SelfOrAdmin admits admins and actors whose id equals the route parameter
// param. It must run where chi has already resolved route parameters, i.e.
// as inline middleware on the route.
func SelfOrAdmin(param string) Guard {
	return func(r *http.Request, actor model.User) error {
		if actor.Role == model.RoleAdmin {
			return nil
		}
		if target := chi.URLParam(r, param); target != "" && target == actor.ID {
			return nil
		}
		return apierror.Forbidden(model.ErrForbidden)
	}
}

func WithActor(ctx context.Context, actor model.User) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

func ActorFromContext(ctx context.Context) (model.User, bool) {
	actor, ok := ctx.Value(actorContextKey).(model.User)
	return actor, ok
}

func ActorIDFromContext(ctx context.Context) (string, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return "", false
	}
	return actor.ID, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
