package event

import "time"

type Type string

const (
	TypeUserRegistered  Type = "user.registered"
	TypeUserCreated     Type = "user.created"
	TypeUserUpdated     Type = "user.updated"
	TypeUserDeleted     Type = "user.deleted"
	TypeLoginSucceeded  Type = "auth.login_succeeded"
	TypeLoginFailed     Type = "auth.login_failed"
	TypeLoggedOut       Type = "auth.logged_out"
	TypeTokensRefreshed Type = "auth.tokens_refreshed"
	TypeRefreshRejected Type = "auth.refresh_rejected"
	TypePasswordReset   Type = "auth.password_reset"
	TypeEmailVerified   Type = "auth.email_verified"
	TypeAccessDenied    Type = "auth.access_denied"
	TypeTokensPurged    Type = "token.expired_purged"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"` // user the event is about
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
