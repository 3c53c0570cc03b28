package model

import "time"

type TokenType string

const (
	TokenAccess        TokenType = "access"
	TokenRefresh       TokenType = "refresh"
	TokenResetPassword TokenType = "resetPassword"
	TokenVerifyEmail   TokenType = "verifyEmail"
)

// Persisted reports whether tokens of this type are mirrored in the token store.
// Access tokens are stateless.
func (t TokenType) Persisted() bool {
	return t == TokenRefresh || t == TokenResetPassword || t == TokenVerifyEmail
}

// TokenPayload is the decoded content of a signed token.
type TokenPayload struct {
	ID        string
	Subject   string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenRecord is a stored refresh, reset-password or verify-email token.
type TokenRecord struct {
	ID        string
	Token     string
	UserID    string
	Type      TokenType
	ExpiresAt time.Time
	CreatedAt time.Time
}

type IssuedToken struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type TokenPair struct {
	Access  IssuedToken `json:"access"`
	Refresh IssuedToken `json:"refresh"`
}

type AuthResult struct {
	User   UserView  `json:"user"`
	Tokens TokenPair `json:"tokens"`
}
