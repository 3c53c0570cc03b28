package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-auth-api/internal/model"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Type model.TokenType `json:"type"`
}

// JWTCodec signs and decodes HS256 tokens. It never touches storage.
type JWTCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewJWTCodec builds a codec around secret. now may be nil.
func NewJWTCodec(secret string, now func() time.Time) (*JWTCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if now == nil {
		now = time.Now
	}

	return &JWTCodec{
		secret: []byte(secret),
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

func (c *JWTCodec) Sign(subject string, expiresAt time.Time, tokenType model.TokenType) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type: tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// Decode returns ErrTokenExpired for an expired but otherwise valid token and
// ErrInvalidToken for every other anomaly.
func (c *JWTCodec) Decode(tokenString string) (model.TokenPayload, error) {
	claims := &tokenClaims{}
	parsed, err := c.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return model.TokenPayload{}, fmt.Errorf("%w: %v", model.ErrTokenExpired, err)
		}
		return model.TokenPayload{}, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return model.TokenPayload{}, model.ErrInvalidToken
	}

	if claims.Subject == "" || claims.Type == "" || claims.ExpiresAt == nil {
		return model.TokenPayload{}, fmt.Errorf("%w: missing required claims", model.ErrInvalidToken)
	}

	payload := model.TokenPayload{
		ID:        claims.ID,
		Subject:   claims.Subject,
		Type:      claims.Type,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	return payload, nil
}

// Verify decodes tokenString and requires its type to be expected.
func (c *JWTCodec) Verify(tokenString string, expected model.TokenType) (model.TokenPayload, error) {
	payload, err := c.Decode(tokenString)
	if err != nil {
		return model.TokenPayload{}, err
	}
	if payload.Type != expected {
		return model.TokenPayload{}, fmt.Errorf("%w: want %s, got %s", model.ErrTokenTypeMismatch, expected, payload.Type)
	}
	return payload, nil
}
