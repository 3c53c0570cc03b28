package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-auth-api/internal/model"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Save(ctx context.Context, token string, userID string, tokenType model.TokenType, expiresAt time.Time) (model.TokenRecord, error) {
	record := model.TokenRecord{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		Type:      tokenType,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO tokens (id, token, user_id, type, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.Token, record.UserID, record.Type, record.ExpiresAt, record.CreatedAt)
	if err != nil {
		return model.TokenRecord{}, fmt.Errorf("save %s token: %w", tokenType, err)
	}
	return record, nil
}

func (r *TokenRepository) FindActive(ctx context.Context, token string, tokenType model.TokenType, userID string) (model.TokenRecord, error) {
	return r.findOne(ctx,
		`SELECT id, token, user_id, type, expires_at, created_at FROM tokens
		 WHERE token = $1 AND type = $2 AND user_id = $3 AND expires_at > now()`,
		token, tokenType, userID)
}

func (r *TokenRepository) FindByToken(ctx context.Context, token string, tokenType model.TokenType) (model.TokenRecord, error) {
	return r.findOne(ctx,
		`SELECT id, token, user_id, type, expires_at, created_at FROM tokens
		 WHERE token = $1 AND type = $2`,
		token, tokenType)
}

func (r *TokenRepository) findOne(ctx context.Context, query string, args ...any) (model.TokenRecord, error) {
	var rec model.TokenRecord
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&rec.ID, &rec.Token, &rec.UserID, &rec.Type, &rec.ExpiresAt, &rec.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.TokenRecord{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.TokenRecord{}, fmt.Errorf("find token: %w", err)
	}
	return rec, nil
}

// Consume deletes the record. Of two concurrent callers only one sees a
// deleted row; the other gets ErrTokenNotFound.
func (r *TokenRepository) Consume(ctx context.Context, record model.TokenRecord) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE id = $1`, record.ID)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTokenNotFound
	}
	return nil
}

func (r *TokenRepository) PurgeAllOfType(ctx context.Context, userID string, tokenType model.TokenType) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE user_id = $1 AND type = $2`, userID, tokenType)
	if err != nil {
		return fmt.Errorf("purge %s tokens: %w", tokenType, err)
	}
	return nil
}

func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete tokens for user: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
