package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-auth-api/internal/model"
)

const uniqueViolation = "23505"

const userColumns = `id, firstname, lastname, email, password_hash, role, gender,
	is_email_verified, account_closed, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.Gender,
		&u.IsEmailVerified, &u.AccountClosed, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, model.NormalizeEmail(email)))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// IsEmailTaken reports whether another user than excludeID owns email.
func (r *UserRepository) IsEmailTaken(ctx context.Context, email string, excludeID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id <> $2)`,
		model.NormalizeEmail(email), excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email taken: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.FirstName, u.LastName, model.NormalizeEmail(u.Email), u.PasswordHash, u.Role, u.Gender,
		u.IsEmailVerified, u.AccountClosed, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update writes only the columns set in patch; NULL parameters keep the
// stored value, so the merge happens inside the single UPDATE.
func (r *UserRepository) Update(ctx context.Context, id string, patch model.UserPatch) (model.User, error) {
	var email *string
	if patch.Email != nil {
		normalized := model.NormalizeEmail(*patch.Email)
		email = &normalized
	}
	var gender *string
	if patch.Gender != nil {
		g := string(*patch.Gender)
		gender = &g
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET firstname         = COALESCE($2, firstname),
		     lastname          = COALESCE($3, lastname),
		     email             = COALESCE($4, email),
		     password_hash     = COALESCE($5, password_hash),
		     gender            = COALESCE($6, gender),
		     is_email_verified = COALESCE($7, is_email_verified),
		     updated_at        = $8
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, patch.FirstName, patch.LastName, email, patch.PasswordHash, gender,
		patch.IsEmailVerified, patch.UpdatedAt))
	if isUniqueViolation(err) {
		return model.User{}, model.ErrEmailTaken
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, filter model.UserFilter, opts model.ListOptions) (model.UserPage, error) {
	opts = opts.Normalize()
	orderBy, err := orderClause(opts.SortBy)
	if err != nil {
		return model.UserPage{}, err
	}

	where := ""
	args := []any{}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where = fmt.Sprintf(" WHERE role = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return model.UserPage{}, fmt.Errorf("count users: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset())
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		userColumns, where, orderBy, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return model.UserPage{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, opts.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return model.UserPage{}, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return model.UserPage{}, fmt.Errorf("iterate users: %w", err)
	}

	return model.UserPage{Results: users, Page: opts.Page, Limit: opts.Limit, TotalResults: total}, nil
}

// orderClause only ever emits whitelisted column names.
func orderClause(sortBy string) (string, error) {
	fields, err := model.ParseSortBy(sortBy)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		parts = append(parts, model.SortableUserFields[f.Field]+" "+dir)
	}
	// Stable pagination for ties.
	parts = append(parts, "created_at ASC", "id ASC")
	return strings.Join(parts, ", "), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
