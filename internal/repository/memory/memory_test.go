package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-api/internal/model"
)

func TestTokenStore(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ctx := context.Background()

	t.Run("find active honours owner type and expiry", func(t *testing.T) {
		store := NewTokenStore(clock)
		_, err := store.Save(ctx, "live", "u1", model.TokenRefresh, now.Add(time.Minute))
		require.NoError(t, err)
		_, err = store.Save(ctx, "stale", "u1", model.TokenRefresh, now)
		require.NoError(t, err)

		_, err = store.FindActive(ctx, "live", model.TokenRefresh, "u1")
		assert.NoError(t, err)
		_, err = store.FindActive(ctx, "live", model.TokenRefresh, "u2")
		assert.ErrorIs(t, err, model.ErrTokenNotFound)
		_, err = store.FindActive(ctx, "live", model.TokenVerifyEmail, "u1")
		assert.ErrorIs(t, err, model.ErrTokenNotFound)
		_, err = store.FindActive(ctx, "stale", model.TokenRefresh, "u1")
		assert.ErrorIs(t, err, model.ErrTokenNotFound)
	})

	t.Run("consume succeeds for exactly one concurrent caller", func(t *testing.T) {
		store := NewTokenStore(clock)
		rec, err := store.Save(ctx, "once", "u1", model.TokenRefresh, now.Add(time.Hour))
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if store.Consume(ctx, rec) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("duplicate token value is refused", func(t *testing.T) {
		store := NewTokenStore(clock)
		_, err := store.Save(ctx, "dup", "u1", model.TokenRefresh, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = store.Save(ctx, "dup", "u1", model.TokenRefresh, now.Add(time.Hour))
		assert.Error(t, err)
	})

	t.Run("purge and expiry sweep", func(t *testing.T) {
		store := NewTokenStore(clock)
		for _, tok := range []string{"a", "b"} {
			_, err := store.Save(ctx, tok, "u1", model.TokenVerifyEmail, now.Add(time.Hour))
			require.NoError(t, err)
		}
		_, err := store.Save(ctx, "c", "u1", model.TokenRefresh, now.Add(-time.Second))
		require.NoError(t, err)

		require.NoError(t, store.PurgeAllOfType(ctx, "u1", model.TokenVerifyEmail))
		assert.Equal(t, 0, store.Count("u1", model.TokenVerifyEmail))

		removed, err := store.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)
		assert.Equal(t, 0, store.Count("u1", model.TokenRefresh))
	})
}

func TestUserStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens := NewTokenStore(func() time.Time { return base })
	users := NewUserStore(tokens)

	for i, email := range []string{"b@example.com", "a@example.com", "c@example.com"} {
		role := model.RoleUser
		if i == 2 {
			role = model.RoleAdmin
		}
		require.NoError(t, users.Create(ctx, model.User{
			ID:        email,
			FirstName: string(rune('z' - i)),
			Email:     email,
			Role:      role,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	t.Run("email is unique ignoring case", func(t *testing.T) {
		err := users.Create(ctx, model.User{ID: "x", Email: "A@Example.com"})
		assert.ErrorIs(t, err, model.ErrEmailTaken)

		taken, err := users.IsEmailTaken(ctx, "a@example.com", "a@example.com")
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("list sorts filters and pages", func(t *testing.T) {
		page, err := users.List(ctx, model.UserFilter{}, model.ListOptions{})
		require.NoError(t, err)
		require.Len(t, page.Results, 3)
		assert.Equal(t, "b@example.com", page.Results[0].Email)

		page, err = users.List(ctx, model.UserFilter{}, model.ListOptions{SortBy: "firstname", Limit: 1, Page: 2})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, "a@example.com", page.Results[0].Email)
		assert.Equal(t, 3, page.TotalPages())

		page, err = users.List(ctx, model.UserFilter{Role: model.RoleAdmin}, model.ListOptions{})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, "c@example.com", page.Results[0].Email)

		page, err = users.List(ctx, model.UserFilter{}, model.ListOptions{Page: 9})
		require.NoError(t, err)
		assert.Empty(t, page.Results)
		assert.Equal(t, 3, page.TotalResults)
	})

	t.Run("update writes only patched fields", func(t *testing.T) {
		hash, verified := "new-hash", true
		_, err := users.Update(ctx, "a@example.com", model.UserPatch{PasswordHash: &hash, UpdatedAt: base})
		require.NoError(t, err)
		updated, err := users.Update(ctx, "a@example.com", model.UserPatch{IsEmailVerified: &verified, UpdatedAt: base.Add(time.Hour)})
		require.NoError(t, err)

		assert.Equal(t, "new-hash", updated.PasswordHash)
		assert.True(t, updated.IsEmailVerified)
		assert.Equal(t, model.RoleUser, updated.Role)
		assert.Equal(t, base.Add(time.Hour), updated.UpdatedAt)

		taken := "C@example.com"
		_, err = users.Update(ctx, "a@example.com", model.UserPatch{Email: &taken})
		assert.ErrorIs(t, err, model.ErrEmailTaken)
		_, err = users.Update(ctx, "missing", model.UserPatch{PasswordHash: &hash})
		assert.ErrorIs(t, err, model.ErrUserNotFound)
	})

	t.Run("concurrent patches of different fields all land", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if i%2 == 0 {
					name := "Ada"
					_, _ = users.Update(ctx, "c@example.com", model.UserPatch{FirstName: &name})
					return
				}
				hash := "rotated"
				_, _ = users.Update(ctx, "c@example.com", model.UserPatch{PasswordHash: &hash})
			}()
		}
		wg.Wait()

		stored, err := users.FindByID(ctx, "c@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Ada", stored.FirstName)
		assert.Equal(t, "rotated", stored.PasswordHash)
	})

	t.Run("delete drops the user's tokens", func(t *testing.T) {
		_, err := tokens.Save(ctx, "t", "b@example.com", model.TokenRefresh, base.Add(time.Hour))
		require.NoError(t, err)

		require.NoError(t, users.Delete(ctx, "b@example.com"))
		assert.Equal(t, 0, tokens.Count("b@example.com", model.TokenRefresh))
		assert.ErrorIs(t, users.Delete(ctx, "b@example.com"), model.ErrUserNotFound)
	})
}

func TestAuditStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store := NewAuditStore()

	for i, e := range []model.AuditEntry{
		{ID: "a", Type: "auth.login_failed", SubjectID: "u1", OccurredAt: base},
		{ID: "b", Type: "auth.login_succeeded", SubjectID: "u1", OccurredAt: base.Add(time.Minute)},
		{ID: "c", Type: "auth.login_failed", SubjectID: "u2", OccurredAt: base.Add(2 * time.Minute)},
		{ID: "a", Type: "duplicate", OccurredAt: base.Add(time.Hour)},
	} {
		require.NoError(t, store.Append(ctx, e), "entry %d", i)
	}

	t.Run("newest first and duplicates ignored", func(t *testing.T) {
		entries, total, err := store.Query(ctx, model.AuditQuery{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, entries, 3)
		assert.Equal(t, []string{"c", "b", "a"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
	})

	t.Run("filters combine", func(t *testing.T) {
		entries, total, err := store.Query(ctx, model.AuditQuery{Type: "AUTH.LOGIN_FAILED", SubjectID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "a", entries[0].ID)

		_, total, err = store.Query(ctx, model.AuditQuery{From: base.Add(30 * time.Second), To: base.Add(90 * time.Second)})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("pages", func(t *testing.T) {
		entries, total, err := store.Query(ctx, model.AuditQuery{Limit: 2, Page: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, entries, 1)
		assert.Equal(t, "a", entries[0].ID)
	})
}
