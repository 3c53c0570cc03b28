// Package memory holds process-local user and token stores with the same
// contracts as the PostgreSQL repositories. Used by STORE_DRIVER=memory and
// by tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-auth-api/internal/model"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]model.User
	// tokens is purged when a user is deleted, mirroring ON DELETE CASCADE.
	tokens *TokenStore
}

func NewUserStore(tokens *TokenStore) *UserStore {
	return &UserStore{users: map[string]model.User{}, tokens: tokens}
}

func (s *UserStore) FindByID(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = model.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *UserStore) IsEmailTaken(_ context.Context, email string, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.emailTakenLocked(model.NormalizeEmail(email), excludeID), nil
}

func (s *UserStore) emailTakenLocked(email string, excludeID string) bool {
	for id, u := range s.users {
		if id != excludeID && u.Email == email {
			return true
		}
	}
	return false
}

func (s *UserStore) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Email = model.NormalizeEmail(u.Email)
	if s.emailTakenLocked(u.Email, u.ID) {
		return model.ErrEmailTaken
	}
	s.users[u.ID] = u
	return nil
}

// Update merges patch into the stored user under the write lock.
func (s *UserStore) Update(_ context.Context, id string, patch model.UserPatch) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}

	updated := patch.Apply(existing)
	if patch.Email != nil && s.emailTakenLocked(updated.Email, id) {
		return model.User{}, model.ErrEmailTaken
	}
	s.users[id] = updated
	return updated, nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.users[id]
	delete(s.users, id)
	s.mu.Unlock()

	if !ok {
		return model.ErrUserNotFound
	}
	if s.tokens != nil {
		return s.tokens.DeleteAllForUser(ctx, id)
	}
	return nil
}

func (s *UserStore) List(_ context.Context, filter model.UserFilter, opts model.ListOptions) (model.UserPage, error) {
	opts = opts.Normalize()
	fields, err := model.ParseSortBy(opts.SortBy)
	if err != nil {
		return model.UserPage{}, err
	}

	s.mu.RLock()
	matched := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		matched = append(matched, u)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b model.User) int {
		for _, f := range fields {
			c := strings.Compare(sortKey(a, f.Field), sortKey(b, f.Field))
			if f.Field == "createdAt" || f.Field == "updatedAt" {
				c = a.CreatedAt.Compare(b.CreatedAt)
				if f.Field == "updatedAt" {
					c = a.UpdatedAt.Compare(b.UpdatedAt)
				}
			}
			if f.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
	})

	page := model.UserPage{Page: opts.Page, Limit: opts.Limit, TotalResults: len(matched)}
	start := min(opts.Offset(), len(matched))
	end := min(start+opts.Limit, len(matched))
	page.Results = matched[start:end]
	return page, nil
}

func sortKey(u model.User, field string) string {
	switch field {
	case "firstname":
		return u.FirstName
	case "lastname":
		return u.LastName
	case "email":
		return u.Email
	case "role":
		return string(u.Role)
	case "gender":
		return string(u.Gender)
	}
	return ""
}

type TokenStore struct {
	mu      sync.Mutex
	records map[string]model.TokenRecord
	now     func() time.Time
}

// NewTokenStore builds an empty store. now may be nil.
func NewTokenStore(now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{records: map[string]model.TokenRecord{}, now: now}
}

func (s *TokenStore) Save(_ context.Context, token string, userID string, tokenType model.TokenType, expiresAt time.Time) (model.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.Token == token {
			return model.TokenRecord{}, model.ErrInvalidInput
		}
	}

	rec := model.TokenRecord{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		Type:      tokenType,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *TokenStore) FindActive(_ context.Context, token string, tokenType model.TokenType, userID string) (model.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, rec := range s.records {
		if rec.Token == token && rec.Type == tokenType && rec.UserID == userID && rec.ExpiresAt.After(now) {
			return rec, nil
		}
	}
	return model.TokenRecord{}, model.ErrTokenNotFound
}

func (s *TokenStore) FindByToken(_ context.Context, token string, tokenType model.TokenType) (model.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.Token == token && rec.Type == tokenType {
			return rec, nil
		}
	}
	return model.TokenRecord{}, model.ErrTokenNotFound
}

func (s *TokenStore) Consume(_ context.Context, record model.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; !ok {
		return model.ErrTokenNotFound
	}
	delete(s.records, record.ID)
	return nil
}

func (s *TokenStore) PurgeAllOfType(_ context.Context, userID string, tokenType model.TokenType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.records {
		if rec.UserID == userID && rec.Type == tokenType {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *TokenStore) DeleteAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.records {
		if rec.UserID == userID {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *TokenStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	now := s.now()
	for id, rec := range s.records {
		if !rec.ExpiresAt.After(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns how many records of tokenType userID holds.
func (s *TokenStore) Count(userID string, tokenType model.TokenType) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range s.records {
		if rec.UserID == userID && rec.Type == tokenType {
			n++
		}
	}
	return n
}

type AuditStore struct {
	mu      sync.RWMutex
	entries []model.AuditEntry
	ids     map[string]struct{}
}

func NewAuditStore() *AuditStore {
	return &AuditStore{ids: map[string]struct{}{}}
}

func (s *AuditStore) Append(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[entry.ID]; ok {
		return nil
	}
	s.ids[entry.ID] = struct{}{}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *AuditStore) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error) {
	query = query.Normalize()

	s.mu.RLock()
	matched := make([]model.AuditEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if query.Matches(e) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b model.AuditEntry) int {
		return cmp.Or(b.OccurredAt.Compare(a.OccurredAt), strings.Compare(b.ID, a.ID))
	})

	start := min(query.Offset(), len(matched))
	end := min(start+query.Limit, len(matched))
	return matched[start:end], len(matched), nil
}
