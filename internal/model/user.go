package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// User is the persisted account. PasswordHash never leaves the process:
// use View for anything sent to a client.
type User struct {
	ID              string    `json:"-"`
	FirstName       string    `json:"-"`
	LastName        string    `json:"-"`
	Email           string    `json:"-"`
	PasswordHash    string    `json:"-"`
	Role            Role      `json:"-"`
	Gender          Gender    `json:"-"`
	IsEmailVerified bool      `json:"-"`
	AccountClosed   bool      `json:"-"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

// UserView is the only outward representation of a User.
type UserView struct {
	ID              string `json:"id"`
	FirstName       string `json:"firstname"`
	LastName        string `json:"lastname"`
	Email           string `json:"email"`
	Role            Role   `json:"role"`
	Gender          Gender `json:"gender,omitempty"`
	IsEmailVerified bool   `json:"isEmailVerified"`
	AccountClosed   bool   `json:"accountClosed"`
}

func (u User) View() UserView {
	return UserView{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           u.Email,
		Role:            u.Role,
		Gender:          u.Gender,
		IsEmailVerified: u.IsEmailVerified,
		AccountClosed:   u.AccountClosed,
	}
}

func Views(users []User) []UserView {
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, u.View())
	}
	return out
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserCandidate carries the fields accepted when creating a user.
type UserCandidate struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Gender    Gender
	Role      Role
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	FirstName       *string
	LastName        *string
	Email           *string
	Password        *string
	Gender          *Gender
	IsEmailVerified *bool
}

// UserPatch is the column-level change a store applies in one atomic write.
// Nil fields keep whatever is stored at the time of the write.
type UserPatch struct {
	FirstName       *string
	LastName        *string
	Email           *string
	PasswordHash    *string
	Gender          *Gender
	IsEmailVerified *bool
	UpdatedAt       time.Time
}

// Apply merges p into u.
func (p UserPatch) Apply(u User) User {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = NormalizeEmail(*p.Email)
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Gender != nil {
		u.Gender = *p.Gender
	}
	if p.IsEmailVerified != nil {
		u.IsEmailVerified = *p.IsEmailVerified
	}
	u.UpdatedAt = p.UpdatedAt
	return u
}

func (u UserUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil &&
		u.Password == nil && u.Gender == nil && u.IsEmailVerified == nil
}
