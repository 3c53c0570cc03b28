package model

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordLength = 72
)

var (
	letterPattern = regexp.MustCompile(`[A-Za-z]`)
	digitPattern  = regexp.MustCompile(`[0-9]`)
)

func passwordRules(required bool) []validation.Rule {
	rules := []validation.Rule{
		validation.Length(minPasswordLength, maxPasswordLength),
		validation.Match(letterPattern).Error("must contain at least one letter"),
		validation.Match(digitPattern).Error("must contain at least one number"),
	}
	if required {
		rules = append([]validation.Rule{validation.Required}, rules...)
	}
	return rules
}

// forbidden rejects any value supplied for a field callers may not set.
var forbidden = validation.By(func(value interface{}) error {
	if _, isNil := validation.Indirect(value); !isNil {
		return errors.New("must not be provided")
	}
	return nil
})

var genderRule = validation.In(string(GenderMale), string(GenderFemale))

type RegisterRequest struct {
	FirstName       string  `json:"firstname"`
	LastName        string  `json:"lastname"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	Gender          string  `json:"gender"`
	Role            *string `json:"role"`
	IsEmailVerified *bool   `json:"isEmailVerified"`
	AccountClosed   *bool   `json:"accountClosed"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, passwordRules(true)...),
		validation.Field(&r.Gender, genderRule),
		validation.Field(&r.Role, forbidden),
		validation.Field(&r.IsEmailVerified, forbidden),
		validation.Field(&r.AccountClosed, forbidden),
	)
}

func (r RegisterRequest) Candidate() UserCandidate {
	return UserCandidate{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Password:  r.Password,
		Gender:    Gender(r.Gender),
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordRequest combines the token query parameter with the body.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, passwordRules(true)...),
	)
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

type CreateUserRequest struct {
	FirstName       string  `json:"firstname"`
	LastName        string  `json:"lastname"`
	Email           string  `json:"email"`
	Role            string  `json:"role"`
	Gender          string  `json:"gender"`
	Password        *string `json:"password"`
	IsEmailVerified *bool   `json:"isEmailVerified"`
	AccountClosed   *bool   `json:"accountClosed"`
}

func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Role, validation.Required, validation.In(string(RoleUser), string(RoleAdmin))),
		validation.Field(&r.Gender, genderRule),
		validation.Field(&r.Password, forbidden),
		validation.Field(&r.IsEmailVerified, forbidden),
		validation.Field(&r.AccountClosed, forbidden),
	)
}

func (r CreateUserRequest) Candidate() UserCandidate {
	return UserCandidate{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Gender:    Gender(r.Gender),
		Role:      Role(r.Role),
	}
}

type UpdateUserRequest struct {
	FirstName       *string `json:"firstname"`
	LastName        *string `json:"lastname"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	Gender          *string `json:"gender"`
	Role            *string `json:"role"`
	IsEmailVerified *bool   `json:"isEmailVerified"`
	AccountClosed   *bool   `json:"accountClosed"`
}

func (r UpdateUserRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&r.Password, append([]validation.Rule{validation.NilOrNotEmpty}, passwordRules(false)...)...),
		validation.Field(&r.Gender, genderRule),
		validation.Field(&r.Role, forbidden),
		validation.Field(&r.IsEmailVerified, forbidden),
		validation.Field(&r.AccountClosed, forbidden),
	)
	if err != nil {
		return err
	}

	if r.Update().Empty() {
		return validation.Errors{"body": errors.New("at least one field must be provided")}
	}
	return nil
}

func (r UpdateUserRequest) Update() UserUpdate {
	update := UserUpdate{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Password:  r.Password,
	}
	if r.Gender != nil {
		g := Gender(*r.Gender)
		update.Gender = &g
	}
	return update
}

type ListUsersQuery struct {
	Role   string `json:"role"`
	SortBy string `json:"sortBy"`
	Limit  int    `json:"limit"`
	Page   int    `json:"page"`
}

func (q ListUsersQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Role, validation.In(string(RoleUser), string(RoleAdmin))),
		validation.Field(&q.SortBy, validation.By(func(value interface{}) error {
			_, err := ParseSortBy(q.SortBy)
			return err
		})),
		validation.Field(&q.Limit, validation.Min(1), validation.Max(MaxPageLimit)),
		validation.Field(&q.Page, validation.Min(1)),
	)
}

func (q ListUsersQuery) Filter() UserFilter {
	return UserFilter{Role: Role(q.Role)}
}

func (q ListUsersQuery) Options() ListOptions {
	return ListOptions{SortBy: q.SortBy, Limit: q.Limit, Page: q.Page}.Normalize()
}
