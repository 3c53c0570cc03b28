package model

import (
	"fmt"
	"strings"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// UserFilter lists every field the user list endpoint can filter on.
type UserFilter struct {
	Role Role
}

type ListOptions struct {
	SortBy string
	Limit  int
	Page   int
}

// Normalize applies the default page and limit.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultPageLimit
	}
	if o.Limit > MaxPageLimit {
		o.Limit = MaxPageLimit
	}
	if o.Page < 1 {
		o.Page = 1
	}
	return o
}

func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

type SortField struct {
	Field string
	Desc  bool
}

// SortableUserFields maps accepted sortBy names to their storage column.
var SortableUserFields = map[string]string{
	"firstname": "firstname",
	"lastname":  "lastname",
	"email":     "email",
	"role":      "role",
	"gender":    "gender",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// ParseSortBy reads "field:asc,other:desc". An empty value sorts by createdAt.
func ParseSortBy(raw string) ([]SortField, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []SortField{{Field: "createdAt"}}, nil
	}

	parts := strings.Split(raw, ",")
	fields := make([]SortField, 0, len(parts))
	for _, part := range parts {
		name, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		if _, ok := SortableUserFields[name]; !ok {
			return nil, fmt.Errorf("%w: cannot sort by %q", ErrInvalidInput, name)
		}

		switch strings.ToLower(dir) {
		case "", "asc":
			fields = append(fields, SortField{Field: name})
		case "desc":
			fields = append(fields, SortField{Field: name, Desc: true})
		default:
			return nil, fmt.Errorf("%w: invalid sort direction %q", ErrInvalidInput, dir)
		}
	}

	return fields, nil
}

type UserPage struct {
	Results      []User
	Page         int
	Limit        int
	TotalResults int
}

func (p UserPage) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.TotalResults + p.Limit - 1) / p.Limit
}

func (p UserPage) Meta() *Meta {
	meta := NewMeta(p.Page, p.Limit, p.TotalResults)
	return &meta
}

func NewMeta(page int, limit int, total int) Meta {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}
