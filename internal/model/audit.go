package model

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// AuditEntry is one persisted security event.
type AuditEntry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	// SubjectID is the user the entry is about. Empty for anonymous events
	// such as a login attempt on an unknown email.
	SubjectID  string    `json:"subjectId,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type AuditQuery struct {
	Type      string
	SubjectID string
	From      time.Time
	To        time.Time
	Page      int
	Limit     int
}

func (q AuditQuery) Normalize() AuditQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultAuditLimit
	}
	if q.Limit > MaxAuditLimit {
		q.Limit = MaxAuditLimit
	}
	return q
}

func (q AuditQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Matches reports whether e passes every filter of q.
func (q AuditQuery) Matches(e AuditEntry) bool {
	if q.Type != "" && !strings.EqualFold(e.Type, q.Type) {
		return false
	}
	if q.SubjectID != "" && e.SubjectID != q.SubjectID {
		return false
	}
	if !q.From.IsZero() && e.OccurredAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && e.OccurredAt.After(q.To) {
		return false
	}
	return true
}

type AuditListRequest struct {
	Type      string `json:"type"`
	SubjectID string `json:"subjectId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Limit     int    `json:"limit"`
	Page      int    `json:"page"`
}

func (r AuditListRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Length(1, 64)),
		validation.Field(&r.From, validation.Date(time.RFC3339)),
		validation.Field(&r.To, validation.Date(time.RFC3339)),
		validation.Field(&r.Limit, validation.Min(1), validation.Max(MaxAuditLimit)),
		validation.Field(&r.Page, validation.Min(1)),
	)
}

// Query assumes Validate passed.
func (r AuditListRequest) Query() AuditQuery {
	q := AuditQuery{Type: r.Type, SubjectID: r.SubjectID, Page: r.Page, Limit: r.Limit}
	if r.From != "" {
		q.From, _ = time.Parse(time.RFC3339, r.From)
	}
	if r.To != "" {
		q.To, _ = time.Parse(time.RFC3339, r.To)
	}
	return q.Normalize()
}
