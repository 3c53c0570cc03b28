package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go-auth-api/internal/event"
	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

type AuditStore interface {
	Append(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error)
}

// AuditService persists security events from the bus and serves them back
// to administrators.
type AuditService struct {
	store   AuditStore
	timeout time.Duration
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store, timeout: 5 * time.Second}
}

func (s *AuditService) Record(ctx context.Context, e event.Event) error {
	entry := model.AuditEntry{
		ID:         e.ID,
		Type:       string(e.Type),
		SubjectID:  e.ActorID,
		Detail:     detail(e.Payload),
		OccurredAt: e.Timestamp.UTC(),
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	return s.store.Append(ctx, entry)
}

// Handle records e with its own deadline; failures are logged. It is meant
// to be passed to event.Listen.
func (s *AuditService) Handle(e event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Record(ctx, e); err != nil {
		slog.Warn("audit entry not stored", "type", e.Type, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query = query.Normalize()
	if !query.From.IsZero() && !query.To.IsZero() && query.To.Before(query.From) {
		return nil, model.Meta{}, apierror.Validation("to: must not be before from")
	}

	entries, total, err := s.store.Query(ctx, query)
	if err != nil {
		return nil, model.Meta{}, apierror.Internal(err)
	}

	return entries, model.NewMeta(query.Page, query.Limit, total), nil
}

func detail(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
