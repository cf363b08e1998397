package service

import (
	"context"
	"time"

	duerrors "duetrack/internal/errors"
	"duetrack/internal/metrics"
	"duetrack/internal/models"
)

// AuditStore is the persistence surface the audit log needs.
type AuditStore interface {
	UpsertConversation(ctx context.Context, conv *models.Conversation, inbound bool) error
	InsertMessage(ctx context.Context, record *models.MessageRecord) error
	HasResponseToMessage(ctx context.Context, waMessageID string) (bool, error)
}

// LogMessageParams carries one message into the audit trail.
type LogMessageParams struct {
	Mobile              string
	Direction           models.MessageDirection
	Type                models.MessageType
	Text                string
	TemplateName        string
	WAMessageID         string
	Status              models.MessageStatus
	CustomerID          *string
	Metadata            map[string]string
	ResponseToMessageID *string
	Timestamp           time.Time
}

// AuditService maintains the append-only message log and the
// per-mobile conversation summary. Callers on the webhook path treat
// its failures as best-effort: log and continue.
type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// LogMessage updates the conversation summary and appends one message
// record. The unread counter grows only on inbound messages and the
// increment is atomic at the storage layer.
func (s *AuditService) LogMessage(ctx context.Context, p LogMessageParams) error {
	if p.Status == "" {
		p.Status = models.DefaultStatus(p.Direction)
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}

	conv := &models.Conversation{
		Mobile:        p.Mobile,
		CustomerID:    p.CustomerID,
		LastMessage:   p.Text,
		LastMessageAt: p.Timestamp,
	}
	if err := s.store.UpsertConversation(ctx, conv, p.Direction == models.DirectionInbound); err != nil {
		metrics.IncrementCounter(metrics.MetricAuditFailures, nil, "Audit log failures")
		return duerrors.NewDatabaseError("upsert conversation", err)
	}

	record := &models.MessageRecord{
		Mobile:              p.Mobile,
		Direction:           p.Direction,
		Type:                p.Type,
		Text:                p.Text,
		TemplateName:        p.TemplateName,
		WAMessageID:         p.WAMessageID,
		Status:              p.Status,
		CustomerID:          p.CustomerID,
		Metadata:            p.Metadata,
		ResponseToMessageID: p.ResponseToMessageID,
		Timestamp:           p.Timestamp,
	}
	if err := s.store.InsertMessage(ctx, record); err != nil {
		metrics.IncrementCounter(metrics.MetricAuditFailures, nil, "Audit log failures")
		return duerrors.NewDatabaseError("insert message", err)
	}
	return nil
}

// HasResponse reports whether some message already answers the given
// provider message id.
func (s *AuditService) HasResponse(ctx context.Context, waMessageID string) (bool, error) {
	found, err := s.store.HasResponseToMessage(ctx, waMessageID)
	if err != nil {
		return false, duerrors.NewDatabaseError("check duplicate response", err)
	}
	return found, nil
}
