package service

import (
	"context"

	duerrors "duetrack/internal/errors"
	"duetrack/internal/metrics"
	"duetrack/internal/models"
	"duetrack/internal/privacy"
	"duetrack/pkg/whatsapp"
	watypes "duetrack/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// OutboundService sends replies through the Cloud API and records each
// send in the audit trail. Credentials are passed per call: multiple
// merchants share one process and there is no global default.
type OutboundService struct {
	client           whatsapp.Client
	audit            *AuditService
	logger           *logrus.Logger
	menuTemplateName string
}

func NewOutboundService(client whatsapp.Client, audit *AuditService, logger *logrus.Logger, menuTemplateName string) *OutboundService {
	return &OutboundService{
		client:           client,
		audit:            audit,
		logger:           logger,
		menuTemplateName: menuTemplateName,
	}
}

// SendText sends a free-text reply and audits it. responseTo threads
// the outbound record back to the inbound message it answers; that
// link is what the dedup guard matches on replays.
func (s *OutboundService) SendText(ctx context.Context, creds watypes.Credentials, to, text string, customerID *string, responseTo *string) error {
	if !creds.Valid() {
		return duerrors.New(duerrors.ErrCodeCredentialsMissing, "cannot send text without merchant credentials")
	}

	resp, err := s.client.SendText(ctx, creds, to, text)
	if err != nil {
		metrics.IncrementCounter(metrics.MetricOutboundFailed, map[string]string{"kind": "text"}, "Outbound send failures")
		return err
	}
	metrics.IncrementCounter(metrics.MetricOutboundSent, map[string]string{"kind": "text"}, "Outbound messages sent")

	s.auditOutbound(ctx, LogMessageParams{
		Mobile:              to,
		Direction:           models.DirectionOutbound,
		Type:                models.MessageTypeText,
		Text:                text,
		WAMessageID:         resp.MessageID(),
		CustomerID:          customerID,
		ResponseToMessageID: responseTo,
	})
	return nil
}

// SendMainMenu sends the greeting menu as an interactive list.
func (s *OutboundService) SendMainMenu(ctx context.Context, creds watypes.Credentials, to string, customerID *string) error {
	if !creds.Valid() {
		return duerrors.New(duerrors.ErrCodeCredentialsMissing, "cannot send menu without merchant credentials")
	}

	menu := MainMenu()
	resp, err := s.client.SendList(ctx, creds, to, menu)
	if err != nil {
		metrics.IncrementCounter(metrics.MetricOutboundFailed, map[string]string{"kind": "list"}, "Outbound send failures")
		return err
	}
	metrics.IncrementCounter(metrics.MetricOutboundSent, map[string]string{"kind": "list"}, "Outbound messages sent")

	s.auditOutbound(ctx, LogMessageParams{
		Mobile:       to,
		Direction:    models.DirectionOutbound,
		Type:         models.MessageTypeInteractive,
		Text:         menu.Body,
		TemplateName: s.menuTemplateName,
		WAMessageID:  resp.MessageID(),
		CustomerID:   customerID,
	})
	return nil
}

// SendTemplate sends a pre-approved template message, used by reminder
// producers outside the webhook flow.
func (s *OutboundService) SendTemplate(ctx context.Context, creds watypes.Credentials, to string, tmpl watypes.TemplateMessage, customerID *string) error {
	if !creds.Valid() {
		return duerrors.New(duerrors.ErrCodeCredentialsMissing, "cannot send template without merchant credentials")
	}

	resp, err := s.client.SendTemplate(ctx, creds, to, tmpl)
	if err != nil {
		metrics.IncrementCounter(metrics.MetricOutboundFailed, map[string]string{"kind": "template"}, "Outbound send failures")
		return err
	}
	metrics.IncrementCounter(metrics.MetricOutboundSent, map[string]string{"kind": "template"}, "Outbound messages sent")

	s.auditOutbound(ctx, LogMessageParams{
		Mobile:       to,
		Direction:    models.DirectionOutbound,
		Type:         models.MessageTypeTemplate,
		TemplateName: tmpl.Name,
		WAMessageID:  resp.MessageID(),
		CustomerID:   customerID,
	})
	return nil
}

// MarkRead issues a read receipt for an inbound message. Best effort:
// skipped without credentials, failures logged and swallowed.
func (s *OutboundService) MarkRead(ctx context.Context, creds watypes.Credentials, messageID string) {
	if !creds.Valid() {
		s.logger.WithField(LogFieldMessageID, privacy.MaskMessageID(messageID)).
			Debug("Skipping read receipt: no merchant credentials")
		return
	}
	if err := s.client.MarkRead(ctx, creds, messageID); err != nil {
		s.logger.WithError(err).WithField(LogFieldMessageID, privacy.MaskMessageID(messageID)).
			Warn("Failed to mark message read")
	}
}

// auditOutbound records a sent message; audit failure never fails the
// send that already happened.
func (s *OutboundService) auditOutbound(ctx context.Context, p LogMessageParams) {
	if err := s.audit.LogMessage(ctx, p); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldMobile:    privacy.MaskPhoneNumber(p.Mobile),
			LogFieldDirection: p.Direction,
		}).Warn("Failed to audit outbound message")
	}
}
