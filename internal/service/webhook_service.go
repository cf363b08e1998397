package service

import (
	"context"
	"time"

	"duetrack/internal/metrics"
	"duetrack/internal/models"
	"duetrack/internal/privacy"
	"duetrack/pkg/whatsapp"
	watypes "duetrack/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// CustomerStore resolves senders to customers and their merchant's
// credentials, and keeps the customer's last-reply snapshot.
type CustomerStore interface {
	GetCustomerWithCredentials(ctx context.Context, mobile string) (*models.Customer, models.WhatsAppCredentials, error)
	UpdateCustomerReply(ctx context.Context, mobile, actionID string, repliedAt time.Time) error
}

// WebhookService orchestrates one webhook invocation end to end. Every
// side effect past parsing is isolated: a failing read receipt, audit
// write or feedback update never stops the steps after it. The only
// hard short-circuit is the dedup guard.
type WebhookService struct {
	customers CustomerStore
	sessions  *SessionService
	audit     *AuditService
	router    *ActionRouter
	outbound  *OutboundService
	logger    *logrus.Logger
	now       func() time.Time
}

func NewWebhookService(customers CustomerStore, sessions *SessionService, audit *AuditService, router *ActionRouter, outbound *OutboundService, logger *logrus.Logger) *WebhookService {
	return &WebhookService{
		customers: customers,
		sessions:  sessions,
		audit:     audit,
		router:    router,
		outbound:  outbound,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessPayload handles one Cloud API webhook delivery. A nil error
// and a nil-intent payload are both acknowledged upstream with 2xx;
// the provider only sees failure when the body was not even JSON.
func (s *WebhookService) ProcessPayload(ctx context.Context, payload *watypes.WebhookPayload) error {
	started := s.now()
	metrics.IncrementCounter(metrics.MetricWebhookReceived, nil, "Webhook deliveries received")
	defer func() {
		metrics.RecordTimer(metrics.MetricWebhookDuration, time.Since(started), nil, "Webhook processing duration")
	}()

	entry := whatsapp.FirstEntry(payload)
	if entry == nil {
		metrics.IncrementCounter(metrics.MetricWebhookNoIntent, nil, "Webhooks with no actionable message")
		return nil
	}

	intent := whatsapp.ParseEntry(entry)
	if intent == nil {
		// Pure status callback or empty change set.
		metrics.IncrementCounter(metrics.MetricWebhookNoIntent, nil, "Webhooks with no actionable message")
		return nil
	}

	log := s.logger.WithFields(logrus.Fields{
		LogFieldMobile:      privacy.MaskPhoneNumber(intent.From),
		LogFieldMessageID:   privacy.MaskMessageID(intent.MessageID),
		LogFieldMessageType: string(intent.Type),
	})
	log.Info("Processing inbound message")

	// Step 3: merchant credential resolution via the customer record.
	// A miss degrades the steps that need credentials, nothing else.
	customer, merchantCreds, err := s.customers.GetCustomerWithCredentials(ctx, intent.From)
	if err != nil {
		log.WithError(err).Warn("Failed to resolve customer credentials")
	}
	creds := watypes.Credentials{}
	if merchantCreds.Connected() {
		creds = watypes.Credentials{
			AccessToken:   merchantCreds.AccessToken,
			PhoneNumberID: merchantCreds.PhoneNumberID,
		}
	}
	var customerID *string
	if customer != nil {
		customerID = &customer.ID
	}

	// Step 4: read receipt, best effort.
	s.outbound.MarkRead(ctx, creds, intent.MessageID)

	// Step 5: dedup guard, the one hard short-circuit.
	if intent.IsReply() {
		answered, err := s.audit.HasResponse(ctx, intent.ReplyToMessageID)
		if err != nil {
			log.WithError(err).Warn("Dedup check failed, continuing")
		} else if answered {
			metrics.IncrementCounter(metrics.MetricWebhookDuplicate, nil, "Duplicate webhook deliveries dropped")
			log.WithField("response_to", privacy.MaskMessageID(intent.ReplyToMessageID)).
				Warn("Dropping already-answered message")
			return nil
		}
	}

	// Step 6: audit the inbound message, best effort.
	if err := s.audit.LogMessage(ctx, LogMessageParams{
		Mobile:      intent.From,
		Direction:   models.DirectionInbound,
		Type:        inboundMessageType(intent.Type),
		Text:        intent.Text,
		WAMessageID: intent.MessageID,
		CustomerID:  customerID,
		Metadata:    inboundMetadata(intent),
		Timestamp:   s.now(),
	}); err != nil {
		log.WithError(err).Warn("Failed to audit inbound message")
	}

	// Step 7: customer feedback snapshot, best effort.
	if customer != nil {
		snapshot := intent.ActionID
		if snapshot == "" {
			snapshot = intent.Text
		}
		if err := s.customers.UpdateCustomerReply(ctx, intent.From, snapshot, s.now()); err != nil {
			log.WithError(err).Warn("Failed to update customer reply snapshot")
		}
	}

	// Step 8: greeting bootstrap or action routing.
	switch {
	case intent.Type == watypes.IntentText && IsGreeting(intent.Text):
		return s.handleGreeting(ctx, intent, creds, customerID, log)
	case intent.Type == watypes.IntentList || intent.Type == watypes.IntentButton:
		return s.router.Dispatch(ctx, &ActionRequest{
			Intent:   intent,
			Customer: customer,
			Creds:    creds,
		})
	default:
		log.Debug("Free text with no matching flow, ignoring")
		return nil
	}
}

// handleGreeting (re)starts the conversation: the session is created
// if absent and the main menu goes out, whatever state the flow was
// in.
func (s *WebhookService) handleGreeting(ctx context.Context, intent *watypes.Intent, creds watypes.Credentials, customerID *string, log *logrus.Entry) error {
	if _, err := s.sessions.GetOrCreate(ctx, intent.From); err != nil {
		log.WithError(err).Error("Failed to bootstrap session")
		return err
	}

	if !creds.Valid() {
		log.Info("Skipping menu send: no merchant credentials")
		return nil
	}
	if err := s.outbound.SendMainMenu(ctx, creds, intent.From, customerID); err != nil {
		log.WithError(err).Error("Failed to send main menu")
		return err
	}
	return nil
}

func inboundMessageType(t watypes.IntentType) models.MessageType {
	if t == watypes.IntentText {
		return models.MessageTypeText
	}
	return models.MessageTypeInteractive
}

func inboundMetadata(intent *watypes.Intent) map[string]string {
	metadata := map[string]string{
		"intent_type": string(intent.Type),
	}
	if intent.ActionID != "" {
		metadata["action_id"] = intent.ActionID
	}
	if intent.IsReply() {
		metadata["reply_to"] = intent.ReplyToMessageID
	}
	return metadata
}
