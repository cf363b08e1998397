package service

import (
	"context"

	duerrors "duetrack/internal/errors"
	"duetrack/internal/models"
	watypes "duetrack/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// ConversationStore is the persistence surface of the merchant-facing
// read API.
type ConversationStore interface {
	ListConversations(ctx context.Context) ([]*models.Conversation, error)
	GetMessagesByMobile(ctx context.Context, mobile string, limit int) ([]*models.MessageRecord, error)
	MarkConversationRead(ctx context.Context, mobile string) error
	GetCustomerWithCredentials(ctx context.Context, mobile string) (*models.Customer, models.WhatsAppCredentials, error)
}

// ConversationService backs the merchant dashboard: conversation list,
// per-number history, and manual replies.
type ConversationService struct {
	store    ConversationStore
	outbound *OutboundService
	logger   *logrus.Logger
}

func NewConversationService(store ConversationStore, outbound *OutboundService, logger *logrus.Logger) *ConversationService {
	return &ConversationService{store: store, outbound: outbound, logger: logger}
}

// ListConversations returns every conversation summary, most recent
// activity first.
func (s *ConversationService) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	conversations, err := s.store.ListConversations(ctx)
	if err != nil {
		return nil, duerrors.NewDatabaseError("list conversations", err)
	}
	return conversations, nil
}

// GetHistory returns the chronological message log for one number and
// clears its unread counter: reading the history is the only thing
// that resets it.
func (s *ConversationService) GetHistory(ctx context.Context, mobile string, limit int) ([]*models.MessageRecord, error) {
	records, err := s.store.GetMessagesByMobile(ctx, mobile, limit)
	if err != nil {
		return nil, duerrors.NewDatabaseError("get message history", err)
	}

	if err := s.store.MarkConversationRead(ctx, mobile); err != nil {
		s.logger.WithError(err).Warn("Failed to mark conversation read")
	}
	return records, nil
}

// SendReply sends a merchant-authored free-text message to a customer,
// resolving the owning merchant's credentials from the customer record.
func (s *ConversationService) SendReply(ctx context.Context, mobile, text string) error {
	customer, merchantCreds, err := s.store.GetCustomerWithCredentials(ctx, mobile)
	if err != nil {
		return duerrors.NewDatabaseError("get customer credentials", err)
	}
	if customer == nil {
		return duerrors.NewNotFoundError("customer", mobile)
	}
	if !merchantCreds.Connected() {
		return duerrors.New(duerrors.ErrCodeCredentialsMissing, "merchant WhatsApp account is not connected")
	}

	creds := watypes.Credentials{
		AccessToken:   merchantCreds.AccessToken,
		PhoneNumberID: merchantCreds.PhoneNumberID,
	}
	return s.outbound.SendText(ctx, creds, mobile, text, &customer.ID, nil)
}
