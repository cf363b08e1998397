package service

import (
	"context"
	"fmt"
	"time"

	duerrors "duetrack/internal/errors"
	"duetrack/internal/metrics"
	"duetrack/internal/models"
	"duetrack/internal/privacy"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LedgerStore is the persistence surface the due ledger needs.
type LedgerStore interface {
	GetCustomerByMobile(ctx context.Context, mobile string) (*models.Customer, error)
	GetPendingDueTotal(ctx context.Context, customerID string) (float64, int, error)
	GetLatestPendingTransaction(ctx context.Context, customerID string) (*models.Transaction, error)
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	UpdateTransactionReply(ctx context.Context, transactionID, actionID string, reminderMessageID *string, status models.TransactionStatus) error
	InsertNotification(ctx context.Context, n *models.Notification) error
	InsertReminder(ctx context.Context, r *models.Reminder) error
	HasRecentReminder(ctx context.Context, transactionID, reminderType string, since time.Time) (bool, error)
}

// DueSummary is the result of a current-due lookup, preformatted for
// the outbound reply.
type DueSummary struct {
	Success bool
	Text    string
	Amount  float64
	Count   int
}

// LedgerService exposes the merchant due ledger to the conversation
// flow: current-due lookups, recording payment intents against open
// transactions, and the reminder cooldown.
type LedgerService struct {
	store    LedgerStore
	logger   *logrus.Logger
	cooldown time.Duration
	now      func() time.Time
}

func NewLedgerService(store LedgerStore, logger *logrus.Logger, cooldownHours int) *LedgerService {
	return &LedgerService{
		store:    store,
		logger:   logger,
		cooldown: time.Duration(cooldownHours) * time.Hour,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetCurrentDue resolves the sender to a customer and formats their
// outstanding balance. An unknown mobile number yields Success=false
// with a generic reply text, never an error.
func (s *LedgerService) GetCurrentDue(ctx context.Context, mobile string) (*DueSummary, error) {
	customer, err := s.store.GetCustomerByMobile(ctx, mobile)
	if err != nil {
		return nil, duerrors.NewDatabaseError("get customer", err)
	}
	if customer == nil {
		return &DueSummary{
			Success: false,
			Text:    "We could not find an account for this number. Please contact your merchant.",
		}, nil
	}

	total, count, err := s.store.GetPendingDueTotal(ctx, customer.ID)
	if err != nil {
		return nil, duerrors.NewDatabaseError("sum pending dues", err)
	}

	if count == 0 {
		return &DueSummary{
			Success: true,
			Text:    fmt.Sprintf("Hi %s, you have no pending dues. Thank you!", customer.Name),
		}, nil
	}

	return &DueSummary{
		Success: true,
		Text:    fmt.Sprintf("Hi %s, your current outstanding due is ₹%.2f across %d payment(s).", customer.Name, total, count),
		Amount:  total,
		Count:   count,
	}, nil
}

// UpdateTransactionStatus records a payment-intent reply against the
// customer's open transaction, linking it to the reminder message that
// prompted it when a reply context is available. A statement request
// or payment report also raises a merchant-facing notification, best
// effort.
func (s *LedgerService) UpdateTransactionStatus(ctx context.Context, mobile, actionID string, contextID *string) error {
	customer, err := s.store.GetCustomerByMobile(ctx, mobile)
	if err != nil {
		return duerrors.NewDatabaseError("get customer", err)
	}
	if customer == nil {
		return duerrors.NewNotFoundError("customer", privacy.MaskPhoneNumber(mobile))
	}

	tx, err := s.store.GetLatestPendingTransaction(ctx, customer.ID)
	if err != nil {
		return duerrors.NewDatabaseError("get pending transaction", err)
	}

	if tx != nil {
		status := tx.Status
		if actionID == ActionPaidToday {
			status = models.TransactionStatusPaidReported
		}
		if err := s.store.UpdateTransactionReply(ctx, tx.ID, actionID, contextID, status); err != nil {
			return duerrors.NewDatabaseError("update transaction reply", err)
		}
	} else {
		s.logger.WithFields(logrus.Fields{
			LogFieldCustomer: customer.ID,
			LogFieldActionID: actionID,
		}).Info("Payment reply with no pending transaction")
	}

	s.notifyMerchant(ctx, customer, actionID)
	return nil
}

func (s *LedgerService) notifyMerchant(ctx context.Context, customer *models.Customer, actionID string) {
	var n *models.Notification
	switch actionID {
	case ActionNeedStatement:
		n = &models.Notification{
			MerchantID: customer.MerchantID,
			CustomerID: &customer.ID,
			Title:      "Statement requested",
			Message:    fmt.Sprintf("%s requested an account statement.", customer.Name),
			Type:       models.NotificationStatementRequest,
		}
	case ActionPayToday, ActionWillPayToday, ActionPaidToday, ActionPayWeek, ActionPaySoon:
		n = &models.Notification{
			MerchantID: customer.MerchantID,
			CustomerID: &customer.ID,
			Title:      "Payment reply received",
			Message:    fmt.Sprintf("%s replied %s to a payment reminder.", customer.Name, actionID),
			Type:       models.NotificationExcuse,
		}
	default:
		return
	}

	if err := s.store.InsertNotification(ctx, n); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldMerchant: customer.MerchantID,
			LogFieldActionID: actionID,
		}).Warn("Failed to insert merchant notification")
	}
}

// CreateTransaction opens a new due in the ledger.
func (s *LedgerService) CreateTransaction(ctx context.Context, customerID string, amount float64, dueDate time.Time) (*models.Transaction, error) {
	tx := &models.Transaction{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Amount:     amount,
		Status:     models.TransactionStatusPending,
		DueDate:    dueDate,
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, duerrors.NewDatabaseError("insert transaction", err)
	}
	return tx, nil
}

// CanSendReminder reports whether a reminder of the given type may be
// dispatched for a transaction: true unless one was already sent
// inside the cooldown window.
func (s *LedgerService) CanSendReminder(ctx context.Context, transactionID, reminderType string) (bool, error) {
	cutoff := s.now().Add(-s.cooldown)
	recent, err := s.store.HasRecentReminder(ctx, transactionID, reminderType, cutoff)
	if err != nil {
		return false, duerrors.NewDatabaseError("check recent reminder", err)
	}
	if recent {
		metrics.IncrementCounter(metrics.MetricRemindersSuppress, map[string]string{
			"type": reminderType,
		}, "Reminders suppressed by cooldown")
	}
	return !recent, nil
}

// RecordReminder stores a dispatched reminder for cooldown tracking.
func (s *LedgerService) RecordReminder(ctx context.Context, transactionID, reminderType string, status models.ReminderStatus) error {
	r := &models.Reminder{
		ID:            uuid.New().String(),
		TransactionID: transactionID,
		ReminderType:  reminderType,
		Status:        status,
		SentAt:        s.now(),
	}
	if err := s.store.InsertReminder(ctx, r); err != nil {
		return duerrors.NewDatabaseError("insert reminder", err)
	}
	return nil
}
