package models

import (
	"time"
)

type TransactionStatus string

const (
	TransactionStatusPending      TransactionStatus = "pending"
	TransactionStatusPaidReported TransactionStatus = "paid_reported"
	TransactionStatusPaid         TransactionStatus = "paid"
)

// Transaction is one outstanding due in the merchant's ledger.
// ReplyAction and ReminderMessageID tie the customer's reminder
// response back to the specific reminder that prompted it.
type Transaction struct {
	ID                string            `db:"id"`
	CustomerID        string            `db:"customer_id"`
	Amount            float64           `db:"amount"`
	Status            TransactionStatus `db:"status"`
	ReplyAction       *string           `db:"reply_action"`
	ReminderMessageID *string           `db:"reminder_message_id"`
	DueDate           time.Time         `db:"due_date"`
	CreatedAt         time.Time         `db:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at"`
}

type NotificationType string

const (
	NotificationStatementRequest NotificationType = "statement_request_alert"
	NotificationExcuse           NotificationType = "excuse_alert"
	NotificationOverdue          NotificationType = "overdue_alert"
	NotificationSystem           NotificationType = "system_alert"
)

// Notification is a merchant-facing alert raised by a customer reply,
// for example a statement request.
type Notification struct {
	ID         int64            `db:"id"`
	MerchantID string           `db:"merchant_id"`
	CustomerID *string          `db:"customer_id"`
	Title      string           `db:"title"`
	Message    string           `db:"message"`
	Type       NotificationType `db:"type"`
	IsRead     bool             `db:"is_read"`
	CreatedAt  time.Time        `db:"created_at"`
}

type ReminderStatus string

const (
	ReminderStatusSent   ReminderStatus = "sent"
	ReminderStatusFailed ReminderStatus = "failed"
)

// Reminder records a dispatched payment reminder, used for cooldown
// enforcement so one transaction is not nagged twice within the
// cooldown window.
type Reminder struct {
	ID            string         `db:"id"`
	TransactionID string         `db:"transaction_id"`
	ReminderType  string         `db:"reminder_type"`
	Status        ReminderStatus `db:"status"`
	SentAt        time.Time      `db:"sent_at"`
}
