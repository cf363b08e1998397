package models

import (
	"time"
)

// SessionState tags where a subscriber is in the guided conversation
// flow. The set is open ended: new states can be introduced without a
// schema change because the column is free text.
type SessionState string

const (
	StateIdle                   SessionState = "IDLE"
	StateAwaitingPaymentConfirm SessionState = "AWAITING_PAYMENT_CONFIRMATION"
	StateCheckCurrentDue        SessionState = "CHECK_CURRENT_DUE"
)

// Session is the per-phone-number conversation state. At most one
// session exists per mobile number; the absence of a row is the
// "session timed out" signal, there is no background expiry job.
type Session struct {
	ID                int64             `db:"id"`
	Mobile            string            `db:"mobile"`
	State             SessionState      `db:"current_state"`
	Metadata          map[string]string `db:"metadata"`
	LastInteractionAt time.Time         `db:"last_interaction_at"`
	CreatedAt         time.Time         `db:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at"`
}

// Metadata keys with logic-bearing meaning. Anything else stored in
// Session.Metadata is opaque in-flight data.
const (
	MetaSelectedTransactionID = "selected_transaction_id"
	MetaLastActionID          = "last_action_id"
)
