package models

import (
	"time"
)

type CredentialStatus string

const (
	CredentialStatusConnected    CredentialStatus = "connected"
	CredentialStatusDisconnected CredentialStatus = "disconnected"
)

// WhatsAppCredentials is the per-merchant Cloud API credential pair.
// Multiple merchants share one process, so every outbound call must
// carry the owning merchant's credentials explicitly.
type WhatsAppCredentials struct {
	AccessToken   string           `json:"accessToken"`
	PhoneNumberID string           `json:"phoneNumberId"`
	WABAID        string           `json:"wabaId"`
	Status        CredentialStatus `json:"status"`
}

// Connected reports whether the credential pair is usable for sends
// and read receipts.
func (c WhatsAppCredentials) Connected() bool {
	return c.Status == CredentialStatusConnected && c.AccessToken != "" && c.PhoneNumberID != ""
}

type Merchant struct {
	ID          string              `db:"id"`
	Name        string              `db:"name"`
	Credentials WhatsAppCredentials `db:"-"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}

// Customer is a merchant's debtor, keyed by mobile number. The
// LastReply fields are a best-effort snapshot of the customer's most
// recent reminder response.
type Customer struct {
	ID              string     `db:"id"`
	MerchantID      string     `db:"merchant_id"`
	Name            string     `db:"name"`
	Mobile          string     `db:"mobile"`
	DueAmount       float64    `db:"due_amount"`
	LastReplyAction *string    `db:"last_reply_action"`
	LastReplyAt     *time.Time `db:"last_reply_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}
