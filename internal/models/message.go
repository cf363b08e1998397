package models

import (
	"time"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "INBOUND"
	DirectionOutbound MessageDirection = "OUTBOUND"
)

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusReceived  MessageStatus = "received"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeInteractive MessageType = "interactive"
	MessageTypeTemplate    MessageType = "template"
)

// DefaultStatus returns the status recorded when the caller does not
// pass one explicitly: outbound messages start as sent, everything
// else as delivered.
func DefaultStatus(direction MessageDirection) MessageStatus {
	if direction == DirectionOutbound {
		return MessageStatusSent
	}
	return MessageStatusDelivered
}

// MessageRecord is one row of the append-only audit trail. Records are
// never mutated or deleted once written; retention is out of scope.
type MessageRecord struct {
	ID                  int64             `db:"id"`
	Mobile              string            `db:"mobile"`
	Direction           MessageDirection  `db:"direction"`
	Type                MessageType       `db:"type"`
	Text                string            `db:"text"`
	TemplateName        string            `db:"template_name"`
	WAMessageID         string            `db:"wa_message_id"`
	Status              MessageStatus     `db:"status"`
	CustomerID          *string           `db:"customer_id"`
	Metadata            map[string]string `db:"metadata"`
	ResponseToMessageID *string           `db:"response_to_message_id"`
	Timestamp           time.Time         `db:"timestamp"`
	CreatedAt           time.Time         `db:"created_at"`
}

// Conversation is the denormalized latest-activity summary, exactly one
// per mobile number. UnreadCount grows on inbound messages and is only
// cleared by an explicit read of the history, never by an outbound
// reply.
type Conversation struct {
	ID            int64     `db:"id"`
	Mobile        string    `db:"mobile"`
	CustomerID    *string   `db:"customer_id"`
	LastMessage   string    `db:"last_message"`
	LastMessageAt time.Time `db:"last_message_at"`
	UnreadCount   int       `db:"unread_count"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}
