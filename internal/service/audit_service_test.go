package service

import (
	"context"
	"path/filepath"
	"testing"

	"duetrack/internal/database"
	"duetrack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAudit(t *testing.T) (*AuditService, *database.Database) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAuditService(db), db
}

func TestLogMessage_DefaultsByDirection(t *testing.T) {
	audit, db := setupAudit(t)
	ctx := context.Background()

	require.NoError(t, audit.LogMessage(ctx, LogMessageParams{
		Mobile:    "919812345678",
		Direction: models.DirectionInbound,
		Type:      models.MessageTypeText,
		Text:      "hi",
	}))
	require.NoError(t, audit.LogMessage(ctx, LogMessageParams{
		Mobile:    "919812345678",
		Direction: models.DirectionOutbound,
		Type:      models.MessageTypeText,
		Text:      "menu",
	}))

	records, err := db.GetMessagesByMobile(ctx, "919812345678", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.MessageStatusDelivered, records[0].Status)
	assert.Equal(t, models.MessageStatusSent, records[1].Status)
	assert.False(t, records[0].Timestamp.IsZero())
}

func TestLogMessage_ConversationSummary(t *testing.T) {
	audit, db := setupAudit(t)
	ctx := context.Background()

	custID := "c1"
	require.NoError(t, audit.LogMessage(ctx, LogMessageParams{
		Mobile:     "919812345678",
		Direction:  models.DirectionInbound,
		Type:       models.MessageTypeText,
		Text:       "first",
		CustomerID: &custID,
	}))
	require.NoError(t, audit.LogMessage(ctx, LogMessageParams{
		Mobile:    "919812345678",
		Direction: models.DirectionOutbound,
		Type:      models.MessageTypeText,
		Text:      "reply",
	}))

	conv, err := db.GetConversation(ctx, "919812345678")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, 1, conv.UnreadCount, "outbound must not grow or reset unread")
	assert.Equal(t, "reply", conv.LastMessage)
	require.NotNil(t, conv.CustomerID)
	assert.Equal(t, "c1", *conv.CustomerID)
}

func TestHasResponse(t *testing.T) {
	audit, _ := setupAudit(t)
	ctx := context.Background()

	found, err := audit.HasResponse(ctx, "wamid.REMINDER")
	require.NoError(t, err)
	assert.False(t, found)

	responseTo := "wamid.REMINDER"
	require.NoError(t, audit.LogMessage(ctx, LogMessageParams{
		Mobile:              "919812345678",
		Direction:           models.DirectionOutbound,
		Type:                models.MessageTypeText,
		Text:                "ack",
		ResponseToMessageID: &responseTo,
	}))

	found, err = audit.HasResponse(ctx, "wamid.REMINDER")
	require.NoError(t, err)
	assert.True(t, found)
}
