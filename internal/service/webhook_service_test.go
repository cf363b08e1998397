package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"duetrack/internal/database"
	"duetrack/internal/models"
	watypes "duetrack/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeline struct {
	db       *database.Database
	client   *mockWhatsAppClient
	sessions *SessionService
	webhook  *WebhookService
}

func setupPipeline(t *testing.T) *pipeline {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	client := &mockWhatsAppClient{}
	sessions := NewSessionService(db, logger)
	audit := NewAuditService(db)
	outbound := NewOutboundService(client, audit, logger, "main_menu")
	ledger := NewLedgerService(db, logger, 24)
	router := NewActionRouter(sessions, ledger, outbound, logger)
	webhook := NewWebhookService(db, sessions, audit, router, outbound, logger)

	return &pipeline{db: db, client: client, sessions: sessions, webhook: webhook}
}

func (p *pipeline) seedCustomer(t *testing.T, merchantID, customerID, mobile, token string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.db.SaveMerchant(ctx, &models.Merchant{
		ID:   merchantID,
		Name: "Merchant " + merchantID,
		Credentials: models.WhatsAppCredentials{
			AccessToken:   token,
			PhoneNumberID: "pn-" + merchantID,
			WABAID:        "waba-" + merchantID,
			Status:        models.CredentialStatusConnected,
		},
	}))
	require.NoError(t, p.db.SaveCustomer(ctx, &models.Customer{
		ID:         customerID,
		MerchantID: merchantID,
		Name:       "Ravi",
		Mobile:     mobile,
		DueAmount:  500,
	}))
}

func textPayload(from, messageID, body string) *watypes.WebhookPayload {
	return &watypes.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []watypes.Entry{{
			ID: "waba-1",
			Changes: []watypes.Change{{
				Field: "messages",
				Value: watypes.Value{
					MessagingProduct: "whatsapp",
					Messages: []watypes.Message{{
						From: from,
						ID:   messageID,
						Type: "text",
						Text: &watypes.Text{Body: body},
					}},
				},
			}},
		}},
	}
}

func listReplyPayload(from, messageID, actionID, contextID string) *watypes.WebhookPayload {
	msg := watypes.Message{
		From: from,
		ID:   messageID,
		Type: "interactive",
		Interactive: &watypes.Interactive{
			Type:      "list_reply",
			ListReply: &watypes.Reply{ID: actionID, Title: actionID},
		},
	}
	if contextID != "" {
		msg.Context = &watypes.Context{ID: contextID}
	}
	return &watypes.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []watypes.Entry{{
			ID: "waba-1",
			Changes: []watypes.Change{{
				Field: "messages",
				Value: watypes.Value{Messages: []watypes.Message{msg}},
			}},
		}},
	}
}

func statusPayload() *watypes.WebhookPayload {
	return &watypes.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []watypes.Entry{{
			ID: "waba-1",
			Changes: []watypes.Change{{
				Field: "messages",
				Value: watypes.Value{
					Statuses: []watypes.Status{{ID: "wamid.X", Status: "delivered"}},
				},
			}},
		}},
	}
}

func TestProcessPayload_NoIntent(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.webhook.ProcessPayload(ctx, &watypes.WebhookPayload{}))
	require.NoError(t, p.webhook.ProcessPayload(ctx, statusPayload()))

	assert.Empty(t, p.client.sentMessages())
	conversations, err := p.db.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, conversations, "no-intent payloads must leave no trace")
}

func TestProcessPayload_GreetingBootstrapsSessionAndMenu(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	p.seedCustomer(t, "m1", "c1", "919812345678", "token-a")

	require.NoError(t, p.webhook.ProcessPayload(ctx, textPayload("919812345678", "wamid.IN1", "Hi")))

	session, err := p.db.GetSession(ctx, "919812345678")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.StateIdle, session.State)

	sent := p.client.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "list", sent[0].kind)
	assert.Equal(t, "919812345678", sent[0].to)
	assert.Equal(t, "token-a", sent[0].creds.AccessToken)

	// Read receipt went out for the inbound message
	assert.Equal(t, []string{"wamid.IN1"}, p.client.markReads)

	// Audit: one inbound and one outbound record
	records, err := p.db.GetMessagesByMobile(ctx, "919812345678", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.DirectionInbound, records[0].Direction)
	assert.Equal(t, models.DirectionOutbound, records[1].Direction)
}

func TestProcessPayload_GreetingPreservesExistingSession(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	p.seedCustomer(t, "m1", "c1", "919812345678", "token-a")

	require.NoError(t, p.db.SaveSession(ctx, "919812345678", models.StateCheckCurrentDue, map[string]string{"k": "v"}))

	require.NoError(t, p.webhook.ProcessPayload(ctx, textPayload("919812345678", "wamid.IN1", "hello")))

	session, err := p.db.GetSession(ctx, "919812345678")
	require.NoError(t, err)
	require.NotNil(t, session, "greeting must leave a session in place")

	sent := p.client.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "list", sent[0].kind, "menu goes out whatever the current state")
}

func TestProcessPayload_GreetingWithoutCustomer(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()

	// Unknown sender: session still bootstraps, nothing can be sent
	require.NoError(t, p.webhook.ProcessPayload(ctx, textPayload("919899999999", "wamid.IN1", "hi")))

	session, err := p.db.GetSession(ctx, "919899999999")
	require.NoError(t, err)
	assert.NotNil(t, session)
	assert.Empty(t, p.client.sentMessages())
	assert.Empty(t, p.client.markReads, "read receipt needs credentials")
}

func TestProcessPayload_DedupReplay(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	p.seedCustomer(t, "m1", "c1", "919812345678", "token-a")
	require.NoError(t, p.db.EnsureSession(ctx, "919812345678"))

	payload := listReplyPayload("919812345678", "wamid.IN1", ActionPayToday, "wamid.REMINDER")

	require.NoError(t, p.webhook.ProcessPayload(ctx, payload))
	require.NoError(t, p.webhook.ProcessPayload(ctx, payload))

	// Exactly one business reply despite the replay
	sent := p.client.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "text", sent[0].kind)

	// Exactly one inbound and one outbound audit record
	records, err := p.db.GetMessagesByMobile(ctx, "919812345678", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Nil(t, records[0].ResponseToMessageID, "the inbound reply itself is not a response record")
	require.NotNil(t, records[1].ResponseToMessageID)
	assert.Equal(t, "wamid.REMINDER", *records[1].ResponseToMessageID)

	// Unread grew once, not twice
	conv, err := p.db.GetConversation(ctx, "919812345678")
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadCount)
}

func TestProcessPayload_CheckDueWithoutSession(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	p.seedCustomer(t, "m1", "c1", "919812345678", "token-a")

	payload := listReplyPayload("919812345678", "wamid.IN1", ActionCheckCurrentDue, "wamid.MENU")
	require.NoError(t, p.webhook.ProcessPayload(ctx, payload))

	sent := p.client.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, SessionTimeoutText, sent[0].text)

	// No session was created by the timed-out action
	session, err := p.db.GetSession(ctx, "919812345678")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestProcessPayload_CheckDueWithSession(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	p.seedCustomer(t, "m1", "c1", "919812345678", "token-a")
	require.NoError(t, p.db.EnsureSession(ctx, "919812345678"))
	_, err := p.db.GetSession(ctx, "919812345678")
	require.NoError(t, err)

	require.NoError(t, p.db.InsertTransaction(ctx, &models.Transaction{
		ID: "tx-1", CustomerID: "c1", Amount: 1250, Status: models.TransactionStatusPending,
		DueDate: time.Now().UTC().AddDate(0, 0, 3),
	}))

	payload := listReplyPayload("919812345678", "wamid.IN1", ActionCheckCurrentDue, "wamid.MENU")
	require.NoError(t, p.webhook.ProcessPayload(ctx, payload))

	sent := p.client.sentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].text, "1250.00")

	session, err := p.db.GetSession(ctx, "919812345678")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.StateCheckCurrentDue, session.State)
}

func TestProcessPayload_UnknownAction(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	p.seedCustomer(t, "m1", "c1", "919812345678", "token-a")

	payload := listReplyPayload("919812345678", "wamid.IN1", "UNKNOWN_XYZ", "")
	require.NoError(t, p.webhook.ProcessPayload(ctx, payload))

	assert.Empty(t, p.client.sentMessages(), "unknown actions never reply")

	// The inbound message was still audited
	records, err := p.db.GetMessagesByMobile(ctx, "919812345678", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.DirectionInbound, records[0].Direction)
}

func TestProcessPayload_PaymentIntentEndToEnd(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	p.seedCustomer(t, "m1", "c1", "919812345678", "token-a")
	require.NoError(t, p.db.InsertTransaction(ctx, &models.Transaction{
		ID: "tx-1", CustomerID: "c1", Amount: 500, Status: models.TransactionStatusPending,
		DueDate: time.Now().UTC(),
	}))

	payload := listReplyPayload("919812345678", "wamid.IN1", ActionPayToday, "wamid.AAA")
	require.NoError(t, p.webhook.ProcessPayload(ctx, payload))

	// The ledger recorded the reply tied to the reminder message
	tx, err := p.db.GetLatestPendingTransaction(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.NotNil(t, tx.ReplyAction)
	assert.Equal(t, ActionPayToday, *tx.ReplyAction)
	require.NotNil(t, tx.ReminderMessageID)
	assert.Equal(t, "wamid.AAA", *tx.ReminderMessageID)

	// Feedback snapshot on the customer
	customer, err := p.db.GetCustomerByMobile(ctx, "919812345678")
	require.NoError(t, err)
	require.NotNil(t, customer.LastReplyAction)
	assert.Equal(t, ActionPayToday, *customer.LastReplyAction)

	// Replay is dropped before the ledger
	require.NoError(t, p.webhook.ProcessPayload(ctx, payload))
	sent := p.client.sentMessages()
	assert.Len(t, sent, 1)
}

func TestProcessPayload_CredentialScoping(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	p.seedCustomer(t, "mA", "cA", "919800000111", "token-a")
	p.seedCustomer(t, "mB", "cB", "919800000222", "token-b")

	var wg sync.WaitGroup
	for _, tc := range []struct{ mobile, msgID string }{
		{"919800000111", "wamid.A1"},
		{"919800000222", "wamid.B1"},
	} {
		wg.Add(1)
		go func(mobile, msgID string) {
			defer wg.Done()
			_ = p.webhook.ProcessPayload(ctx, textPayload(mobile, msgID, "hi"))
		}(tc.mobile, tc.msgID)
	}
	wg.Wait()

	sent := p.client.sentMessages()
	require.Len(t, sent, 2)
	byMobile := map[string]string{}
	for _, msg := range sent {
		byMobile[msg.to] = msg.creds.AccessToken
	}
	assert.Equal(t, "token-a", byMobile["919800000111"])
	assert.Equal(t, "token-b", byMobile["919800000222"])
}

func TestProcessPayload_UnreadMonotonicity(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	p.seedCustomer(t, "m1", "c1", "919812345678", "token-a")

	// Distinct free-text messages (no dedup context) arriving back to back
	for i, body := range []string{"one", "two", "three", "four"} {
		payload := textPayload("919812345678", "wamid.IN"+string(rune('A'+i)), body)
		require.NoError(t, p.webhook.ProcessPayload(ctx, payload))
	}

	conv, err := p.db.GetConversation(ctx, "919812345678")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, 4, conv.UnreadCount)
	assert.Equal(t, "four", conv.LastMessage)
}

func TestProcessPayload_SendFailureStillAudits(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	p.seedCustomer(t, "m1", "c1", "919812345678", "token-a")
	p.client.sendErr = assert.AnError

	err := p.webhook.ProcessPayload(ctx, textPayload("919812345678", "wamid.IN1", "hi"))
	require.Error(t, err, "send failure surfaces to the caller for logging")

	// Inbound audit happened before the failed send
	records, dbErr := p.db.GetMessagesByMobile(ctx, "919812345678", 0)
	require.NoError(t, dbErr)
	require.Len(t, records, 1)
	assert.Equal(t, models.DirectionInbound, records[0].Direction)
}
