package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"duetrack/internal/models"
	watypes "duetrack/pkg/whatsapp/types"
)

// Mock Cloud API client recording every call, with per-method error
// injection. Safe for concurrent sends.
type sentMessage struct {
	creds watypes.Credentials
	to    string
	text  string
	kind  string
}

type mockWhatsAppClient struct {
	mu        sync.Mutex
	sent      []sentMessage
	markReads []string
	sendErr   error
	markErr   error
	nextID    int
}

func (m *mockWhatsAppClient) record(kind string, creds watypes.Credentials, to, text string) (*watypes.SendMessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, sentMessage{creds: creds, to: to, text: text, kind: kind})
	m.nextID++
	resp := &watypes.SendMessageResponse{}
	resp.Messages = []struct {
		ID string `json:"id"`
	}{{ID: fmt.Sprintf("wamid.OUT%d", m.nextID)}}
	return resp, nil
}

func (m *mockWhatsAppClient) SendText(ctx context.Context, creds watypes.Credentials, to, text string) (*watypes.SendMessageResponse, error) {
	return m.record("text", creds, to, text)
}

func (m *mockWhatsAppClient) SendList(ctx context.Context, creds watypes.Credentials, to string, list watypes.ListMessage) (*watypes.SendMessageResponse, error) {
	return m.record("list", creds, to, list.Body)
}

func (m *mockWhatsAppClient) SendTemplate(ctx context.Context, creds watypes.Credentials, to string, tmpl watypes.TemplateMessage) (*watypes.SendMessageResponse, error) {
	return m.record("template", creds, to, tmpl.Name)
}

func (m *mockWhatsAppClient) MarkRead(ctx context.Context, creds watypes.Credentials, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.markReads = append(m.markReads, messageID)
	return nil
}

func (m *mockWhatsAppClient) sentMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Fake ledger store recording ledger mutations in memory.
type txReply struct {
	transactionID     string
	actionID          string
	reminderMessageID *string
	status            models.TransactionStatus
}

type fakeLedgerStore struct {
	customers      map[string]*models.Customer
	pendingTotal   float64
	pendingCount   int
	latestTx       *models.Transaction
	replies        []txReply
	transactions   []*models.Transaction
	notifications  []*models.Notification
	reminders      []*models.Reminder
	recentReminder bool
	customerErr    error
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{customers: make(map[string]*models.Customer)}
}

func (f *fakeLedgerStore) GetCustomerByMobile(ctx context.Context, mobile string) (*models.Customer, error) {
	if f.customerErr != nil {
		return nil, f.customerErr
	}
	return f.customers[mobile], nil
}

func (f *fakeLedgerStore) GetPendingDueTotal(ctx context.Context, customerID string) (float64, int, error) {
	return f.pendingTotal, f.pendingCount, nil
}

func (f *fakeLedgerStore) GetLatestPendingTransaction(ctx context.Context, customerID string) (*models.Transaction, error) {
	return f.latestTx, nil
}

func (f *fakeLedgerStore) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	f.transactions = append(f.transactions, tx)
	return nil
}

func (f *fakeLedgerStore) UpdateTransactionReply(ctx context.Context, transactionID, actionID string, reminderMessageID *string, status models.TransactionStatus) error {
	f.replies = append(f.replies, txReply{transactionID, actionID, reminderMessageID, status})
	return nil
}

func (f *fakeLedgerStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeLedgerStore) InsertReminder(ctx context.Context, r *models.Reminder) error {
	f.reminders = append(f.reminders, r)
	return nil
}

func (f *fakeLedgerStore) HasRecentReminder(ctx context.Context, transactionID, reminderType string, since time.Time) (bool, error) {
	return f.recentReminder, nil
}
