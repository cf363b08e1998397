package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"duetrack/internal/database"
	"duetrack/internal/models"
	"duetrack/internal/service"
	"duetrack/pkg/whatsapp"
	watypes "duetrack/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWhatsAppClient struct {
	mu        sync.Mutex
	sentTexts []string
	markReads []string
}

func (c *stubWhatsAppClient) record(id string) *watypes.SendMessageResponse {
	var resp watypes.SendMessageResponse
	resp.Messages = []struct {
		ID string `json:"id"`
	}{{ID: id}}
	return &resp
}

func (c *stubWhatsAppClient) SendText(ctx context.Context, creds watypes.Credentials, to, text string) (*watypes.SendMessageResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentTexts = append(c.sentTexts, text)
	return c.record("wamid.STUB_TEXT"), nil
}

func (c *stubWhatsAppClient) SendList(ctx context.Context, creds watypes.Credentials, to string, list watypes.ListMessage) (*watypes.SendMessageResponse, error) {
	return c.record("wamid.STUB_LIST"), nil
}

func (c *stubWhatsAppClient) SendTemplate(ctx context.Context, creds watypes.Credentials, to string, tmpl watypes.TemplateMessage) (*watypes.SendMessageResponse, error) {
	return c.record("wamid.STUB_TMPL"), nil
}

func (c *stubWhatsAppClient) MarkRead(ctx context.Context, creds watypes.Credentials, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markReads = append(c.markReads, messageID)
	return nil
}

var _ whatsapp.Client = (*stubWhatsAppClient)(nil)

type testServer struct {
	server *Server
	db     *database.Database
	client *stubWhatsAppClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	client := &stubWhatsAppClient{}
	sessions := service.NewSessionService(db, logger)
	audit := service.NewAuditService(db)
	outbound := service.NewOutboundService(client, audit, logger, "main_menu")
	ledger := service.NewLedgerService(db, logger, 24)
	router := service.NewActionRouter(sessions, ledger, outbound, logger)
	webhook := service.NewWebhookService(db, sessions, audit, router, outbound, logger)
	conversations := service.NewConversationService(db, outbound, logger)

	cfg := &models.Config{}
	cfg.Server.Port = 8082
	cfg.WhatsApp.VerifyToken = "test-verify-token"

	return &testServer{
		server: NewServer(cfg, webhook, conversations, logger),
		db:     db,
		client: client,
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "counters")
	assert.Contains(t, body, "uptime_ms")
}

func TestWebhookVerification(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode int
		wantBody string
	}{
		{
			name:     "valid handshake",
			query:    "hub.mode=subscribe&hub.verify_token=test-verify-token&hub.challenge=challenge-123",
			wantCode: http.StatusOK,
			wantBody: "challenge-123",
		},
		{
			name:     "wrong token",
			query:    "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=challenge-123",
			wantCode: http.StatusForbidden,
		},
		{
			name:     "wrong mode",
			query:    "hub.mode=unsubscribe&hub.verify_token=test-verify-token&hub.challenge=challenge-123",
			wantCode: http.StatusForbidden,
		},
		{
			name:     "missing token",
			query:    "hub.mode=subscribe&hub.challenge=challenge-123",
			wantCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?"+tt.query, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestWebhookPost_InvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", bytes.NewBufferString("{not json"))
	rec := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookPost_StatusOnlyAcknowledged(t *testing.T) {
	ts := newTestServer(t)

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"statuses": [{"id": "wamid.X", "status": "delivered", "recipient_id": "919812345678"}]
				}
			}]
		}]
	}`
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", bytes.NewBufferString(payload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ts.client.sentTexts)
}

func TestWebhookPost_MessageProcessed(t *testing.T) {
	ts := newTestServer(t)

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"messages": [{"from": "919812345678", "id": "wamid.IN1", "type": "text", "text": {"body": "hi"}}]
				}
			}]
		}]
	}`
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", bytes.NewBufferString(payload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	// The greeting bootstraps a session even for an unknown mobile.
	session, err := ts.db.GetSession(context.Background(), "919812345678")
	require.NoError(t, err)
	assert.NotNil(t, session)
}

func TestConversationsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/conversations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "conversations")
}

func TestHistoryEndpoint_RequiresMobile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/history", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplyEndpoint_Validation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/reply", bytes.NewBufferString(`{"mobile": ""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/reply", bytes.NewBufferString("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplyEndpoint_UnknownCustomer(t *testing.T) {
	ts := newTestServer(t)

	body := `{"mobile": "919800000000", "text": "please pay"}`
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/reply", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
