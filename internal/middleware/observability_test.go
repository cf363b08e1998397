package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"duetrack/internal/tracing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*logrus.Logger, *bytes.Buffer) {
	logger := logrus.New()
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger, buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line map[string]interface{}
		require.NoError(t, dec.Decode(&line))
		lines = append(lines, line)
	}
	return lines
}

func TestObservabilityMiddleware(t *testing.T) {
	logger, buf := newTestLogger()

	var ctxRequestID string
	handler := ObservabilityMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxRequestID = tracing.GetRequestID(r.Context())
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("body"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, ctxRequestID, "handler must see a request id in context")

	lines := logLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "HTTP request started", lines[0]["msg"])
	assert.Equal(t, "HTTP request completed", lines[1]["msg"])
	assert.Equal(t, ctxRequestID, lines[1]["request_id"])
	assert.Equal(t, float64(http.StatusAccepted), lines[1]["status_code"])
	assert.Equal(t, float64(4), lines[1]["size_bytes"])
}

func TestObservabilityMiddleware_ErrorLogLevel(t *testing.T) {
	logger, buf := newTestLogger()

	handler := ObservabilityMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	lines := logLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "error", lines[1]["level"])
}

func TestWebhookObservabilityMiddleware(t *testing.T) {
	logger, buf := newTestLogger()

	handler := WebhookObservabilityMiddleware(logger, "whatsapp")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", bytes.NewBufferString("{}"))
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	lines := logLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "Webhook request started", lines[0]["msg"])
	assert.Equal(t, "whatsapp", lines[0]["component"])
	assert.Equal(t, "Webhook request completed", lines[1]["msg"])
	assert.Equal(t, "info", lines[1]["level"])
}

func TestResponseWrapper_DefaultStatus(t *testing.T) {
	logger, buf := newTestLogger()

	// A handler that never calls WriteHeader still reports 200.
	handler := ObservabilityMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("implicit ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	lines := logLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, float64(http.StatusOK), lines[1]["status_code"])
}
