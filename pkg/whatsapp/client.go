package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"duetrack/pkg/whatsapp/types"
)

// Client sends messages through the Meta WhatsApp Cloud API. Every
// call takes the owning merchant's credentials explicitly: one process
// serves many merchants and there is no global default account.
type Client interface {
	SendText(ctx context.Context, creds types.Credentials, to, text string) (*types.SendMessageResponse, error)
	SendList(ctx context.Context, creds types.Credentials, to string, list types.ListMessage) (*types.SendMessageResponse, error)
	SendTemplate(ctx context.Context, creds types.Credentials, to string, tmpl types.TemplateMessage) (*types.SendMessageResponse, error)
	MarkRead(ctx context.Context, creds types.Credentials, messageID string) error
}

type ClientConfig struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
}

type cloudClient struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// NewClient creates a Cloud API client.
func NewClient(cfg ClientConfig) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &cloudClient{
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *cloudClient) SendText(ctx context.Context, creds types.Credentials, to, text string) (*types.SendMessageResponse, error) {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text": map[string]interface{}{
			"preview_url": false,
			"body":        text,
		},
	}
	return c.sendMessage(ctx, creds, payload)
}

func (c *cloudClient) SendList(ctx context.Context, creds types.Credentials, to string, list types.ListMessage) (*types.SendMessageResponse, error) {
	interactive := map[string]interface{}{
		"type": "list",
		"body": map[string]string{"text": list.Body},
		"action": map[string]interface{}{
			"button":   list.ButtonText,
			"sections": list.Sections,
		},
	}
	if list.Header != "" {
		interactive["header"] = map[string]string{"type": "text", "text": list.Header}
	}
	if list.Footer != "" {
		interactive["footer"] = map[string]string{"text": list.Footer}
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "interactive",
		"interactive":       interactive,
	}
	return c.sendMessage(ctx, creds, payload)
}

func (c *cloudClient) SendTemplate(ctx context.Context, creds types.Credentials, to string, tmpl types.TemplateMessage) (*types.SendMessageResponse, error) {
	template := map[string]interface{}{
		"name":     tmpl.Name,
		"language": map[string]string{"code": tmpl.LanguageCode},
	}
	if len(tmpl.BodyParams) > 0 {
		params := make([]map[string]string, 0, len(tmpl.BodyParams))
		for _, p := range tmpl.BodyParams {
			params = append(params, map[string]string{"type": "text", "text": p})
		}
		template["components"] = []map[string]interface{}{
			{"type": "body", "parameters": params},
		}
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "template",
		"template":          template,
	}
	return c.sendMessage(ctx, creds, payload)
}

func (c *cloudClient) MarkRead(ctx context.Context, creds types.Credentials, messageID string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}

	resp, err := c.post(ctx, creds, payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	return nil
}

func (c *cloudClient) sendMessage(ctx context.Context, creds types.Credentials, payload interface{}) (*types.SendMessageResponse, error) {
	resp, err := c.post(ctx, creds, payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var result types.SendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func (c *cloudClient) post(ctx context.Context, creds types.Credentials, payload interface{}) (*http.Response, error) {
	if !creds.Valid() {
		return nil, fmt.Errorf("missing whatsapp credentials")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, creds.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (c *cloudClient) apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr types.APIError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("cloud API error (status %d, code %d): %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
	}
	return fmt.Errorf("cloud API error (status %d)", resp.StatusCode)
}
