package types

// Credentials is the per-merchant Cloud API credential pair every
// outbound call must carry. There is no process-global default.
type Credentials struct {
	AccessToken   string
	PhoneNumberID string
}

func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// SendMessageResponse is the Cloud API response to a successful send.
type SendMessageResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MessageID returns the provider id of the sent message, if any.
func (r *SendMessageResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// APIError is the Cloud API error envelope.
type APIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// ListSection is one section of an interactive list message.
type ListSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []ListRow `json:"rows"`
}

// ListRow is one selectable row; ID is the action id surfaced back on
// the list-reply webhook.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListMessage describes an interactive list send.
type ListMessage struct {
	Header     string
	Body       string
	Footer     string
	ButtonText string
	Sections   []ListSection
}

// TemplateMessage describes a pre-approved template send.
type TemplateMessage struct {
	Name         string
	LanguageCode string
	BodyParams   []string
}
