package types

type IntentType string

const (
	IntentText   IntentType = "TEXT"
	IntentList   IntentType = "LIST"
	IntentButton IntentType = "BUTTON"
)

// Intent is the normalized form of one inbound message: what the user
// did, stripped of Cloud API envelope noise. A nil Intent from the
// parser means the webhook carried nothing actionable.
type Intent struct {
	Type      IntentType
	From      string
	MessageID string
	// Text is the lowercased body for TEXT intents, or the row/button
	// title (falling back to the action id) for interactive ones.
	Text string
	// ActionID is the list-row or button id, empty for TEXT intents.
	ActionID string
	// ReplyToMessageID is the id of the message the user replied to,
	// when the message carried a reply context. It keys the dedup
	// guard and threads the business response.
	ReplyToMessageID string
}

// IsReply reports whether the intent replies to a specific prior
// message.
func (i *Intent) IsReply() bool {
	return i.ReplyToMessageID != ""
}
