package whatsapp

import (
	"strings"

	"duetrack/pkg/whatsapp/types"
)

// ParseEntry normalizes one webhook entry into an Intent. It returns
// nil when the entry carries no message, which includes pure
// delivery-status callbacks; callers must treat nil as a no-op, not an
// error.
func ParseEntry(entry *types.Entry) *types.Intent {
	msg := firstMessage(entry)
	if msg == nil {
		return nil
	}

	intent := &types.Intent{
		From:      msg.From,
		MessageID: msg.ID,
	}
	if msg.Context != nil {
		intent.ReplyToMessageID = msg.Context.ID
	}

	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return nil
		}
		intent.Type = types.IntentText
		intent.Text = strings.ToLower(strings.TrimSpace(msg.Text.Body))
		return intent

	case "interactive":
		if msg.Interactive == nil {
			return nil
		}
		switch msg.Interactive.Type {
		case "list_reply":
			if msg.Interactive.ListReply == nil {
				return nil
			}
			intent.Type = types.IntentList
			intent.ActionID = msg.Interactive.ListReply.ID
			intent.Text = replyText(msg.Interactive.ListReply)
			return intent
		case "button_reply":
			if msg.Interactive.ButtonReply == nil {
				return nil
			}
			intent.Type = types.IntentButton
			intent.ActionID = msg.Interactive.ButtonReply.ID
			intent.Text = replyText(msg.Interactive.ButtonReply)
			return intent
		}
		return nil

	case "button":
		// Template quick-reply buttons arrive as a top-level button
		// payload rather than an interactive envelope.
		if msg.Button == nil {
			return nil
		}
		intent.Type = types.IntentButton
		intent.ActionID = msg.Button.Payload
		if msg.Button.Text != "" {
			intent.Text = msg.Button.Text
		} else {
			intent.Text = msg.Button.Payload
		}
		return intent
	}

	return nil
}

// FirstEntry extracts the first entry of a payload, nil when absent.
func FirstEntry(payload *types.WebhookPayload) *types.Entry {
	if payload == nil || len(payload.Entry) == 0 {
		return nil
	}
	return &payload.Entry[0]
}

func firstMessage(entry *types.Entry) *types.Message {
	if entry == nil || len(entry.Changes) == 0 {
		return nil
	}
	value := entry.Changes[0].Value
	if len(value.Messages) == 0 {
		return nil
	}
	return &value.Messages[0]
}

func replyText(reply *types.Reply) string {
	if reply.Title != "" {
		return reply.Title
	}
	return reply.ID
}
