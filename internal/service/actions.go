package service

import (
	"strings"

	watypes "duetrack/pkg/whatsapp/types"
)

// Action ids surfaced by list/button replies. New actions are added by
// registering a handler on the router, no schema change needed.
const (
	ActionCheckCurrentDue = "CHECK_CURRENT_DUE"
	ActionPayToday        = "PAY_TODAY"
	ActionWillPayToday    = "WILL_PAY_TODAY"
	ActionPaidToday       = "PAID_TODAY"
	ActionPayWeek         = "PAY_WEEK"
	ActionPaySoon         = "PAY_SOON"
	ActionNeedStatement   = "NEED_STATEMENT"
)

// SessionTimeoutText is sent when an action requires an active session
// and none exists for the sender.
const SessionTimeoutText = "Your session timed out. Please type Hi to restart."

// IsGreeting reports whether a lowercased text body (re)starts the
// conversation flow.
func IsGreeting(text string) bool {
	switch strings.TrimSpace(text) {
	case "hi", "hello":
		return true
	}
	return false
}

// MainMenu is the interactive list sent on every greeting. Row ids are
// the action ids the list-reply webhook carries back.
func MainMenu() watypes.ListMessage {
	return watypes.ListMessage{
		Header:     "Dues Assistant",
		Body:       "Hi! How can we help you today?",
		ButtonText: "Choose an option",
		Sections: []watypes.ListSection{
			{
				Title: "Your dues",
				Rows: []watypes.ListRow{
					{ID: ActionCheckCurrentDue, Title: "Check current due"},
					{ID: ActionNeedStatement, Title: "Request statement"},
				},
			},
			{
				Title: "Payment",
				Rows: []watypes.ListRow{
					{ID: ActionPayToday, Title: "Pay today"},
					{ID: ActionPaidToday, Title: "Already paid"},
					{ID: ActionPayWeek, Title: "Pay within a week"},
					{ID: ActionPaySoon, Title: "Pay soon"},
				},
			},
		},
	}
}

var acknowledgmentTexts = map[string]string{
	ActionPayToday:      "Thank you! We have noted that you will pay today.",
	ActionWillPayToday:  "Thank you! We have noted that you will pay later today.",
	ActionPaidToday:     "Thank you for the payment confirmation. We will verify and update your account.",
	ActionPayWeek:       "Noted. We will expect your payment within the week.",
	ActionPaySoon:       "Noted. We will expect your payment soon.",
	ActionNeedStatement: "We have forwarded your statement request. You will receive it shortly.",
}

// AcknowledgmentText returns the reply sent after a payment-intent
// action is recorded. Empty string for ids without a canned reply.
func AcknowledgmentText(actionID string) string {
	return acknowledgmentTexts[actionID]
}
