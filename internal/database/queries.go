package database

// Session queries
const (
	upsertSessionQuery = `
		INSERT INTO sessions (mobile, current_state, metadata, last_interaction_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(mobile) DO UPDATE SET
			current_state = excluded.current_state,
			metadata = excluded.metadata,
			last_interaction_at = CURRENT_TIMESTAMP
	`

	insertSessionIfAbsentQuery = `
		INSERT INTO sessions (mobile, current_state, metadata, last_interaction_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(mobile) DO UPDATE SET
			last_interaction_at = CURRENT_TIMESTAMP
	`

	selectSessionQuery = `
		SELECT id, mobile, current_state, metadata, last_interaction_at, created_at, updated_at
		FROM sessions
		WHERE mobile = ?
	`

	updateSessionQuery = `
		UPDATE sessions
		SET current_state = ?, metadata = ?, last_interaction_at = CURRENT_TIMESTAMP
		WHERE mobile = ?
	`
)

// Conversation queries
const (
	upsertConversationQuery = `
		INSERT INTO conversations (mobile, customer_id, last_message, last_message_at, unread_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(mobile) DO UPDATE SET
			last_message = excluded.last_message,
			last_message_at = excluded.last_message_at,
			unread_count = unread_count + excluded.unread_count,
			customer_id = COALESCE(conversations.customer_id, excluded.customer_id)
	`

	selectConversationQuery = `
		SELECT id, mobile, customer_id, last_message, last_message_at, unread_count, created_at, updated_at
		FROM conversations
		WHERE mobile = ?
	`

	selectAllConversationsQuery = `
		SELECT id, mobile, customer_id, last_message, last_message_at, unread_count, created_at, updated_at
		FROM conversations
		ORDER BY last_message_at DESC
	`

	markConversationReadQuery = `
		UPDATE conversations
		SET unread_count = 0
		WHERE mobile = ?
	`
)

// Message queries
const (
	insertMessageQuery = `
		INSERT INTO messages (
			mobile, direction, type, text, template_name, wa_message_id,
			status, customer_id, metadata, response_to_message_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectResponseExistsQuery = `
		SELECT 1 FROM messages
		WHERE response_to_message_id = ?
		LIMIT 1
	`

	selectMessagesByMobileQuery = `
		SELECT id, mobile, direction, type, text, template_name, wa_message_id,
			   status, customer_id, metadata, response_to_message_id, timestamp, created_at
		FROM messages
		WHERE mobile = ?
		ORDER BY timestamp ASC
		LIMIT ?
	`
)

// Customer and merchant queries
const (
	upsertMerchantQuery = `
		INSERT INTO merchants (id, name, wa_access_token, wa_phone_number_id, wa_waba_id, wa_status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			wa_access_token = excluded.wa_access_token,
			wa_phone_number_id = excluded.wa_phone_number_id,
			wa_waba_id = excluded.wa_waba_id,
			wa_status = excluded.wa_status
	`

	selectMerchantQuery = `
		SELECT id, name, wa_access_token, wa_phone_number_id, wa_waba_id, wa_status, created_at, updated_at
		FROM merchants
		WHERE id = ?
	`

	upsertCustomerQuery = `
		INSERT INTO customers (id, merchant_id, name, mobile, due_amount)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			merchant_id = excluded.merchant_id,
			name = excluded.name,
			mobile = excluded.mobile,
			due_amount = excluded.due_amount
	`

	selectCustomerByMobileQuery = `
		SELECT id, merchant_id, name, mobile, due_amount, last_reply_action, last_reply_at, created_at, updated_at
		FROM customers
		WHERE mobile = ?
	`

	selectCustomerWithCredentialsQuery = `
		SELECT c.id, c.merchant_id, c.name, c.mobile, c.due_amount,
			   c.last_reply_action, c.last_reply_at, c.created_at, c.updated_at,
			   m.wa_access_token, m.wa_phone_number_id, m.wa_waba_id, m.wa_status
		FROM customers c
		JOIN merchants m ON m.id = c.merchant_id
		WHERE c.mobile = ?
	`

	updateCustomerReplyQuery = `
		UPDATE customers
		SET last_reply_action = ?, last_reply_at = ?
		WHERE mobile = ?
	`
)

// Ledger queries
const (
	insertTransactionQuery = `
		INSERT INTO transactions (id, customer_id, amount, status, due_date)
		VALUES (?, ?, ?, ?, ?)
	`

	selectPendingDueQuery = `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM transactions
		WHERE customer_id = ? AND status = 'pending'
	`

	selectLatestPendingTransactionQuery = `
		SELECT id, customer_id, amount, status, reply_action, reminder_message_id, due_date, created_at, updated_at
		FROM transactions
		WHERE customer_id = ? AND status = 'pending'
		ORDER BY due_date ASC
		LIMIT 1
	`

	updateTransactionReplyQuery = `
		UPDATE transactions
		SET reply_action = ?, reminder_message_id = COALESCE(?, reminder_message_id), status = ?
		WHERE id = ?
	`

	insertNotificationQuery = `
		INSERT INTO notifications (merchant_id, customer_id, title, message, type)
		VALUES (?, ?, ?, ?, ?)
	`

	insertReminderQuery = `
		INSERT INTO reminders (id, transaction_id, reminder_type, status, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`

	selectRecentReminderQuery = `
		SELECT 1 FROM reminders
		WHERE transaction_id = ? AND reminder_type = ? AND status = 'sent' AND sent_at >= ?
		LIMIT 1
	`
)
