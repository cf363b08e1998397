package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"duetrack/internal/models"
)

// Merchants and customers

func (d *Database) SaveMerchant(ctx context.Context, merchant *models.Merchant) error {
	encryptedToken, err := d.encryptor.EncryptIfEnabled(merchant.Credentials.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	_, err = d.db.ExecContext(ctx, upsertMerchantQuery,
		merchant.ID,
		merchant.Name,
		encryptedToken,
		merchant.Credentials.PhoneNumberID,
		merchant.Credentials.WABAID,
		merchant.Credentials.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to save merchant: %w", err)
	}
	return nil
}

func (d *Database) GetMerchant(ctx context.Context, merchantID string) (*models.Merchant, error) {
	merchant := &models.Merchant{}
	var storedToken string

	err := d.db.QueryRowContext(ctx, selectMerchantQuery, merchantID).Scan(
		&merchant.ID,
		&merchant.Name,
		&storedToken,
		&merchant.Credentials.PhoneNumberID,
		&merchant.Credentials.WABAID,
		&merchant.Credentials.Status,
		&merchant.CreatedAt,
		&merchant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}

	merchant.Credentials.AccessToken, err = d.encryptor.DecryptIfEnabled(storedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return merchant, nil
}

func (d *Database) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(customer.Mobile)
	if err != nil {
		return fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	_, err = d.db.ExecContext(ctx, upsertCustomerQuery,
		customer.ID,
		customer.MerchantID,
		customer.Name,
		lookupMobile,
		customer.DueAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

func (d *Database) GetCustomerByMobile(ctx context.Context, mobile string) (*models.Customer, error) {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(mobile)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	customer := &models.Customer{}
	var storedMobile string

	err = d.db.QueryRowContext(ctx, selectCustomerByMobileQuery, lookupMobile).Scan(
		&customer.ID,
		&customer.MerchantID,
		&customer.Name,
		&storedMobile,
		&customer.DueAmount,
		&customer.LastReplyAction,
		&customer.LastReplyAt,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	customer.Mobile, err = d.encryptor.DecryptIfEnabled(storedMobile)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt mobile: %w", err)
	}
	return customer, nil
}

// GetCustomerWithCredentials resolves a customer and their merchant's
// WhatsApp credentials in one query. Returns (nil, zero, nil) when the
// mobile number is not a known customer.
func (d *Database) GetCustomerWithCredentials(ctx context.Context, mobile string) (*models.Customer, models.WhatsAppCredentials, error) {
	var creds models.WhatsAppCredentials

	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(mobile)
	if err != nil {
		return nil, creds, fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	customer := &models.Customer{}
	var storedMobile, storedToken string

	err = d.db.QueryRowContext(ctx, selectCustomerWithCredentialsQuery, lookupMobile).Scan(
		&customer.ID,
		&customer.MerchantID,
		&customer.Name,
		&storedMobile,
		&customer.DueAmount,
		&customer.LastReplyAction,
		&customer.LastReplyAt,
		&customer.CreatedAt,
		&customer.UpdatedAt,
		&storedToken,
		&creds.PhoneNumberID,
		&creds.WABAID,
		&creds.Status,
	)
	if err == sql.ErrNoRows {
		return nil, creds, nil
	}
	if err != nil {
		return nil, creds, fmt.Errorf("failed to get customer with credentials: %w", err)
	}

	customer.Mobile, err = d.encryptor.DecryptIfEnabled(storedMobile)
	if err != nil {
		return nil, creds, fmt.Errorf("failed to decrypt mobile: %w", err)
	}
	creds.AccessToken, err = d.encryptor.DecryptIfEnabled(storedToken)
	if err != nil {
		return nil, creds, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return customer, creds, nil
}

// UpdateCustomerReply records the customer's latest reminder response
// on their profile.
func (d *Database) UpdateCustomerReply(ctx context.Context, mobile, actionID string, repliedAt time.Time) error {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(mobile)
	if err != nil {
		return fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	if _, err := d.db.ExecContext(ctx, updateCustomerReplyQuery, actionID, repliedAt, lookupMobile); err != nil {
		return fmt.Errorf("failed to update customer reply: %w", err)
	}
	return nil
}

// Transactions

func (d *Database) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := d.db.ExecContext(ctx, insertTransactionQuery,
		tx.ID,
		tx.CustomerID,
		tx.Amount,
		tx.Status,
		tx.DueDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetPendingDueTotal sums a customer's pending transactions.
func (d *Database) GetPendingDueTotal(ctx context.Context, customerID string) (float64, int, error) {
	var total float64
	var count int
	if err := d.db.QueryRowContext(ctx, selectPendingDueQuery, customerID).Scan(&total, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to sum pending dues: %w", err)
	}
	return total, count, nil
}

// GetLatestPendingTransaction returns the customer's pending
// transaction with the earliest due date, or (nil, nil) when the
// customer has no pending dues.
func (d *Database) GetLatestPendingTransaction(ctx context.Context, customerID string) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := d.db.QueryRowContext(ctx, selectLatestPendingTransactionQuery, customerID).Scan(
		&tx.ID,
		&tx.CustomerID,
		&tx.Amount,
		&tx.Status,
		&tx.ReplyAction,
		&tx.ReminderMessageID,
		&tx.DueDate,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transaction: %w", err)
	}
	return tx, nil
}

// UpdateTransactionReply stores the customer's reply action against a
// transaction. A non-nil reminderMessageID is only recorded when the
// transaction doesn't already reference a reminder message.
func (d *Database) UpdateTransactionReply(ctx context.Context, transactionID, actionID string, reminderMessageID *string, status models.TransactionStatus) error {
	if _, err := d.db.ExecContext(ctx, updateTransactionReplyQuery, actionID, reminderMessageID, status, transactionID); err != nil {
		return fmt.Errorf("failed to update transaction reply: %w", err)
	}
	return nil
}

// Notifications and reminders

func (d *Database) InsertNotification(ctx context.Context, n *models.Notification) error {
	_, err := d.db.ExecContext(ctx, insertNotificationQuery,
		n.MerchantID,
		n.CustomerID,
		n.Title,
		n.Message,
		n.Type,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (d *Database) InsertReminder(ctx context.Context, r *models.Reminder) error {
	_, err := d.db.ExecContext(ctx, insertReminderQuery,
		r.ID,
		r.TransactionID,
		r.ReminderType,
		r.Status,
		r.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

// HasRecentReminder reports whether a reminder of the given type was
// sent for the transaction on or after the cutoff time.
func (d *Database) HasRecentReminder(ctx context.Context, transactionID, reminderType string, since time.Time) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, selectRecentReminderQuery, transactionID, reminderType, since).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check recent reminder: %w", err)
	}
	return true, nil
}
