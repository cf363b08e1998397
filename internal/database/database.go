package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"duetrack/internal/migrations"
	"duetrack/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the sqlite-backed store for sessions, conversation
// summaries, the append-only message log and the due ledger. Unique
// indexes on the mobile columns are the backstop for the at-most-one
// session/summary invariants under concurrent webhooks.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		closeAndWrap(db, &err, "failed to ping database")
		return nil, err
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		closeAndWrap(db, &err, "failed to read schema")
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		closeAndWrap(db, &err, "failed to initialize schema")
		return nil, err
	}

	enc, err := NewEncryptor()
	if err != nil {
		closeAndWrap(db, &err, "failed to initialize encryptor")
		return nil, err
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func closeAndWrap(db *sql.DB, err *error, msg string) {
	if closeErr := db.Close(); closeErr != nil {
		*err = fmt.Errorf("%s: %w (close error: %v)", msg, *err, closeErr)
		return
	}
	*err = fmt.Errorf("%s: %w", msg, *err)
}

// Sessions

// GetSession returns the conversation session for a mobile number, or
// (nil, nil) when none exists. Absence is the session-expired signal.
func (d *Database) GetSession(ctx context.Context, mobile string) (*models.Session, error) {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(mobile)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	session := &models.Session{}
	var storedMobile, metadataJSON string

	err = d.db.QueryRowContext(ctx, selectSessionQuery, lookupMobile).Scan(
		&session.ID,
		&storedMobile,
		&session.State,
		&metadataJSON,
		&session.LastInteractionAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.Mobile, err = d.encryptor.DecryptIfEnabled(storedMobile)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt mobile: %w", err)
	}

	if err := json.Unmarshal([]byte(metadataJSON), &session.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode session metadata: %w", err)
	}

	return session, nil
}

// EnsureSession creates a session in state IDLE if none exists, and
// refreshes last_interaction_at either way.
func (d *Database) EnsureSession(ctx context.Context, mobile string) error {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(mobile)
	if err != nil {
		return fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	if _, err := d.db.ExecContext(ctx, insertSessionIfAbsentQuery, lookupMobile, models.StateIdle, "{}"); err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// SaveSession upserts the session, replacing state and metadata.
func (d *Database) SaveSession(ctx context.Context, mobile string, state models.SessionState, metadata map[string]string) error {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(mobile)
	if err != nil {
		return fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	metadataJSON, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	if _, err := d.db.ExecContext(ctx, upsertSessionQuery, lookupMobile, state, metadataJSON); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// UpdateSession updates an existing session and reports whether a row
// was touched. A false return with nil error means no session exists;
// callers treat that as "no active session", not a failure.
func (d *Database) UpdateSession(ctx context.Context, mobile string, state models.SessionState, metadata map[string]string) (bool, error) {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(mobile)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	metadataJSON, err := encodeMetadata(metadata)
	if err != nil {
		return false, err
	}

	result, err := d.db.ExecContext(ctx, updateSessionQuery, state, metadataJSON, lookupMobile)
	if err != nil {
		return false, fmt.Errorf("failed to update session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return affected > 0, nil
}

// Conversations

// UpsertConversation refreshes the per-mobile summary. The unread
// increment happens inside the statement so concurrent inbound
// messages never lose counts to a read-modify-write race.
func (d *Database) UpsertConversation(ctx context.Context, conv *models.Conversation, inbound bool) error {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(conv.Mobile)
	if err != nil {
		return fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	increment := 0
	if inbound {
		increment = 1
	}

	_, err = d.db.ExecContext(ctx, upsertConversationQuery,
		lookupMobile,
		conv.CustomerID,
		conv.LastMessage,
		conv.LastMessageAt,
		increment,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}
	return nil
}

func (d *Database) GetConversation(ctx context.Context, mobile string) (*models.Conversation, error) {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(mobile)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	row := d.db.QueryRowContext(ctx, selectConversationQuery, lookupMobile)
	conv, err := d.scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns all summaries, most recent activity first.
func (d *Database) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	rows, err := d.db.QueryContext(ctx, selectAllConversationsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var conversations []*models.Conversation
	for rows.Next() {
		conv, err := d.scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// MarkConversationRead clears the unread counter for a mobile number.
func (d *Database) MarkConversationRead(ctx context.Context, mobile string) error {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(mobile)
	if err != nil {
		return fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	if _, err := d.db.ExecContext(ctx, markConversationReadQuery, lookupMobile); err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanConversation(row rowScanner) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var storedMobile string

	err := row.Scan(
		&conv.ID,
		&storedMobile,
		&conv.CustomerID,
		&conv.LastMessage,
		&conv.LastMessageAt,
		&conv.UnreadCount,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conv.Mobile, err = d.encryptor.DecryptIfEnabled(storedMobile)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt mobile: %w", err)
	}
	return conv, nil
}

// Messages

// InsertMessage appends one record to the audit trail. Records are
// never updated afterwards.
func (d *Database) InsertMessage(ctx context.Context, record *models.MessageRecord) error {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(record.Mobile)
	if err != nil {
		return fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	encryptedText, err := d.encryptor.EncryptIfEnabled(record.Text)
	if err != nil {
		return fmt.Errorf("failed to encrypt text: %w", err)
	}

	metadataJSON, err := encodeMetadata(record.Metadata)
	if err != nil {
		return err
	}
	encryptedMetadata, err := d.encryptor.EncryptIfEnabled(metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt metadata: %w", err)
	}

	_, err = d.db.ExecContext(ctx, insertMessageQuery,
		lookupMobile,
		record.Direction,
		record.Type,
		encryptedText,
		record.TemplateName,
		record.WAMessageID,
		record.Status,
		record.CustomerID,
		encryptedMetadata,
		record.ResponseToMessageID,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// HasResponseToMessage reports whether any record already answers the
// given provider message id. This is the dedup guard's source of
// truth.
func (d *Database) HasResponseToMessage(ctx context.Context, waMessageID string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, selectResponseExistsQuery, waMessageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check response existence: %w", err)
	}
	return true, nil
}

// GetMessagesByMobile returns the chronological message log for one
// mobile number.
func (d *Database) GetMessagesByMobile(ctx context.Context, mobile string, limit int) ([]*models.MessageRecord, error) {
	lookupMobile, err := d.encryptor.EncryptForLookupIfEnabled(mobile)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	if limit <= 0 {
		limit = 100
	}

	rows, err := d.db.QueryContext(ctx, selectMessagesByMobileQuery, lookupMobile, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*models.MessageRecord
	for rows.Next() {
		record := &models.MessageRecord{}
		var storedMobile, storedText, storedMetadata string
		var templateName, waMessageID sql.NullString

		err := rows.Scan(
			&record.ID,
			&storedMobile,
			&record.Direction,
			&record.Type,
			&storedText,
			&templateName,
			&waMessageID,
			&record.Status,
			&record.CustomerID,
			&storedMetadata,
			&record.ResponseToMessageID,
			&record.Timestamp,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		record.TemplateName = templateName.String
		record.WAMessageID = waMessageID.String

		record.Mobile, err = d.encryptor.DecryptIfEnabled(storedMobile)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt mobile: %w", err)
		}
		record.Text, err = d.encryptor.DecryptIfEnabled(storedText)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt text: %w", err)
		}

		metadataJSON, err := d.encryptor.DecryptIfEnabled(storedMetadata)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt metadata: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &record.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode message metadata: %w", err)
		}

		records = append(records, record)
	}
	return records, rows.Err()
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}
