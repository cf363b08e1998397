package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"duetrack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enableTestEncryption(t *testing.T) {
	t.Helper()
	t.Setenv("DUETRACK_ENABLE_ENCRYPTION", "true")
	t.Setenv("DUETRACK_ENCRYPTION_SECRET", "test-secret-with-at-least-32-characters!")
}

func TestEncryptor_Roundtrip(t *testing.T) {
	enableTestEncryption(t)

	enc, err := NewEncryptor()
	require.NoError(t, err)

	plaintext := "919812345678"
	encrypted, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)

	decrypted, err := enc.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptor_RandomNonce(t *testing.T) {
	enableTestEncryption(t)

	enc, err := NewEncryptor()
	require.NoError(t, err)

	first, err := enc.Encrypt("same message")
	require.NoError(t, err)
	second, err := enc.Encrypt("same message")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "general encryption must not be deterministic")
}

func TestEncryptor_LookupDeterminism(t *testing.T) {
	enableTestEncryption(t)

	enc, err := NewEncryptor()
	require.NoError(t, err)

	first, err := enc.EncryptForLookup("919812345678")
	require.NoError(t, err)
	second, err := enc.EncryptForLookup("919812345678")
	require.NoError(t, err)
	assert.Equal(t, first, second, "lookup encryption must be deterministic for equality predicates")

	other, err := enc.EncryptForLookup("919800000000")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	// Still decryptable
	decrypted, err := enc.Decrypt(first)
	require.NoError(t, err)
	assert.Equal(t, "919812345678", decrypted)
}

func TestEncryptor_Disabled(t *testing.T) {
	t.Setenv("DUETRACK_ENABLE_ENCRYPTION", "false")

	enc, err := NewEncryptor()
	require.NoError(t, err)

	out, err := enc.EncryptIfEnabled("plaintext stays")
	require.NoError(t, err)
	assert.Equal(t, "plaintext stays", out)
}

func TestEncryptor_MissingSecret(t *testing.T) {
	t.Setenv("DUETRACK_ENABLE_ENCRYPTION", "true")
	t.Setenv("DUETRACK_ENCRYPTION_SECRET", "")

	_, err := NewEncryptor()
	require.Error(t, err)
}

func TestEncryptor_ShortSecret(t *testing.T) {
	t.Setenv("DUETRACK_ENABLE_ENCRYPTION", "true")
	t.Setenv("DUETRACK_ENCRYPTION_SECRET", "too-short")

	_, err := NewEncryptor()
	require.Error(t, err)
}

func TestDatabase_EncryptedAtRest(t *testing.T) {
	enableTestEncryption(t)

	db, err := New(filepath.Join(t.TempDir(), "enc.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()

	require.NoError(t, db.EnsureSession(ctx, "919812345678"))
	session, err := db.GetSession(ctx, "919812345678")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "919812345678", session.Mobile)

	// The stored mobile column is not the plaintext
	var stored string
	err = db.db.QueryRow("SELECT mobile FROM sessions LIMIT 1").Scan(&stored)
	require.NoError(t, err)
	assert.NotEqual(t, "919812345678", stored)

	// Message text comes back decrypted too
	require.NoError(t, db.InsertMessage(ctx, &models.MessageRecord{
		Mobile:    "919812345678",
		Direction: models.DirectionInbound,
		Type:      models.MessageTypeText,
		Text:      "hi",
		Status:    models.MessageStatusDelivered,
		Timestamp: time.Now().UTC(),
	}))
	records, err := db.GetMessagesByMobile(ctx, "919812345678", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hi", records[0].Text)
	assert.Equal(t, "919812345678", records[0].Mobile)
}
