package constants

// Default retry configuration values
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultDatabaseRetryAttempts = 3
)

// Default server configuration values
const (
	DefaultServerPort           = 8084
	DefaultServerReadTimeoutSec = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
)

// Default WhatsApp Cloud API values
const (
	DefaultGraphAPIBaseURL   = "https://graph.facebook.com"
	DefaultGraphAPIVersion   = "v19.0"
	DefaultHTTPTimeoutSec    = 30
	DefaultMenuTemplateName  = "main_menu"
	DefaultTemplateLanguage  = "en"
)

// Default reminder configuration values
const (
	DefaultReminderCooldownHours = 24
)

// Privacy settings
const (
	DefaultPhoneMaskDigits  = 4
	DefaultMessageIDDigits  = 8
)

// Encryption parameters
const (
	EncryptionSalt       = "duetrack-db-salt-v1"
	EncryptionLookupSalt = "duetrack-lookup-salt-v1"
)
