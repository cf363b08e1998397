package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"duetrack/internal/constants"
	"duetrack/internal/models"
)

var (
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
	ErrMissingVerifyToken = models.ConfigError{Message: "missing webhook verify token"}
)

func LoadConfig(path string) (*models.Config, error) {
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("invalid config path: %s", path)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path checked for traversal above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	// Security validation runs after overrides so env-provided secrets count
	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.WhatsApp.APIBaseURL == "" {
		c.WhatsApp.APIBaseURL = constants.DefaultGraphAPIBaseURL
	}
	if c.WhatsApp.APIVersion == "" {
		c.WhatsApp.APIVersion = constants.DefaultGraphAPIVersion
	}
	if c.WhatsApp.TimeoutSec <= 0 {
		c.WhatsApp.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.WhatsApp.MenuTemplateName == "" {
		c.WhatsApp.MenuTemplateName = constants.DefaultMenuTemplateName
	}
	if c.WhatsApp.TemplateLanguage == "" {
		c.WhatsApp.TemplateLanguage = constants.DefaultTemplateLanguage
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}

	if c.Reminder.CooldownHours <= 0 {
		c.Reminder.CooldownHours = constants.DefaultReminderCooldownHours
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("WHATSAPP_API_BASE_URL"); url != "" {
		c.WhatsApp.APIBaseURL = url
	}
	if version := os.Getenv("WHATSAPP_API_VERSION"); version != "" {
		c.WhatsApp.APIVersion = version
	}

	// SECURITY: the verify token should come from the environment
	if token := os.Getenv("DUETRACK_VERIFY_TOKEN"); token != "" {
		c.WhatsApp.VerifyToken = token
	}

	if path := os.Getenv("DUETRACK_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if level := os.Getenv("DUETRACK_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("DUETRACK_ENV") == "production"

	if isProduction {
		if c.WhatsApp.VerifyToken == "" {
			return ErrMissingVerifyToken
		}
		if len(c.WhatsApp.VerifyToken) < 16 {
			return models.ConfigError{Message: "webhook verify token must be at least 16 characters long"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
		if os.Getenv("DUETRACK_ENABLE_ENCRYPTION") != "true" {
			fmt.Fprintf(os.Stderr, "WARNING: database encryption disabled in production. Set DUETRACK_ENABLE_ENCRYPTION=true.\n")
		}
	} else {
		if c.WhatsApp.VerifyToken == "" {
			fmt.Fprintf(os.Stderr, "WARNING: webhook verify token not set. Set DUETRACK_VERIFY_TOKEN for the GET verification handshake.\n")
		}
	}

	return nil
}
