package service

// Standard Field Names
// Use these exact field names for consistency across all logging calls
const (
	// Core identifiers
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"
	LogFieldMessageID = "message_id"
	LogFieldMobile    = "mobile"
	LogFieldCustomer  = "customer_id"
	LogFieldMerchant  = "merchant_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	// Message and event fields
	LogFieldEvent       = "event"
	LogFieldMessageType = "message_type"
	LogFieldDirection   = "direction" // "INBOUND" or "OUTBOUND"
	LogFieldActionID    = "action_id"
	LogFieldState       = "state"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	// Network and external services
	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	// Error and debugging
	LogFieldErrorCode  = "error_code"
	LogFieldErrorType  = "error_type"
	LogFieldRetryCount = "retry_count"
	LogFieldAttempt    = "attempt"
)

// Log Level Usage Guidelines
//
// DEBUG: Detailed flow information, raw payload shapes (sanitized).
// INFO: Key events: webhook accepted, action dispatched, reply sent.
// WARN: Unexpected but recoverable: unknown action, missing session,
//       audit write failed on a best-effort path.
// ERROR: Failed operations that end the current step: send failures,
//        database errors on required paths.
// FATAL: Startup cannot proceed: missing config, database unavailable.
