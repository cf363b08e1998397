package privacy

import (
	"strings"

	"duetrack/internal/constants"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits.
// Example: "919812345678" -> "********5678".
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	keep := constants.DefaultPhoneMaskDigits
	if strings.HasPrefix(phone, "+") {
		if len(phone) <= keep+1 {
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-1-keep) + phone[len(phone)-keep:]
	}

	if len(phone) <= keep {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-keep) + phone[len(phone)-keep:]
}

// MaskMessageID masks a Cloud API message id while keeping the prefix
// and the tail for correlation during debugging.
// Example: "wamid.HBgMOTE5ODEyMzQ1Njc4" -> "wamid.****MzQ1Njc4".
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}

	keep := constants.DefaultMessageIDDigits
	if idx := strings.Index(messageID, "."); idx > 0 {
		prefix := messageID[:idx+1]
		rest := messageID[idx+1:]
		if len(rest) <= keep {
			return prefix + strings.Repeat("*", len(rest))
		}
		return prefix + "****" + rest[len(rest)-keep:]
	}

	if len(messageID) <= keep {
		return strings.Repeat("*", len(messageID))
	}
	return "****" + messageID[len(messageID)-keep:]
}

// MaskSensitiveFields masks known sensitive keys in a log field map.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "mobile", "phone", "from", "to":
			masked[k] = MaskPhoneNumber(s)
		case "message_id", "wa_message_id", "context_id", "response_to":
			masked[k] = MaskMessageID(s)
		case "access_token":
			masked[k] = "***"
		default:
			masked[k] = v
		}
	}
	return masked
}
