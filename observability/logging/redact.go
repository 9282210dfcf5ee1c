package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// sensitiveKeys are masked by every logger built by New, whatever the
// attribute constructor used. Keys compare case-insensitively with
// underscores and dashes ignored.
var sensitiveKeys = map[string]struct{}{
	"rootsecret":      {},
	"passphrase":      {},
	"authorization":   {},
	"token":           {},
	"authtoken":       {},
	"secret":          {},
	"email":           {},
	"phone":           {},
	"deliveryaddress": {},
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "").Replace(key)
}

// IsSecret reports whether key names a value that must never be logged.
func IsSecret(key string) bool {
	_, ok := sensitiveKeys[normalizeKey(key)]
	return ok
}

// MaskValue returns the placeholder for non-empty values. Empty values pass
// through so absent fields stay recognisable.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField builds an attribute whose value is masked when key is sensitive.
func MaskField(key, value string) slog.Attr {
	if IsSecret(key) {
		return slog.String(key, MaskValue(value))
	}
	return slog.String(key, value)
}

// redact is applied to every attribute by the handler built in New.
func redact(attr slog.Attr) slog.Attr {
	if !IsSecret(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, MaskValue(attr.Value.String()))
	}
	return slog.String(attr.Key, RedactedValue)
}
