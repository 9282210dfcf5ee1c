package common

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	coreerrors "sodap/core/errors"
)

// NormalizeText applies NFC normalisation, trims surrounding whitespace and
// rejects control characters. maxBytes bounds the encoded length; zero means
// unbounded.
func NormalizeText(field, value string, maxBytes int) (string, error) {
	normalized := strings.TrimSpace(norm.NFC.String(value))
	for _, r := range normalized {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %s contains control characters", coreerrors.ErrInvalidInput, field)
		}
	}
	if maxBytes > 0 && len(normalized) > maxBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", coreerrors.ErrInvalidInput, field, maxBytes)
	}
	return normalized, nil
}

// RequireText is NormalizeText that also rejects empty values.
func RequireText(field, value string, maxBytes int) (string, error) {
	normalized, err := NormalizeText(field, value, maxBytes)
	if err != nil {
		return "", err
	}
	if normalized == "" {
		return "", fmt.Errorf("%w: %s must not be empty", coreerrors.ErrInvalidInput, field)
	}
	return normalized, nil
}
