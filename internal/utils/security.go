package contextutils

import (
	"strings"
)

// MaskSecret masks an API key or token for logging.
// Only the first 4 and last 4 characters survive.
func MaskSecret(secret string) string {
	if secret == "" {
		return "[EMPTY]"
	}

	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}

	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
