package generation

import (
	"strings"

	"adgen/internal/apperrors"
)

// MinKeyLength is the shortest credential treated as present.
const MinKeyLength = 6

// CheckKey returns ApiKeyMissing when key is absent or too short.
func CheckKey(name, key string) error {
	if len([]rune(strings.TrimSpace(key))) < MinKeyLength {
		return apperrors.APIKeyMissing(name)
	}
	return nil
}
