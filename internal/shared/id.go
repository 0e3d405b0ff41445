package shared

import (
	"strings"

	"github.com/google/uuid"
)

// NewID generates a prefixed identifier such as "user_4f1c…".
// Prefixed IDs make log lines and foreign keys self-describing.
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw
}
