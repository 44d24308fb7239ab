package utilities

import (
	"strings"

	"github.com/google/uuid"
)

// NewSessionToken returns an opaque 32-char session token.
func NewSessionToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
