package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewSessionToken returns 32 bytes of entropy encoded as unpadded base64url.
func NewSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
