package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations follows the OWASP recommendation for PBKDF2-SHA256.
	DefaultIterations = 600_000
	saltBytes         = 32
	derivedKeyLen     = 32
)

// PasswordHasher derives PBKDF2-SHA256 password hashes. The zero value uses
// DefaultIterations; tests lower Iterations to keep runs fast.
type PasswordHasher struct {
	Iterations int
}

func (h PasswordHasher) iterations() int {
	if h.Iterations <= 0 {
		return DefaultIterations
	}
	return h.Iterations
}

// Hash returns the base64 derived key and the hex salt it was derived with.
func (h PasswordHasher) Hash(password string) (hash, salt string, err error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	salt = hex.EncodeToString(raw)
	return h.derive(password, salt), salt, nil
}

// Verify reports whether password matches hash under salt. The comparison
// is constant time.
func (h PasswordHasher) Verify(password, hash, salt string) bool {
	computed := h.derive(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

func (h PasswordHasher) derive(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), h.iterations(), derivedKeyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}
