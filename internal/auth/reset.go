package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// resetTokenBytes yields 256 bits of entropy per token.
const resetTokenBytes = 32

// NewResetToken returns an opaque, cryptographically random reset token.
func NewResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
