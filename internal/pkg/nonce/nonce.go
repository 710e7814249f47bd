package nonce

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New generates a cryptographically random 64-character hex nonce.
// Wallet-link challenges embed it, so every challenge message is unique
// and a captured signature cannot be replayed after rotation.
func New() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
