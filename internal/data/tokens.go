package data

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const ResetTokenTTL = 10 * time.Minute

// GenerateResetToken returns the plaintext token to email and the hash to store.
func GenerateResetToken() (string, string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	plaintext := hex.EncodeToString(b)
	return plaintext, HashResetToken(plaintext), nil
}

func HashResetToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
