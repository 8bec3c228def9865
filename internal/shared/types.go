package shared

import (
	"crypto/rand"
	"encoding/hex"
)

// NewToken returns 32 random hex characters.
func NewToken() string {
	return randomHex(16)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
