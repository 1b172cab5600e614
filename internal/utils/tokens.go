package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenHex returns a random hex string of n bytes (2n characters).
func TokenHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("utils: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
