package util

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// TextKey returns a stable key for a piece of review text.
// Surrounding whitespace does not change the key.
func TextKey(text string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
