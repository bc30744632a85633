// Package checksum fingerprints stored values so snapshots of the store can
// be compared key by key.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether data hashes to sum.
func Matches(sum string, data []byte) bool {
	return sum != "" && Sum(data) == sum
}
