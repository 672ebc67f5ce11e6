package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the hex sha256 of data, used to fingerprint uploads.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
