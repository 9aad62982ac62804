// Package checksum provides the content digests used by the scan cache.
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

// SumString returns the hex-encoded SHA-256 digest of s.
func SumString(s string) string {
	return Sum([]byte(s))
}

// Short returns the first n hex characters of the digest of s. Used to derive
// stable short identifiers such as per-repository cache file names.
func Short(s string, n int) string {
	sum := SumString(s)
	if n > len(sum) {
		n = len(sum)
	}
	return sum[:n]
}
