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

// Versioned returns the digest of data prefixed with a schema version tag.
// Bumping the tag invalidates stored digests for byte-identical content,
// forcing a re-index after parsing or inheritance rules change.
func Versioned(version string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
