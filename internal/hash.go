package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKeyPart hashes a client-supplied value (IP address, header) so it can
// be used in a storage key without leaking or bloating it.
func HashKeyPart(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:16])
}

// RedactID keeps a short prefix of an identifier for logs.
func RedactID(id string) string {
	if len(id) <= 6 {
		return "***"
	}
	return id[:6] + "..."
}
