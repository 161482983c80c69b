package identity

import (
	"crypto/sha256"
	"fmt"
)

// HashToken derives the registry key for an opaque session token. Only
// the hash is ever stored or compared.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
