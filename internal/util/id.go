// Package util holds small helpers shared across packages.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// ObjectKey returns a random storage key under the given prefix, in the
// path form object stores expect ("audio/3fa9...").
func ObjectKey(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "/" + hex.EncodeToString(bytes)
}
