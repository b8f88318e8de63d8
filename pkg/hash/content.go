package hash

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Content returns the blake2b-256 hex digest of s. Used to detect whether a
// chapter's content actually changed between saves without keeping the full
// previous body around.
func Content(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
