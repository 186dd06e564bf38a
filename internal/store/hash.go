package store

import (
	"crypto/sha256"
	"fmt"
)

// HashDocument computes SHA-256 of source + content for deduplication.
//
// Including the source means the same text arriving from two different
// places creates two separate documents (different provenance). This is
// the canonical hash used everywhere a document is checked for
// duplicates.
func HashDocument(content, source string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0}) // separator
	h.Write([]byte(content))
	return fmt.Sprintf("%x", h.Sum(nil))
}
