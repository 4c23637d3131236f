// ABOUTME: Content fingerprinting for story deduplication
// ABOUTME: SHA-256 over trimmed text, category and topic joined by a fixed delimiter

package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintDelimiter separates the fingerprinted fields. The unit
// separator cannot appear in category values, so adjacent fields never
// bleed into each other.
const fingerprintDelimiter = "\x1f"

// Fingerprint returns the stable content hash for a story. The text is
// trimmed before joining, so whitespace around the body never distinguishes
// otherwise identical stories. Topic is the empty string when absent.
func Fingerprint(text, category, topic string) string {
	joined := strings.TrimSpace(text) + fingerprintDelimiter + category + fingerprintDelimiter + topic
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
