// Package recorder assembles the conversation record from a finished agent
// session and exports it to the object store in multiple formats. It owns
// reasoning-text parsing, prompt deduplication, agent attribution, and the
// quality signals stored on each record.
package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Fingerprint returns the SHA-256 hex digest of the text with whitespace
// runs collapsed. Equal prompts with different formatting fingerprint
// identically, which is what makes the per-record prompt map effective.
func Fingerprint(text string) string {
	normalized := whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
