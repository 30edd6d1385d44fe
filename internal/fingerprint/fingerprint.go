// Package fingerprint produces stable short identifiers for review issues
// and generated tests. Fingerprints are pure functions of their inputs:
// two logically identical issues from separate runs hash to the same ID,
// which is what makes cross-run dedup possible.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Length is the number of hex characters kept from the digest. Review and
// test volumes per revision are small, so 16 chars is ample.
const Length = 16

// delimiter joins parts before hashing. A pipe is unlikely to appear in
// file paths or line numbers, and collisions in message text are harmless
// since the full concatenation is hashed.
const delimiter = "|"

// Generate hashes the given parts into a short hex fingerprint.
func Generate(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, delimiter)))
	return hex.EncodeToString(sum[:])[:Length]
}

// Issue fingerprints a line-anchored issue. Both range bounds participate
// so that widening or narrowing the range produces a distinct identity.
func Issue(file string, lineStart, lineEnd int, category, message string) string {
	return Generate(file, strconv.Itoa(lineStart), strconv.Itoa(lineEnd), category, message)
}

// Snippet fingerprints a snippet-anchored issue. The snippet is trimmed
// first so that whitespace drift does not change identity. An empty snippet
// falls back to (file, category, message).
func Snippet(file, snippet, category, message string) string {
	snippet = strings.TrimSpace(snippet)
	if snippet == "" {
		return Generate(file, category, message)
	}
	return Generate(file, snippet, category, message)
}
