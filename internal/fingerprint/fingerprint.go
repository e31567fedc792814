// Package fingerprint computes stable content digests for change detection.
//
// Content is normalized before hashing so that byte-level rendering jitter
// (line-ending style, trailing spaces) does not register as a change.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix identifies the hash function in stored digests.
const Prefix = "sha256:"

// Normalize canonicalises whitespace: CRLF and CR become LF, trailing
// whitespace is stripped per line, and outer blank runs are trimmed.
func Normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

// Content returns the digest of normalized content as "sha256:<hex>".
func Content(content string) string {
	sum := sha256.Sum256([]byte(Normalize(content)))
	return Prefix + hex.EncodeToString(sum[:])
}

// Document returns the digest of a page body as the generator writes it:
// a level-one title heading followed by the content. Generator, local check,
// and remote check all hash this exact shape so their digests agree.
func Document(title, content string) string {
	return Content("# " + title + "\n\n" + content)
}
