package fsdb

import (
	"regexp"
	"strings"
)

// innerSpace matches a single space character, the way Python's str.replace
// does it for ' ' -> '_'.
const innerSpace = " "

// illegalChar matches any rune outside the filename-safe set: Unicode word
// characters (letters, digits, underscore) plus "." and "-". \w in Go's
// regexp is ASCII-only, so the Unicode classes \p{L} and \p{N} are spelled
// out instead.
var illegalChar = regexp.MustCompile(`[^\p{L}\p{N}_.\-]`)

// Sanitize maps an arbitrary string to a filesystem-safe path component:
// trim surrounding whitespace, replace inner spaces with underscores, then
// replace every character that is not a Unicode letter or digit, "_", "."
// or "-" with an underscore.
//
// Sanitize is idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, innerSpace, "_")
	return illegalChar.ReplaceAllString(name, "_")
}
