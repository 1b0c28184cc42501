// Package normalize turns an untyped tabular.Table into a schema.Table:
// identifiers are sanitized, null tokens are cleared, and each column gets a
// single inferred relational type with cells converted to match.
package normalize

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxIdentifierLen is the Postgres identifier limit, applied to every backend.
const MaxIdentifierLen = 63

var (
	nonWordOrSpace = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spaceRun       = regexp.MustCompile(`\s+`)
	nonWord        = regexp.MustCompile(`[^\p{L}\p{N}_]`)
)

// SanitizeIdentifier maps an arbitrary header to a lowercase column name of
// at most MaxIdentifierLen bytes.
//
//	"Order #2023" -> "order__2023"
//	"2023 total"  -> "col_2023_total"
//	"²nd pass"    -> "col_²nd_pass"
//	"  "          -> "unnamed_column"
//
// Applying it to its own output is a no-op.
func SanitizeIdentifier(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWordOrSpace.ReplaceAllString(s, "_")
	s = spaceRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unnamed_column"
	}
	if r, _ := utf8.DecodeRuneInString(s); unicode.IsNumber(r) {
		s = "col_" + s
	}
	return strings.TrimRight(truncateIdentifier(s, MaxIdentifierLen), "_")
}

// SanitizeColumns sanitizes every header and disambiguates collisions with
// _1, _2, ... in first-seen order. A suffixed name is cut so it still fits in
// MaxIdentifierLen bytes.
func SanitizeColumns(headers []string) []string {
	out := make([]string, len(headers))
	used := make(map[string]bool, len(headers))
	for i, h := range headers {
		name := SanitizeIdentifier(h)
		for n := 1; used[name]; n++ {
			suffix := "_" + strconv.Itoa(n)
			name = truncateIdentifier(SanitizeIdentifier(h), MaxIdentifierLen-len(suffix)) + suffix
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// TableName derives the relational table name for an object path: the final
// segment without its extension, sanitized, prefixed with "data_" and cut to
// MaxIdentifierLen bytes on a rune boundary.
func TableName(objectPath string) string {
	base := path.Base(strings.ReplaceAll(objectPath, "\\", "/"))
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	base = nonWord.ReplaceAllString(strings.ToLower(base), "_")
	base = strings.Trim(base, "_")
	return truncateIdentifier("data_"+base, MaxIdentifierLen)
}

// truncateIdentifier cuts s to at most n bytes without splitting a rune.
func truncateIdentifier(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
