package httputil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugStrip = regexp.MustCompile(`[^a-zA-Z0-9. ]+`)

// RemoveAccents folds "Amélie" to "Amelie".
func RemoveAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Slugify turns a title into the path slug WordPress film sites use:
// accents folded, lower-cased, punctuation dropped, the first dot treated as
// a word break and runs of spaces turned into one hyphen.
func Slugify(title string) string {
	s := strings.ToLower(RemoveAccents(strings.TrimSpace(title)))
	s = slugStrip.ReplaceAllString(s, "")
	s = strings.Replace(s, ".", " ", 1)
	return strings.Join(strings.Fields(s), "-")
}
