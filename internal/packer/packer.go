// Package packer reverses the P.A.C.K.E.R. token-substitution obfuscation
// that embed hosts apply to their player configuration scripts.
package packer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/mo"
)

// Payload is a packed script split into its parts.
type Payload struct {
	Payload    string
	Radix      int
	TokenCount int
	Dictionary []string
}

// Signature is the prefix every packed script starts with.
const Signature = "eval(function(p,a,c,k,e,"

// wrapperPattern captures payload, radix, count, dictionary and separator from
// eval(function(p,a,c,k,e,d){...}('payload',radix,count,'dict'.split('|'),0,{})).
var wrapperPattern = regexp.MustCompile(`(?s)eval\(.+?}\(('.+'),(\d+),(\d+),('.+')\.split\('(.)'\).+`)

// Detect extracts the packed payload from source. It returns None when the
// wrapper is absent or any part fails to parse.
func Detect(source string) mo.Option[Payload] {
	m := wrapperPattern.FindStringSubmatch(source)
	if m == nil {
		return mo.None[Payload]()
	}

	radix, err := strconv.Atoi(m[2])
	if err != nil || radix < 2 || radix > 36 {
		return mo.None[Payload]()
	}
	count, err := strconv.Atoi(m[3])
	if err != nil || count < 0 {
		return mo.None[Payload]()
	}

	payload, ok := unquote(m[1])
	if !ok {
		return mo.None[Payload]()
	}
	dict, ok := unquote(m[4])
	if !ok {
		return mo.None[Payload]()
	}

	return mo.Some(Payload{
		Payload:    payload,
		Radix:      radix,
		TokenCount: count,
		Dictionary: strings.Split(dict, m[5]),
	})
}

// Unpack substitutes dictionary words back into the payload. Indices are
// processed from TokenCount-1 down to 0; empty or missing entries are skipped.
// The result is text to pattern-match against, not necessarily valid JS.
func Unpack(p Payload) string {
	if p.Radix < 2 || p.Radix > 36 {
		return p.Payload
	}
	out := p.Payload
	for i := p.TokenCount - 1; i >= 0; i-- {
		if i >= len(p.Dictionary) || p.Dictionary[i] == "" {
			continue
		}
		word := strconv.FormatInt(int64(i), p.Radix)
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
		out = re.ReplaceAllLiteralString(out, p.Dictionary[i])
	}
	return out
}

// DetectAndUnpack is Detect followed by Unpack.
func DetectAndUnpack(source string) mo.Option[string] {
	p, ok := Detect(source).Get()
	if !ok {
		return mo.None[string]()
	}
	return mo.Some(Unpack(p))
}

// unquote strips the surrounding single quotes and undoes \' escapes.
func unquote(s string) (string, bool) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", false
	}
	s = s[1 : len(s)-1]
	return strings.ReplaceAll(s, `\'`, `'`), true
}
