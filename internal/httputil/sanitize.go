package httputil

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// Video and asset ids scraped out of embed URLs.
	assetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

	numericIDPattern = regexp.MustCompile(`^[0-9]+$`)
)

// ValidateHTTPURL checks that rawURL is an absolute http(s) URL with a host.
func ValidateHTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("only HTTP(S) URLs are allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// ValidateID checks that an asset id scraped from a page is safe to put in
// a URL path or a form field.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if !assetIDPattern.MatchString(id) {
		return fmt.Errorf("ID contains invalid characters: %q", id)
	}
	return nil
}

// ValidateNumericID checks that an ID (e.g. a TMDB id) is purely numeric.
func ValidateNumericID(id string) error {
	if id == "" {
		return fmt.Errorf("numeric ID cannot be empty")
	}
	if !numericIDPattern.MatchString(id) {
		return fmt.Errorf("expected numeric ID, got %q", id)
	}
	return nil
}

// EncodeQuery collapses whitespace in a search query and escapes it for use
// as a query-string value (e.g., ?q=star+wars).
func EncodeQuery(query string) string {
	return url.QueryEscape(strings.Join(strings.Fields(query), " "))
}

// AbsoluteURL resolves ref against base. Refs that fail to parse are returned
// unchanged.
func AbsoluteURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// BuildURL joins path segments onto base, escaping each one.
func BuildURL(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, seg := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}
