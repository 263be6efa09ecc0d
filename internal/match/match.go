// Package match picks the search result that corresponds to a media query.
package match

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hbollon/go-edlib"

	"reelscrape/internal/media"
)

// Kind classifies how strongly a candidate matched.
type Kind int

const (
	None Kind = iota
	Loose
	Exact
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Loose:
		return "loose"
	default:
		return "none"
	}
}

// Decision is the outcome of Match. Result is only meaningful when Kind is
// Exact or Loose.
type Decision struct {
	Kind   Kind
	Result media.SearchResult
	// Similarity is the Jaro-Winkler score between the normalized query and the
	// chosen title. Informational only.
	Similarity float32
}

// Found reports whether a candidate was selected.
func (d Decision) Found() bool {
	return d.Kind != None
}

// Normalize lower-cases s and drops everything outside [a-z0-9].
func Normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// seasonMarker matches "Season 2", "season2" etc. in a raw card title.
var seasonMarker = regexp.MustCompile(`(?i)season\s*(\d+)\b`)

// seasonSuffix matches a trailing "- Season N" so the bare title can be compared.
var seasonSuffix = regexp.MustCompile(`(?i)[\s:(\-–]*season\s*\d+\b.*$`)

// HasSeason reports whether raw carries a season marker equal to season.
func HasSeason(raw string, season int) bool {
	for _, m := range seasonMarker.FindAllStringSubmatch(raw, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n == season {
			return true
		}
	}
	return false
}

// Match scans candidates in order. The first Exact candidate wins immediately;
// otherwise the first candidate containing the query title is a Loose match.
func Match(q media.MediaQuery, candidates []media.SearchResult) Decision {
	want := Normalize(q.Title)
	if want == "" {
		return Decision{}
	}

	var loose *media.SearchResult
	for i := range candidates {
		c := candidates[i]
		title := Normalize(c.RawTitle)
		if q.Type == media.Show {
			title = Normalize(seasonSuffix.ReplaceAllString(c.RawTitle, ""))
		}

		if title == want && (q.Type != media.Show || HasSeason(c.RawTitle, q.Season)) {
			return Decision{Kind: Exact, Result: c, Similarity: similarity(want, title)}
		}
		if loose == nil && strings.Contains(Normalize(c.RawTitle), want) {
			loose = &candidates[i]
		}
	}

	if loose == nil {
		return Decision{}
	}
	return Decision{Kind: Loose, Result: *loose, Similarity: similarity(want, Normalize(loose.RawTitle))}
}

func similarity(a, b string) float32 {
	return edlib.JaroWinklerSimilarity(a, b)
}
