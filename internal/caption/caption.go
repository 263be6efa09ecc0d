// Package caption handles caption track typing and language selection.
package caption

import (
	"net/url"
	"path"
	"strings"

	"reelscrape/internal/media"
)

// TypeFromURL guesses the caption format from the URL's file extension.
// Unknown extensions default to vtt, which is what HLS players expect.
func TypeFromURL(rawURL string) media.CaptionType {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	if strings.EqualFold(path.Ext(p), ".srt") {
		return media.CaptionSRT
	}
	return media.CaptionVTT
}

// ParseType maps a site-reported format label onto a CaptionType.
func ParseType(label, rawURL string) media.CaptionType {
	switch strings.ToLower(strings.TrimPrefix(label, ".")) {
	case "srt", "subrip":
		return media.CaptionSRT
	case "vtt", "webvtt":
		return media.CaptionVTT
	default:
		return TypeFromURL(rawURL)
	}
}

// Filter returns captions matching the preferred language (case-insensitive).
func Filter(captions []media.CaptionTrack, language string) []media.CaptionTrack {
	if language == "" {
		return captions
	}

	lang := strings.ToLower(language)
	var matched []media.CaptionTrack

	for _, c := range captions {
		if strings.Contains(strings.ToLower(c.Language), lang) ||
			strings.Contains(strings.ToLower(c.ID), lang) {
			matched = append(matched, c)
		}
	}

	return matched
}

// BestMatch returns the best matching caption for the given language.
// Prefers non-SDH tracks, then tracks without CORS restrictions.
func BestMatch(captions []media.CaptionTrack, language string) *media.CaptionTrack {
	filtered := Filter(captions, language)
	if len(filtered) == 0 {
		return nil
	}

	// Prefer non-SDH, unrestricted
	for _, c := range filtered {
		if !isSDH(c) && !c.HasCorsRestrictions {
			return &c
		}
	}
	for _, c := range filtered {
		if !isSDH(c) {
			return &c
		}
	}

	// Fall back to first match
	return &filtered[0]
}

func isSDH(c media.CaptionTrack) bool {
	return strings.Contains(strings.ToLower(c.Language), "sdh") ||
		strings.Contains(strings.ToLower(c.ID), "sdh")
}
