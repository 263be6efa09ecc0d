// Package normalize turns heterogeneous site source lists into uniform
// stream descriptors.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"reelscrape/internal/caption"
	"reelscrape/internal/media"
)

// Source is one validated entry of a site's source list.
type Source struct {
	Kind    media.StreamKind
	URL     string
	Quality string // Label such as "1080"; file sources only
	Headers map[string]string
}

// SourceSet is a site response after validation. Error carries the site's own
// error message when it sent one instead of sources.
type SourceSet struct {
	Sources  []Source
	Captions []media.CaptionTrack
	Error    string
}

type rawSource struct {
	File    string            `json:"file"`
	URL     string            `json:"url"`
	Type    string            `json:"type"`
	Quality json.RawMessage   `json:"quality"`
	Headers map[string]string `json:"headers"`
}

type rawCaption struct {
	ID                  string `json:"id"`
	URL                 string `json:"url"`
	File                string `json:"file"`
	Language            string `json:"language"`
	Lang                string `json:"lang"`
	Label               string `json:"label"`
	Type                string `json:"type"`
	HasCorsRestrictions bool   `json:"hasCorsRestrictions"`
}

type rawSourceSet struct {
	Sources   []rawSource  `json:"sources"`
	Subtitles []rawCaption `json:"subtitles"`
	Captions  []rawCaption `json:"captions"`
	Error     string       `json:"error"`
}

// ParseKind maps a site's source type label onto a stream kind. Only hls and
// direct files are understood; "mp4" and an absent label mean a file.
func ParseKind(label string) (media.StreamKind, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "hls", "m3u8":
		return media.KindHLS, true
	case "file", "mp4", "":
		return media.KindFile, true
	default:
		return "", false
	}
}

// ParseSourceSet validates a raw JSON source response. Unknown source kinds
// and sources without a URL fail with media.ErrMalformedResponse.
func ParseSourceSet(data []byte) (SourceSet, error) {
	var raw rawSourceSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return SourceSet{}, fmt.Errorf("%w: decoding sources: %w", media.ErrMalformedResponse, err)
	}

	set := SourceSet{Error: raw.Error}
	for i, rs := range raw.Sources {
		kind, ok := ParseKind(rs.Type)
		if !ok {
			return SourceSet{}, media.Malformedf("source %d has unknown type %q", i, rs.Type)
		}
		u := lo.CoalesceOrEmpty(rs.File, rs.URL)
		if u == "" {
			return SourceSet{}, media.Malformedf("source %d has no URL", i)
		}
		set.Sources = append(set.Sources, Source{
			Kind:    kind,
			URL:     u,
			Quality: qualityLabel(rs.Quality),
			Headers: rs.Headers,
		})
	}

	set.Captions = lo.FilterMap(append(raw.Subtitles, raw.Captions...), func(rc rawCaption, i int) (media.CaptionTrack, bool) {
		u := lo.CoalesceOrEmpty(rc.URL, rc.File)
		if u == "" {
			return media.CaptionTrack{}, false
		}
		lang := lo.CoalesceOrEmpty(rc.Language, rc.Lang, rc.Label)
		return media.CaptionTrack{
			ID:                  lo.CoalesceOrEmpty(rc.ID, u),
			Language:            lang,
			URL:                 u,
			Type:                caption.ParseType(rc.Type, u),
			HasCorsRestrictions: rc.HasCorsRestrictions,
		}, true
	})

	return set, nil
}

// qualityLabel accepts both "1080" and 1080 and falls back to "unknown".
func qualityLabel(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "unknown"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return lo.CoalesceOrEmpty(strings.TrimSuffix(strings.ToLower(s), "p"), "unknown")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return "unknown"
}
