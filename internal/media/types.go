// Package media defines shared types for the reelscrape resolution pipeline.
package media

import (
	"fmt"
	"maps"
	"slices"
)

// MediaType represents whether content is a movie or a show episode.
type MediaType int

const (
	Movie MediaType = iota
	Show
)

func (m MediaType) String() string {
	switch m {
	case Movie:
		return "movie"
	case Show:
		return "show"
	default:
		return "unknown"
	}
}

// ParseMediaType converts "movie" / "show" (or "tv") into a MediaType.
func ParseMediaType(s string) (MediaType, error) {
	switch s {
	case "movie":
		return Movie, nil
	case "show", "tv":
		return Show, nil
	default:
		return Movie, fmt.Errorf("unknown media type %q (valid: movie, show)", s)
	}
}

// MediaQuery is the immutable input of a resolution run.
type MediaQuery struct {
	Type        MediaType
	Title       string // Free-form title as the user or metadata source spells it
	ReleaseYear int    // 0 when unknown
	TMDBID      string // Optional; some providers key their API on it
	Season      int    // Show only
	Episode     int    // Show only
}

// Validate checks that season/episode are present iff the query is a show.
func (q MediaQuery) Validate() error {
	switch q.Type {
	case Movie:
		if q.Season != 0 || q.Episode != 0 {
			return fmt.Errorf("movie query cannot carry season/episode")
		}
	case Show:
		if q.Season <= 0 || q.Episode <= 0 {
			return fmt.Errorf("show query needs a positive season and episode, got S%dE%d", q.Season, q.Episode)
		}
	default:
		return fmt.Errorf("unknown media type %d", q.Type)
	}
	if q.Title == "" && q.TMDBID == "" {
		return fmt.Errorf("query needs a title or a TMDB id")
	}
	return nil
}

// SearchResult is one candidate card scraped from a provider's search page.
type SearchResult struct {
	RawTitle string // Title exactly as displayed, e.g. "Severance - Season 2"
	URL      string // Absolute or site-relative link to the content page
	Year     string // Release year when the card shows one
}

// EmbedReference is the outcome of walking an iframe chain.
type EmbedReference struct {
	VideoID    string // Site asset id, when the embed URL exposes one
	EmbedURL   string // Innermost player document URL
	RefererURL string // Final URL of the outer document, used as Referer for the player
	AssetURL   string // Playable asset extracted from the player configuration
}

// StreamKind distinguishes segmented playlists from direct files.
type StreamKind string

const (
	KindHLS  StreamKind = "hls"
	KindFile StreamKind = "file"
)

// Flag is a capability tag attached to streams and providers.
type Flag string

const (
	// FlagCORSAllowed marks resources that can be fetched cross-origin without a proxy.
	FlagCORSAllowed Flag = "cors-allowed"
	// FlagIPLocked marks streams bound to the IP that resolved them.
	FlagIPLocked Flag = "ip-locked"
)

// CaptionType is the subtitle file format.
type CaptionType string

const (
	CaptionSRT CaptionType = "srt"
	CaptionVTT CaptionType = "vtt"
)

// CaptionTrack represents one subtitle track attached to a stream.
type CaptionTrack struct {
	ID                  string      `json:"id"`
	Language            string      `json:"language"`
	URL                 string      `json:"url"`
	Type                CaptionType `json:"type"`
	HasCorsRestrictions bool        `json:"hasCorsRestrictions"`
}

// FileVariant is one quality rendition of a file stream.
type FileVariant struct {
	Type string `json:"type"` // Container, currently always "mp4"
	URL  string `json:"url"`
}

// StreamDescriptor is the terminal output unit of the pipeline. Build it with
// NewHLSStream or NewFileStream so that maps and slices are owned by the value.
type StreamDescriptor struct {
	ID        string                 `json:"id"`
	Kind      StreamKind             `json:"type"`
	Playlist  string                 `json:"playlist,omitempty"`
	Headers   map[string]string      `json:"headers,omitempty"`
	Flags     []Flag                 `json:"flags"`
	Captions  []CaptionTrack         `json:"captions"`
	Qualities map[string]FileVariant `json:"qualities,omitempty"`
}

// NewHLSStream builds an hls descriptor pointing at a manifest URL.
func NewHLSStream(id, playlist string, headers map[string]string, flags []Flag, captions []CaptionTrack) StreamDescriptor {
	return StreamDescriptor{
		ID:       id,
		Kind:     KindHLS,
		Playlist: playlist,
		Headers:  maps.Clone(headers),
		Flags:    dedupFlags(flags),
		Captions: cloneCaptions(captions),
	}
}

// NewFileStream builds a file descriptor keyed by quality label.
func NewFileStream(id string, qualities map[string]FileVariant, headers map[string]string, flags []Flag, captions []CaptionTrack) StreamDescriptor {
	return StreamDescriptor{
		ID:        id,
		Kind:      KindFile,
		Headers:   maps.Clone(headers),
		Flags:     dedupFlags(flags),
		Captions:  cloneCaptions(captions),
		Qualities: maps.Clone(qualities),
	}
}

// HasFlag reports whether the descriptor carries the given capability tag.
func (s StreamDescriptor) HasFlag(f Flag) bool {
	return slices.Contains(s.Flags, f)
}

// URL returns the playable URL: the manifest for hls, the best quality for files.
func (s StreamDescriptor) URL() string {
	if s.Kind == KindHLS {
		return s.Playlist
	}
	for _, q := range QualityOrder {
		if v, ok := s.Qualities[q]; ok {
			return v.URL
		}
	}
	for _, k := range slices.Sorted(maps.Keys(s.Qualities)) {
		return s.Qualities[k].URL
	}
	return ""
}

// QualityOrder lists known quality labels from best to worst.
var QualityOrder = []string{"4k", "1080", "720", "480", "360", "unknown"}

func dedupFlags(flags []Flag) []Flag {
	out := make([]Flag, 0, len(flags))
	for _, f := range flags {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

func cloneCaptions(c []CaptionTrack) []CaptionTrack {
	if c == nil {
		return []CaptionTrack{}
	}
	return slices.Clone(c)
}

// EmbedRef points at an embed page that an embed scraper knows how to resolve.
type EmbedRef struct {
	EmbedID string `json:"embedId"`
	URL     string `json:"url"`
}

// Result is what a provider returns. Both slices empty means "nothing playable",
// which is not an error.
type Result struct {
	Embeds  []EmbedRef         `json:"embeds"`
	Streams []StreamDescriptor `json:"stream"`
}

// Empty reports whether the result carries neither embeds nor streams.
func (r Result) Empty() bool {
	return len(r.Embeds) == 0 && len(r.Streams) == 0
}

// ProviderRegistration describes a provider for ranking and listing.
type ProviderRegistration struct {
	ID    string
	Name  string
	Rank  int
	Flags []Flag
}
