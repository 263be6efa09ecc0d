package normalize

import (
	"encoding/json"
	"fmt"

	"reelscrape/internal/media"
)

// MirrorEmbedID is the embed scraper that decodes a mirror descriptor.
const MirrorEmbedID = "mirror"

// mirror is the JSON carried in a mirror embed's URL field.
type mirror struct {
	Type      media.StreamKind             `json:"type"`
	Stream    string                       `json:"stream,omitempty"`
	Headers   map[string]string            `json:"headers,omitempty"`
	Flags     []media.Flag                 `json:"flags"`
	Captions  []media.CaptionTrack         `json:"captions"`
	SkipValid bool                         `json:"skipvalid"`
	Qualities map[string]media.FileVariant `json:"qualities,omitempty"`
}

// EncodeMirror serializes a descriptor into a mirror embed reference.
func EncodeMirror(sd media.StreamDescriptor) (media.EmbedRef, error) {
	m := mirror{
		Type:      sd.Kind,
		Headers:   sd.Headers,
		Flags:     sd.Flags,
		Captions:  sd.Captions,
		SkipValid: sd.Kind != media.KindHLS,
		Qualities: sd.Qualities,
	}
	if sd.Kind == media.KindHLS {
		m.Stream = sd.Playlist
	}
	data, err := json.Marshal(m)
	if err != nil {
		return media.EmbedRef{}, fmt.Errorf("encoding mirror: %w", err)
	}
	return media.EmbedRef{EmbedID: MirrorEmbedID, URL: string(data)}, nil
}

// DecodeMirror rebuilds the descriptor from a mirror embed URL.
func DecodeMirror(payload string) (media.StreamDescriptor, error) {
	var m mirror
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return media.StreamDescriptor{}, fmt.Errorf("%w: decoding mirror: %w", media.ErrMalformedResponse, err)
	}

	switch m.Type {
	case media.KindHLS:
		if m.Stream == "" {
			return media.StreamDescriptor{}, media.Malformedf("mirror hls without stream")
		}
		return media.NewHLSStream("primary", m.Stream, m.Headers, m.Flags, m.Captions), nil
	case media.KindFile:
		if len(m.Qualities) == 0 {
			return media.StreamDescriptor{}, media.Malformedf("mirror file without qualities")
		}
		return media.NewFileStream("primary", m.Qualities, m.Headers, m.Flags, m.Captions), nil
	default:
		return media.StreamDescriptor{}, media.Malformedf("mirror has unknown type %q", m.Type)
	}
}
