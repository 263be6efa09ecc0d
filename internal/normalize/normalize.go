package normalize

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"reelscrape/internal/media"
)

// Options controls how sources become descriptors.
type Options struct {
	// HeadersSupported is true when the consumer can attach custom headers to
	// manifest requests. When false, hls manifests are routed through M3U8Proxy.
	HeadersSupported bool
	// M3U8Proxy is the base URL of an m3u8 proxy service. Empty disables rewriting.
	M3U8Proxy string
	// Flags are added to every descriptor. Known cross-origin-safe sources
	// should pass media.FlagCORSAllowed.
	Flags []media.Flag
}

// Normalize converts a validated source set into descriptors, one per source,
// in source order. Captions are shared by every descriptor and never nil.
func Normalize(raw SourceSet, opts Options) []media.StreamDescriptor {
	captions := raw.Captions
	if captions == nil {
		captions = []media.CaptionTrack{}
	}

	return lo.Map(raw.Sources, func(s Source, i int) media.StreamDescriptor {
		id := fmt.Sprintf("source-%d", i)
		if s.Kind == media.KindHLS {
			playlist := s.URL
			if !opts.HeadersSupported && opts.M3U8Proxy != "" {
				playlist = ProxyURL(opts.M3U8Proxy, s.URL, s.Headers)
			}
			return media.NewHLSStream(id, playlist, s.Headers, opts.Flags, captions)
		}
		qualities := map[string]media.FileVariant{
			s.Quality: {Type: "mp4", URL: s.URL},
		}
		return media.NewFileStream(id, qualities, s.Headers, opts.Flags, captions)
	})
}

// ProxyURL routes an m3u8 manifest through the proxy at base, passing the
// headers the proxy must attach upstream.
func ProxyURL(base, target string, headers map[string]string) string {
	q := url.Values{}
	q.Set("url", target)
	if len(headers) > 0 {
		if h, err := json.Marshal(headers); err == nil {
			q.Set("headers", string(h))
		}
	}
	return strings.TrimRight(base, "/") + "/m3u8-proxy?" + q.Encode()
}
