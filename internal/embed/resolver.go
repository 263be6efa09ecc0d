// Package embed follows iframe chains down to the player document and pulls
// the playable asset URL out of its (usually packed) configuration script.
package embed

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"

	"reelscrape/internal/fetch"
	"reelscrape/internal/httputil"
	"reelscrape/internal/media"
	"reelscrape/internal/packer"
)

// DefaultSelector picks the first iframe anywhere in the outer document.
const DefaultSelector = "iframe"

var fileField = regexp.MustCompile(`file:"(https?://.+?)"`)

// Resolver walks entry page -> nested iframe -> player script.
type Resolver struct {
	fetcher  fetch.Fetcher
	origin   string
	selector string
	evaluate bool
	log      logrus.FieldLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSelector sets the CSS selector locating the nested iframe.
func WithSelector(sel string) Option {
	return func(r *Resolver) { r.selector = sel }
}

// WithEvaluate enables the sandboxed JS fallback for packed scripts whose
// wrapper Detect does not recognize.
func WithEvaluate(enabled bool) Option {
	return func(r *Resolver) { r.evaluate = enabled }
}

// NewResolver creates a resolver presenting itself as embedded on origin.
func NewResolver(f fetch.Fetcher, origin string, log logrus.FieldLogger, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:  f,
		origin:   origin,
		selector: DefaultSelector,
		log:      log.WithField("component", "embed"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches entryURL as an iframe of the resolver's origin, follows the
// first nested iframe and returns the asset URL found in its scripts. Every
// failure, including transport errors, is reported as media.ErrEmbedNotFound
// with the cause attached.
func (r *Resolver) Resolve(ctx context.Context, entryURL string) (media.EmbedReference, error) {
	outer, err := r.fetcher.Full(ctx, entryURL, fetch.Options{
		Headers: map[string]string{
			"Referer":        r.origin,
			"Origin":         r.origin,
			"sec-fetch-dest": "iframe",
			"sec-fetch-mode": "navigate",
			"sec-fetch-site": "cross-site",
		},
	})
	if err != nil {
		return media.EmbedReference{}, notFound("fetching iframe", err)
	}
	if err := fetch.CheckResponse(outer); err != nil {
		return media.EmbedReference{}, notFound("fetching iframe", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(outer.Body))
	if err != nil {
		return media.EmbedReference{}, notFound("parsing iframe", err)
	}

	src, ok := doc.Find(r.selector).First().Attr("src")
	if !ok || src == "" {
		return media.EmbedReference{}, fmt.Errorf("%w: no %q in %s", media.ErrEmbedNotFound, r.selector, outer.FinalURL)
	}
	playerURL := httputil.AbsoluteURL(outer.FinalURL, src)
	r.log.WithField("url", playerURL).Debug("found video player")

	inner, err := r.fetcher.Full(ctx, playerURL, fetch.Options{
		Headers: map[string]string{
			"Referer": outer.FinalURL,
			"Origin":  r.origin,
		},
	})
	if err != nil {
		return media.EmbedReference{}, notFound("fetching video player", err)
	}
	if err := fetch.CheckResponse(inner); err != nil {
		return media.EmbedReference{}, notFound("fetching video player", err)
	}

	playerDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(inner.Body))
	if err != nil {
		return media.EmbedReference{}, notFound("parsing video player", err)
	}

	asset, ok := r.scanScripts(ctx, playerDoc).Get()
	if !ok {
		return media.EmbedReference{}, fmt.Errorf("%w: no player config in %s", media.ErrEmbedNotFound, playerURL)
	}
	r.log.WithField("url", asset).Debug("found stream URL")

	return media.EmbedReference{
		VideoID:    VideoID(playerURL),
		EmbedURL:   playerURL,
		RefererURL: outer.FinalURL,
		AssetURL:   asset,
	}, nil
}

// scanScripts returns the file URL of the first script, in document order,
// that unpacks to a player configuration.
func (r *Resolver) scanScripts(ctx context.Context, doc *goquery.Document) mo.Option[string] {
	result := mo.None[string]()
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if u, ok := r.extractFile(ctx, s.Text()).Get(); ok {
			result = mo.Some(u)
			return false
		}
		return true
	})
	return result
}

func (r *Resolver) extractFile(ctx context.Context, script string) mo.Option[string] {
	unpacked, ok := packer.DetectAndUnpack(script).Get()
	if !ok {
		if !r.evaluate {
			return mo.None[string]()
		}
		out, err := packer.Evaluate(ctx, script)
		if err != nil {
			return mo.None[string]()
		}
		unpacked = out
	}
	return ExtractFile(unpacked)
}

// ExtractFile finds a file:"https://..." field in player configuration text.
func ExtractFile(config string) mo.Option[string] {
	m := fileField.FindStringSubmatch(config)
	if m == nil {
		return mo.None[string]()
	}
	return mo.Some(m[1])
}

// VideoID returns the last path segment of an embed URL such as
// https://host/e/abc123, or the "id" query parameter when present.
func VideoID(embedURL string) string {
	u, err := url.Parse(embedURL)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("id"); id != "" {
		return id
	}
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

func notFound(stage string, cause error) error {
	return fmt.Errorf("%s: %w: %w", stage, media.ErrEmbedNotFound, cause)
}
