package provider

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"reelscrape/internal/embed"
	"reelscrape/internal/fetch"
	"reelscrape/internal/media"
	"reelscrape/internal/normalize"
)

// FilemoonEmbedID identifies the filemoon embed scraper.
const FilemoonEmbedID = "filemoon"

// Filemoon follows a filemoon player page to its packed player config.
type Filemoon struct {
	origin   string
	resolver *embed.Resolver
	log      logrus.FieldLogger
}

// NewFilemoon creates the filemoon embed scraper. origin is the site the
// player is embedded on; it is sent as Referer and Origin.
func NewFilemoon(f fetch.Fetcher, origin string, evaluate bool, log logrus.FieldLogger) *Filemoon {
	log = log.WithField("provider", FilemoonEmbedID)
	return &Filemoon{
		origin: origin,
		resolver: embed.NewResolver(f, origin, log,
			embed.WithSelector("#iframe-holder iframe"),
			embed.WithEvaluate(evaluate),
		),
		log: log,
	}
}

// Registration implements Embed.
func (e *Filemoon) Registration() media.ProviderRegistration {
	return media.ProviderRegistration{ID: FilemoonEmbedID, Name: "Filemoon", Rank: 300}
}

// Scrape implements Embed. An iframe chain without a stream yields an empty
// result rather than an error.
func (e *Filemoon) Scrape(ctx context.Context, _ *Context, url string) (media.Result, error) {
	ref, err := e.resolver.Resolve(ctx, url)
	if err != nil {
		if media.IsCancelled(err) {
			return media.Result{}, err
		}
		if errors.Is(err, media.ErrEmbedNotFound) {
			e.log.WithError(err).Debug("no stream behind embed")
			return media.Result{}, nil
		}
		return media.Result{}, err
	}

	headers := map[string]string{
		"Referer": e.origin,
		"Origin":  e.origin,
	}
	return media.Result{
		Streams: []media.StreamDescriptor{
			media.NewHLSStream("primary", ref.AssetURL, headers, []media.Flag{media.FlagCORSAllowed}, nil),
		},
	}, nil
}

// Mirror decodes a stream descriptor carried inline in the embed URL.
type Mirror struct{}

// Registration implements Embed.
func (Mirror) Registration() media.ProviderRegistration {
	return media.ProviderRegistration{ID: normalize.MirrorEmbedID, Name: "Mirror", Rank: 1}
}

// Scrape implements Embed.
func (Mirror) Scrape(_ context.Context, _ *Context, url string) (media.Result, error) {
	sd, err := normalize.DecodeMirror(url)
	if err != nil {
		return media.Result{}, err
	}
	return media.Result{Streams: []media.StreamDescriptor{sd}}, nil
}
