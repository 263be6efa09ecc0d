// Package provider defines the site adapters that turn a media query into
// streams, and the runner that tries them in rank order.
package provider

import (
	"context"
	"sync"

	"reelscrape/internal/media"
)

// ProgressFunc receives a completion percentage. It has no control-flow
// meaning.
type ProgressFunc func(percent int)

// Context carries per-run settings to a scraper.
type Context struct {
	// HeadersSupported is true when the consumer can attach custom headers to
	// stream requests. Scrapers ask for proxied manifests otherwise.
	HeadersSupported bool

	mu       sync.Mutex
	last     int
	progress ProgressFunc
}

// NewContext creates a scrape context. progress may be nil.
func NewContext(headersSupported bool, progress ProgressFunc) *Context {
	return &Context{HeadersSupported: headersSupported, last: -1, progress: progress}
}

// Progress reports percent to the sink. Values lower than or equal to the
// last reported one are dropped.
func (c *Context) Progress(percent int) {
	c.mu.Lock()
	if percent <= c.last {
		c.mu.Unlock()
		return
	}
	c.last = percent
	sink := c.progress
	c.mu.Unlock()

	if sink != nil {
		sink(percent)
	}
}

// Source is a site adapter that resolves a media query.
type Source interface {
	Registration() media.ProviderRegistration

	// ScrapeMovie resolves a movie query.
	ScrapeMovie(ctx context.Context, sc *Context, q media.MediaQuery) (media.Result, error)

	// ScrapeShow resolves a show episode query.
	ScrapeShow(ctx context.Context, sc *Context, q media.MediaQuery) (media.Result, error)
}

// Embed resolves an embed reference produced by a Source.
type Embed interface {
	Registration() media.ProviderRegistration

	// Scrape turns the embed URL into streams.
	Scrape(ctx context.Context, sc *Context, url string) (media.Result, error)
}

// Scrape dispatches q to the source method matching its type.
func Scrape(ctx context.Context, s Source, sc *Context, q media.MediaQuery) (media.Result, error) {
	if q.Type == media.Show {
		return s.ScrapeShow(ctx, sc, q)
	}
	return s.ScrapeMovie(ctx, sc, q)
}
