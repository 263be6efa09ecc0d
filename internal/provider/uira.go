package provider

import (
	"bytes"
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"reelscrape/internal/challenge"
	"reelscrape/internal/fetch"
	"reelscrape/internal/httputil"
	"reelscrape/internal/media"
	"reelscrape/internal/normalize"
	"reelscrape/internal/token"
)

const (
	uiraBaseURL = "https://pasmells.uira.live"
	// UiraSiteKey is the Turnstile site key of the uira API.
	UiraSiteKey = "0x4AAAAAACCe9bUxQlRKwDT5"
	// UiraTokenKey is the token store key shared by all uira adapters.
	UiraTokenKey = "uiralive-turnstile-token"

	invalidTurnstileToken = "Invalid turnstile token"
)

// UiraConfig selects one upstream scraper behind the uira API.
type UiraConfig struct {
	ID          string
	Name        string
	Rank        int
	ScraperName string // Path segment of the upstream scraper
}

// UiraConfigs are the uira scrapers exposed as sources.
var UiraConfigs = []UiraConfig{
	{ID: "uira32", Name: "Uira 32", Rank: 245, ScraperName: "watch32"},
	{ID: "uiraspencer", Name: "Uira Spencer", Rank: 243, ScraperName: "spencerdevs"},
	{ID: "uiravidzee", Name: "Uira Vidzee", Rank: 244, ScraperName: "vidzee"},
}

// UiraOptions are the collaborators shared by uira adapters.
type UiraOptions struct {
	BaseURL   string // Defaults to the production API
	Tokens    *token.Exchange
	Solver    challenge.Solver
	M3U8Proxy string
}

// Uira queries the uira aggregation API, which is gated by a Turnstile token,
// and emits every source as a mirror embed.
type Uira struct {
	cfg     UiraConfig
	opts    UiraOptions
	fetcher fetch.Fetcher
	log     logrus.FieldLogger
}

// NewUira creates a uira adapter for one upstream scraper.
func NewUira(f fetch.Fetcher, cfg UiraConfig, opts UiraOptions, log logrus.FieldLogger) *Uira {
	if opts.BaseURL == "" {
		opts.BaseURL = uiraBaseURL
	}
	if opts.Solver == nil {
		opts.Solver = challenge.Unavailable
	}
	return &Uira{cfg: cfg, opts: opts, fetcher: f, log: log.WithField("provider", cfg.ID)}
}

// Registration implements Source.
func (u *Uira) Registration() media.ProviderRegistration {
	return media.ProviderRegistration{
		ID:    u.cfg.ID,
		Name:  u.cfg.Name,
		Rank:  u.cfg.Rank,
		Flags: []media.Flag{media.FlagCORSAllowed},
	}
}

// ScrapeMovie implements Source.
func (u *Uira) ScrapeMovie(ctx context.Context, sc *Context, q media.MediaQuery) (media.Result, error) {
	return u.scrape(ctx, sc, q)
}

// ScrapeShow implements Source.
func (u *Uira) ScrapeShow(ctx context.Context, sc *Context, q media.MediaQuery) (media.Result, error) {
	return u.scrape(ctx, sc, q)
}

func (u *Uira) scrape(ctx context.Context, sc *Context, q media.MediaQuery) (media.Result, error) {
	if q.TMDBID == "" {
		return media.Result{}, media.NotFoundf("%s needs a TMDB id", u.cfg.ID)
	}
	if err := httputil.ValidateNumericID(q.TMDBID); err != nil {
		return media.Result{}, media.NotFoundf("%s: %v", u.cfg.ID, err)
	}

	tok, err := u.opts.Tokens.GetToken(ctx, UiraTokenKey, token.ForSiteKey(u.opts.Solver, UiraSiteKey))
	if err != nil {
		return media.Result{}, err
	}
	sc.Progress(20)

	segments := []string{"api", "scrapers", u.cfg.ScraperName, "stream", q.TMDBID}
	if q.Type == media.Show {
		segments = append(segments, strconv.Itoa(q.Season), strconv.Itoa(q.Episode))
	}
	endpoint := httputil.BuildURL(u.opts.BaseURL, segments...)
	opts := fetch.Options{Headers: map[string]string{"X-Turnstile-Token": tok}}
	if !sc.HeadersSupported {
		opts.Query = map[string]string{"proxy": "true"}
	}

	body, err := u.fetchSources(ctx, endpoint, opts)
	if err != nil {
		return media.Result{}, err
	}

	set, err := normalize.ParseSourceSet(body)
	if err != nil {
		return media.Result{}, err
	}
	if set.Error == invalidTurnstileToken {
		return media.Result{}, u.rejectToken(ctx)
	}
	if len(set.Sources) == 0 {
		return media.Result{}, media.NotFoundf("no sources from %s", u.cfg.ScraperName)
	}
	sc.Progress(90)

	streams := normalize.Normalize(set, normalize.Options{
		HeadersSupported: sc.HeadersSupported,
		M3U8Proxy:        u.opts.M3U8Proxy,
		Flags:            []media.Flag{media.FlagCORSAllowed},
	})
	var res media.Result
	for _, s := range streams {
		ref, err := normalize.EncodeMirror(s)
		if err != nil {
			return media.Result{}, err
		}
		res.Embeds = append(res.Embeds, ref)
	}
	return res, nil
}

// fetchSources calls the API, retrying once when the body comes back empty.
func (u *Uira) fetchSources(ctx context.Context, endpoint string, opts fetch.Options) ([]byte, error) {
	var body []byte
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := u.fetcher.Full(ctx, endpoint, opts)
		if err != nil {
			return nil, err
		}
		if err := fetch.CheckResponse(resp); err != nil {
			// The API answers a rejected token with an error status and a JSON body.
			if set, perr := normalize.ParseSourceSet(resp.Body); perr == nil && set.Error == invalidTurnstileToken {
				return nil, u.rejectToken(ctx)
			}
			return nil, err
		}
		body = bytes.TrimSpace(resp.Body)
		if len(body) > 0 {
			return body, nil
		}
		u.log.WithField("attempt", attempt).Debug("empty response")
	}
	return nil, media.NotFoundf("empty response from %s", u.cfg.ScraperName)
}

func (u *Uira) rejectToken(ctx context.Context) error {
	if err := u.opts.Tokens.Invalidate(ctx, UiraTokenKey); err != nil {
		u.log.WithError(err).Warn("clearing rejected token")
	}
	return media.NotFoundf("turnstile token rejected, cleared it")
}
