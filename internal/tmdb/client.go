// Package tmdb looks up canonical English titles on The Movie Database.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelscrape/internal/fetch"
	"reelscrape/internal/media"
)

const defaultBaseURL = "https://api.themoviedb.org"
const defaultCacheTTL = 24 * time.Hour

// Client is a minimal TMDB API client. It only knows how to fetch the
// English title of a movie or show.
type Client struct {
	apiKey  string
	baseURL string
	fetcher fetch.Fetcher
	cache   *cache
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithCacheTTL sets the cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = newCache(ttl)
	}
}

// NewClient creates a new TMDB client that performs requests through f.
func NewClient(apiKey string, f fetch.Fetcher, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		fetcher: f,
		cache:   newCache(defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type details struct {
	Title string `json:"title"`
	Name  string `json:"name"`
}

// EnglishTitle returns the en-US title for a TMDB id. Movies carry it in
// "title", shows in "name".
func (c *Client) EnglishTitle(ctx context.Context, t media.MediaType, tmdbID string) (string, error) {
	kind := "movie"
	if t == media.Show {
		kind = "tv"
	}
	key := kind + "/" + tmdbID
	if title, ok := c.cache.get(key); ok {
		return title, nil
	}

	endpoint := fmt.Sprintf("%s/3/%s/%s", c.baseURL, kind, url.PathEscape(tmdbID))
	resp, err := c.fetcher.Full(ctx, endpoint, fetch.Options{
		Query: map[string]string{"api_key": c.apiKey, "language": "en-US"},
	})
	if err != nil {
		return "", fmt.Errorf("tmdb %s: %w", key, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", media.NotFoundf("tmdb %s", key)
	}
	if err := fetch.CheckResponse(resp); err != nil {
		return "", fmt.Errorf("tmdb %s: %w", key, err)
	}

	var d details
	if err := json.Unmarshal(resp.Body, &d); err != nil {
		return "", fmt.Errorf("%w: decode tmdb %s: %w", media.ErrMalformedResponse, key, err)
	}
	title := d.Title
	if t == media.Show {
		title = d.Name
	}
	if title == "" {
		return "", media.Malformedf("tmdb %s has no title", key)
	}

	c.cache.set(key, title)
	return title, nil
}
