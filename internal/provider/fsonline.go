package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"reelscrape/internal/fetch"
	"reelscrape/internal/httputil"
	"reelscrape/internal/media"
	"reelscrape/internal/tmdb"
)

// FSOnlineOrigin is the site the fsonline pages and its players live on.
const FSOnlineOrigin = "https://www3.fsonline.app"

// FSOnline scrapes a DooPlay WordPress site whose pages are addressed by
// title slug. Every player tab becomes a filemoon embed.
type FSOnline struct {
	origin  string
	fetcher fetch.Fetcher
	titles  *tmdb.Client // Optional English title lookup
	log     logrus.FieldLogger
}

// NewFSOnline creates the fsonline adapter. origin defaults to FSOnlineOrigin
// and titles may be nil.
func NewFSOnline(f fetch.Fetcher, origin string, titles *tmdb.Client, log logrus.FieldLogger) *FSOnline {
	if origin == "" {
		origin = FSOnlineOrigin
	}
	return &FSOnline{origin: origin, fetcher: f, titles: titles, log: log.WithField("provider", "fsonline")}
}

// Registration implements Source.
func (s *FSOnline) Registration() media.ProviderRegistration {
	return media.ProviderRegistration{
		ID:    "fsonline",
		Name:  "FSOnline",
		Rank:  140,
		Flags: []media.Flag{media.FlagCORSAllowed},
	}
}

// ScrapeMovie implements Source.
func (s *FSOnline) ScrapeMovie(ctx context.Context, sc *Context, q media.MediaQuery) (media.Result, error) {
	return s.scrape(ctx, sc, q)
}

// ScrapeShow implements Source.
func (s *FSOnline) ScrapeShow(ctx context.Context, sc *Context, q media.MediaQuery) (media.Result, error) {
	return s.scrape(ctx, sc, q)
}

// PageURL builds the slug URL of a movie or episode page.
func PageURL(origin, title string, season, episode int) string {
	slug := httputil.Slugify(title)
	if season > 0 && episode > 0 {
		return fmt.Sprintf("%s/episoade/%s-sezonul-%d-episodul-%d/", origin, slug, season, episode)
	}
	return fmt.Sprintf("%s/film/%s/", origin, slug)
}

func (s *FSOnline) scrape(ctx context.Context, sc *Context, q media.MediaQuery) (media.Result, error) {
	title := s.englishTitle(ctx, q)
	if httputil.Slugify(title) == "" {
		return media.Result{}, media.NotFoundf("no usable title for fsonline")
	}

	pageURL := PageURL(s.origin, title, q.Season, q.Episode)
	resp, err := s.fetcher.Full(ctx, pageURL, fetch.Options{
		Headers: map[string]string{"Referer": s.origin},
	})
	if err != nil {
		return media.Result{}, fmt.Errorf("loading %s: %w", pageURL, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return media.Result{}, media.NotFoundf("no fsonline page at %s", pageURL)
	}
	if err := fetch.CheckResponse(resp); err != nil {
		return media.Result{}, fmt.Errorf("loading %s: %w", pageURL, err)
	}
	sc.Progress(30)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return media.Result{}, fmt.Errorf("%w: parsing %s: %w", media.ErrMalformedResponse, pageURL, err)
	}
	options := parsePlayerOptions(doc)
	if len(options) == 0 {
		return media.Result{}, media.NotFoundf("no player options on %s", pageURL)
	}
	sc.Progress(50)

	var res media.Result
	for _, opt := range options {
		embedURL, err := s.playerEmbed(ctx, pageURL, opt)
		if err != nil {
			if media.IsCancelled(err) {
				return media.Result{}, err
			}
			s.log.WithError(err).WithField("nume", opt.Nume).Debug("player option failed")
			continue
		}
		res.Embeds = append(res.Embeds, media.EmbedRef{EmbedID: FilemoonEmbedID, URL: embedURL})
	}
	if len(res.Embeds) == 0 {
		return media.Result{}, media.NotFoundf("no player on %s resolved to an embed", pageURL)
	}
	sc.Progress(90)
	return res, nil
}

// englishTitle prefers the TMDB English title, which is what the site slugs
// are built from, and falls back to the query title.
func (s *FSOnline) englishTitle(ctx context.Context, q media.MediaQuery) string {
	if s.titles == nil || q.TMDBID == "" {
		return q.Title
	}
	title, err := s.titles.EnglishTitle(ctx, q.Type, q.TMDBID)
	if err != nil {
		s.log.WithError(err).Debug("tmdb lookup failed, using query title")
		return q.Title
	}
	return title
}

type playerResponse struct {
	EmbedURL string `json:"embed_url"`
	Type     string `json:"type"`
}

// playerEmbed asks the WordPress player endpoint for the iframe of one tab.
func (s *FSOnline) playerEmbed(ctx context.Context, pageURL string, opt playerOption) (string, error) {
	form := url.Values{}
	form.Set("action", "doo_player_ajax")
	form.Set("post", opt.Post)
	form.Set("nume", opt.Nume)
	form.Set("type", opt.Type)

	resp, err := s.fetcher.Full(ctx, s.origin+"/wp-admin/admin-ajax.php", fetch.Options{
		Method: http.MethodPost,
		Headers: map[string]string{
			"Content-Type":     "application/x-www-form-urlencoded; charset=UTF-8",
			"Referer":          pageURL,
			"Origin":           s.origin,
			"X-Requested-With": "XMLHttpRequest",
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		return "", err
	}
	if err := fetch.CheckResponse(resp); err != nil {
		return "", err
	}

	var pr playerResponse
	if err := json.Unmarshal(resp.Body, &pr); err != nil {
		return "", fmt.Errorf("%w: decoding player response: %w", media.ErrMalformedResponse, err)
	}
	src := iframeSrc(pr.EmbedURL)
	if src == "" {
		return "", media.NotFoundf("player option %s has no embed", opt.Nume)
	}
	src = httputil.AbsoluteURL(pageURL, src)
	if err := httputil.ValidateHTTPURL(src); err != nil {
		return "", fmt.Errorf("%w: %w", media.ErrMalformedResponse, err)
	}
	return src, nil
}
