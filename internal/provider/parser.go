package provider

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"reelscrape/internal/httputil"
	"reelscrape/internal/media"
)

var (
	filmPath      = regexp.MustCompile(`/film/\d+/`)
	episodeSuffix = regexp.MustCompile(`/episode-\d+/?$`)
	yearText      = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// parseFilmCards extracts poster cards from a movies4f search page.
// Uses DOM parsing so that titles are taken as plain text.
func parseFilmCards(doc *goquery.Document, baseURL string) []media.SearchResult {
	var results []media.SearchResult

	doc.Find("a.poster[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if !filmPath.MatchString(href) {
			return
		}

		title := strings.TrimSpace(s.Find("img[alt]").First().AttrOr("alt", ""))
		if title == "" {
			return
		}

		result := media.SearchResult{
			RawTitle: title,
			URL:      httputil.AbsoluteURL(baseURL, href),
		}
		if y := yearText.FindString(s.Text()); y != "" {
			result.Year = y
		}
		results = append(results, result)
	})

	return results
}

// episodeURL points a show card link at one episode.
// e.g., "https://movies4f.com/film/12/severance/episode-1" -> ".../severance/episode-4"
func episodeURL(link string, episode int) string {
	base := strings.TrimRight(episodeSuffix.ReplaceAllString(link, ""), "/")
	return base + "/episode-" + strconv.Itoa(episode)
}

// playerOption is one DooPlay player tab.
type playerOption struct {
	Post string
	Nume string
	Type string
}

// parsePlayerOptions extracts the DooPlay player tabs of a WordPress page.
// Trailer tabs are skipped.
func parsePlayerOptions(doc *goquery.Document) []playerOption {
	var options []playerOption

	doc.Find("#playeroptionsul li.dooplay_player_option").Each(func(_ int, s *goquery.Selection) {
		opt := playerOption{
			Post: s.AttrOr("data-post", ""),
			Nume: s.AttrOr("data-nume", ""),
			Type: s.AttrOr("data-type", ""),
		}
		if opt.Post == "" || opt.Nume == "" || opt.Nume == "trailer" {
			return
		}
		options = append(options, opt)
	})

	return options
}

// iframeSrc returns the src of the first iframe in an HTML fragment, or the
// fragment itself when it is already a URL.
func iframeSrc(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if !strings.Contains(fragment, "<") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return doc.Find("iframe").First().AttrOr("src", "")
}
