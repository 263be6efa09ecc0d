package match

import (
	"testing"

	"reelscrape/internal/media"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"The Movie: Part 2", "the-movie-part-2", true},
		{"Amélie", "amlie", true},
		{"  Spaced  Out ", "spacedout", true},
		{"Se7en", "Seven", false},
		{"", "!!!", true},
	}

	for _, tt := range tests {
		t.Run(tt.a, func(t *testing.T) {
			got := Normalize(tt.a) == Normalize(tt.b)
			if got != tt.same {
				t.Errorf("Normalize(%q)==Normalize(%q) is %v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range []string{"Hello, World!", "ABC-123", "ünïcode"} {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", s, once, twice)
		}
	}
}

func TestMatchMovie(t *testing.T) {
	q := media.MediaQuery{Type: media.Movie, Title: "Dune"}
	candidates := []media.SearchResult{
		{RawTitle: "Dune: Part Two", URL: "/film/2/"},
		{RawTitle: "Dune", URL: "/film/1/"},
		{RawTitle: "Dune", URL: "/film/3/"},
	}

	d := Match(q, candidates)
	if d.Kind != Exact {
		t.Fatalf("Kind = %v, want exact", d.Kind)
	}
	if d.Result.URL != "/film/1/" {
		t.Errorf("URL = %q, want first exact candidate /film/1/", d.Result.URL)
	}
	if d.Similarity != 1 {
		t.Errorf("Similarity = %v, want 1", d.Similarity)
	}
}

func TestMatchPrefersExactOverEarlierLoose(t *testing.T) {
	q := media.MediaQuery{Type: media.Show, Title: "X", Season: 2, Episode: 1}
	candidates := []media.SearchResult{
		{RawTitle: "X Files", URL: "/film/10/"},
		{RawTitle: "X - Season 2", URL: "/film/20/"},
	}

	d := Match(q, candidates)
	if d.Kind != Exact {
		t.Fatalf("Kind = %v, want exact", d.Kind)
	}
	if d.Result.URL != "/film/20/" {
		t.Errorf("URL = %q, want /film/20/", d.Result.URL)
	}
}

func TestMatchSeasonMismatchIsLoose(t *testing.T) {
	q := media.MediaQuery{Type: media.Show, Title: "Severance", Season: 3, Episode: 1}
	candidates := []media.SearchResult{
		{RawTitle: "Severance - Season 1", URL: "/film/1/"},
		{RawTitle: "Severance - Season 2", URL: "/film/2/"},
	}

	d := Match(q, candidates)
	if d.Kind != Loose {
		t.Fatalf("Kind = %v, want loose", d.Kind)
	}
	if d.Result.URL != "/film/1/" {
		t.Errorf("URL = %q, want first loose candidate /film/1/", d.Result.URL)
	}
}

func TestMatchNone(t *testing.T) {
	q := media.MediaQuery{Type: media.Movie, Title: "Heat"}
	d := Match(q, []media.SearchResult{{RawTitle: "Cold Mountain"}})
	if d.Found() {
		t.Errorf("expected no match, got %v %q", d.Kind, d.Result.RawTitle)
	}

	if d := Match(q, nil); d.Kind != None {
		t.Errorf("Match(nil) Kind = %v, want none", d.Kind)
	}
	if d := Match(media.MediaQuery{Title: "???"}, []media.SearchResult{{RawTitle: "Heat"}}); d.Kind != None {
		t.Errorf("empty normalized query should never match, got %v", d.Kind)
	}
}

func TestHasSeason(t *testing.T) {
	tests := []struct {
		raw    string
		season int
		want   bool
	}{
		{"Show - Season 2", 2, true},
		{"Show season2", 2, true},
		{"Show SEASON 02", 2, true},
		{"Show - Season 12", 1, false},
		{"Show", 1, false},
	}
	for _, tt := range tests {
		if got := HasSeason(tt.raw, tt.season); got != tt.want {
			t.Errorf("HasSeason(%q, %d) = %v, want %v", tt.raw, tt.season, got, tt.want)
		}
	}
}
