package provider

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	challengemocks "reelscrape/internal/challenge/mocks"
	"reelscrape/internal/fetch"
	fetchmocks "reelscrape/internal/fetch/mocks"
	"reelscrape/internal/logging"
	"reelscrape/internal/media"
	"reelscrape/internal/normalize"
	"reelscrape/internal/token"
)

const uiraSources = `{
  "sources": [
    {"file": "https://hls.example/master.m3u8", "type": "hls", "headers": {"Referer": "https://vidzee.example"}},
    {"file": "https://files.example/720.mp4", "type": "mp4", "quality": "720p"}
  ],
  "subtitles": [{"url": "https://subs.example/en.vtt", "lang": "English"}]
}`

func newUiraTest(t *testing.T) (*fetchmocks.MockFetcher, *challengemocks.MockSolver, *token.Exchange, *token.MemoryStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := token.NewMemoryStore()
	return fetchmocks.NewMockFetcher(ctrl), challengemocks.NewMockSolver(ctrl),
		token.NewExchange(store, token.DefaultTTL, nil, logging.Discard()), store
}

func TestUiraMovie(t *testing.T) {
	f, solver, tokens, _ := newUiraTest(t)
	solver.EXPECT().Solve(gomock.Any(), UiraSiteKey).Return("turnstile-abc", nil)
	f.EXPECT().Full(gomock.Any(), "https://pasmells.uira.live/api/scrapers/vidzee/stream/603", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, opts fetch.Options) (*fetch.Response, error) {
			assert.Equal(t, "turnstile-abc", opts.Headers["X-Turnstile-Token"])
			assert.Empty(t, opts.Query, "no proxy param when headers are supported")
			return okResponse([]byte(uiraSources), ""), nil
		})

	progress, got := recordProgress()
	u := NewUira(f, UiraConfigs[2], UiraOptions{Tokens: tokens, Solver: solver}, logging.Discard())
	res, err := u.ScrapeMovie(context.Background(), NewContext(true, progress), media.MediaQuery{
		Type: media.Movie, Title: "The Matrix", TMDBID: "603",
	})
	require.NoError(t, err)

	assert.Empty(t, res.Streams)
	require.Len(t, res.Embeds, 2)
	assert.Equal(t, normalize.MirrorEmbedID, res.Embeds[0].EmbedID)
	assert.Equal(t, []int{20, 90}, *got)

	hls, err := normalize.DecodeMirror(res.Embeds[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "https://hls.example/master.m3u8", hls.Playlist)
	assert.Equal(t, map[string]string{"Referer": "https://vidzee.example"}, hls.Headers)
	assert.True(t, hls.HasFlag(media.FlagCORSAllowed))
	require.Len(t, hls.Captions, 1)

	file, err := normalize.DecodeMirror(res.Embeds[1].URL)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/720.mp4", file.Qualities["720"].URL)
}

func TestUiraShowWithoutHeaderSupport(t *testing.T) {
	f, solver, tokens, _ := newUiraTest(t)
	solver.EXPECT().Solve(gomock.Any(), UiraSiteKey).Return("tok", nil)
	f.EXPECT().Full(gomock.Any(), "https://pasmells.uira.live/api/scrapers/watch32/stream/1396/2/5", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, opts fetch.Options) (*fetch.Response, error) {
			assert.Equal(t, "true", opts.Query["proxy"])
			return okResponse([]byte(uiraSources), ""), nil
		})

	u := NewUira(f, UiraConfigs[0], UiraOptions{Tokens: tokens, Solver: solver, M3U8Proxy: "https://proxy.example"}, logging.Discard())
	res, err := u.ScrapeShow(context.Background(), NewContext(false, nil), media.MediaQuery{
		Type: media.Show, Title: "Breaking Bad", TMDBID: "1396", Season: 2, Episode: 5,
	})
	require.NoError(t, err)

	hls, err := normalize.DecodeMirror(res.Embeds[0].URL)
	require.NoError(t, err)
	assert.Contains(t, hls.Playlist, "https://proxy.example/m3u8-proxy?")
}

func TestUiraReusesTokenAcrossAdapters(t *testing.T) {
	f, solver, tokens, _ := newUiraTest(t)
	solver.EXPECT().Solve(gomock.Any(), UiraSiteKey).Return("shared", nil).Times(1)
	f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(okResponse([]byte(uiraSources), ""), nil).Times(2)

	q := media.MediaQuery{Type: media.Movie, Title: "Heat", TMDBID: "949"}
	for _, cfg := range UiraConfigs[:2] {
		u := NewUira(f, cfg, UiraOptions{Tokens: tokens, Solver: solver}, logging.Discard())
		_, err := u.ScrapeMovie(context.Background(), NewContext(true, nil), q)
		require.NoError(t, err)
	}
}

func TestUiraRetriesEmptyResponseOnce(t *testing.T) {
	f, solver, tokens, _ := newUiraTest(t)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return("tok", nil)
	gomock.InOrder(
		f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).Return(okResponse([]byte("  "), ""), nil),
		f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).Return(okResponse([]byte(uiraSources), ""), nil),
	)

	u := NewUira(f, UiraConfigs[0], UiraOptions{Tokens: tokens, Solver: solver}, logging.Discard())
	res, err := u.ScrapeMovie(context.Background(), NewContext(true, nil), media.MediaQuery{Type: media.Movie, Title: "X", TMDBID: "1"})
	require.NoError(t, err)
	assert.Len(t, res.Embeds, 2)
}

func TestUiraEmptyTwiceIsNotFound(t *testing.T) {
	f, solver, tokens, _ := newUiraTest(t)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return("tok", nil)
	f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).Return(okResponse(nil, ""), nil).Times(2)

	u := NewUira(f, UiraConfigs[0], UiraOptions{Tokens: tokens, Solver: solver}, logging.Discard())
	_, err := u.ScrapeMovie(context.Background(), NewContext(true, nil), media.MediaQuery{Type: media.Movie, Title: "X", TMDBID: "1"})
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestUiraInvalidTokenIsCleared(t *testing.T) {
	for name, resp := range map[string]*fetch.Response{
		"ok status":    okResponse([]byte(`{"error":"Invalid turnstile token"}`), ""),
		"error status": {StatusCode: http.StatusForbidden, Body: []byte(`{"error":"Invalid turnstile token"}`)},
	} {
		t.Run(name, func(t *testing.T) {
			f, solver, tokens, store := newUiraTest(t)
			solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return("stale", nil)
			f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).Return(resp, nil)

			u := NewUira(f, UiraConfigs[0], UiraOptions{Tokens: tokens, Solver: solver}, logging.Discard())
			_, err := u.ScrapeMovie(context.Background(), NewContext(true, nil), media.MediaQuery{Type: media.Movie, Title: "X", TMDBID: "1"})
			assert.ErrorIs(t, err, media.ErrNotFound)

			_, ok, err := store.Get(context.Background(), UiraTokenKey)
			require.NoError(t, err)
			assert.False(t, ok, "rejected token must be removed")
		})
	}
}

func TestUiraNoSources(t *testing.T) {
	f, solver, tokens, _ := newUiraTest(t)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any()).Return("tok", nil)
	f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).Return(okResponse([]byte(`{"sources":[]}`), ""), nil)

	u := NewUira(f, UiraConfigs[0], UiraOptions{Tokens: tokens, Solver: solver}, logging.Discard())
	_, err := u.ScrapeMovie(context.Background(), NewContext(true, nil), media.MediaQuery{Type: media.Movie, Title: "X", TMDBID: "1"})
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestUiraWithoutTMDBID(t *testing.T) {
	f, _, tokens, _ := newUiraTest(t)
	u := NewUira(f, UiraConfigs[0], UiraOptions{Tokens: tokens}, logging.Discard())
	_, err := u.ScrapeMovie(context.Background(), NewContext(true, nil), media.MediaQuery{Type: media.Movie, Title: "X"})
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestUiraSolverFailure(t *testing.T) {
	f, _, tokens, _ := newUiraTest(t)
	u := NewUira(f, UiraConfigs[0], UiraOptions{Tokens: tokens}, logging.Discard())
	_, err := u.ScrapeMovie(context.Background(), NewContext(true, nil), media.MediaQuery{Type: media.Movie, Title: "X", TMDBID: "1"})
	assert.ErrorIs(t, err, media.ErrChallengeFailed)
}
