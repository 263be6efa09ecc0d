package provider

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"reelscrape/internal/fetch"
	fetchmocks "reelscrape/internal/fetch/mocks"
	"reelscrape/internal/logging"
	"reelscrape/internal/media"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return data
}

func okResponse(body []byte, finalURL string) *fetch.Response {
	return &fetch.Response{StatusCode: http.StatusOK, Body: body, FinalURL: finalURL}
}

func recordProgress() (ProgressFunc, *[]int) {
	var got []int
	return func(p int) { got = append(got, p) }, &got
}

func TestMovies4FMovie(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := fetchmocks.NewMockFetcher(ctrl)

	gomock.InOrder(
		f.EXPECT().Full(gomock.Any(), "https://movies4f.com/search?q=The+Thing", gomock.Any()).
			Return(okResponse(fixture(t, "movies4f_search.html"), "https://movies4f.com/search?q=The+Thing"), nil),
		f.EXPECT().Full(gomock.Any(), "https://movies4f.com/film/1203/the-thing/", gomock.Any()).
			Return(okResponse(fixture(t, "movies4f_film.html"), "https://movies4f.com/film/1203/the-thing/"), nil),
		f.EXPECT().Full(gomock.Any(), "https://moviking.childish2x2.fun/geturl", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, opts fetch.Options) (*fetch.Response, error) {
				assert.Equal(t, http.MethodPost, opts.Method)
				assert.Equal(t, "https://moviking.childish2x2.fun/player/?id=v9f8e7d6&lang=en", opts.Headers["Referer"])

				_, params, err := mime.ParseMediaType(opts.Headers["Content-Type"])
				require.NoError(t, err)
				assert.Equal(t, "----geckoformboundaryc5f480bcac13a77346dab33881da6bfb", params["boundary"])

				fields := readForm(t, opts.Body, params["boundary"])
				assert.Equal(t, "v9f8e7d6", fields["videoId"])
				assert.Equal(t, "https://movies4f.com/", fields["domain"])
				assert.Equal(t, "6164426f797cf4b2fe93e4b20c0a4338", fields["id"])
				return okResponse([]byte("ok&token1=aaa&token2=bbb&token3=ccc"), ""), nil
			}),
	)

	progress, got := recordProgress()
	m := NewMovies4F(f, DefaultMovies4FConfig(), logging.Discard())
	res, err := m.ScrapeMovie(context.Background(), NewContext(true, progress), media.MediaQuery{
		Type: media.Movie, Title: "The Thing", ReleaseYear: 1982,
	})
	require.NoError(t, err)

	require.Len(t, res.Streams, 1)
	s := res.Streams[0]
	assert.Equal(t, "primary", s.ID)
	assert.Equal(t, media.KindHLS, s.Kind)
	assert.Equal(t, "https://cdn.neuronix.sbs/segment/v9f8e7d6/?token1=aaa&token2=bbb&token3=ccc", s.Playlist)
	assert.Equal(t, "https://cdn.neuronix.sbs", s.Headers["Referer"])
	assert.Equal(t, "cdn.neuronix.sbs", s.Headers["Origin"])
	assert.True(t, s.HasFlag(media.FlagCORSAllowed))
	assert.Empty(t, res.Embeds)
	assert.Equal(t, []int{40, 50, 60, 70, 80, 95}, *got)
}

func TestMovies4FShowPicksSeasonAndEpisode(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := fetchmocks.NewMockFetcher(ctrl)

	gomock.InOrder(
		f.EXPECT().Full(gomock.Any(), "https://movies4f.com/search?q=Severance", gomock.Any()).
			Return(okResponse(fixture(t, "movies4f_search.html"), ""), nil),
		f.EXPECT().Full(gomock.Any(), "https://movies4f.com/film/8802/severance-season-2/episode-3", gomock.Any()).
			Return(okResponse(fixture(t, "movies4f_film.html"), ""), nil),
		f.EXPECT().Full(gomock.Any(), "https://moviking.childish2x2.fun/geturl", gomock.Any()).
			Return(okResponse([]byte("token1=a&token2=b&token3=c"), ""), nil),
	)

	m := NewMovies4F(f, DefaultMovies4FConfig(), logging.Discard())
	res, err := m.ScrapeShow(context.Background(), NewContext(true, nil), media.MediaQuery{
		Type: media.Show, Title: "Severance", Season: 2, Episode: 3,
	})
	require.NoError(t, err)
	require.Len(t, res.Streams, 1)
}

func TestMovies4FRetriesSearchWithYear(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := fetchmocks.NewMockFetcher(ctrl)

	gomock.InOrder(
		f.EXPECT().Full(gomock.Any(), "https://movies4f.com/search?q=Heat", gomock.Any()).
			Return(okResponse(fixture(t, "movies4f_empty.html"), ""), nil),
		f.EXPECT().Full(gomock.Any(), "https://movies4f.com/search?q=Heat+1995", gomock.Any()).
			Return(okResponse(fixture(t, "movies4f_empty.html"), ""), nil),
	)

	m := NewMovies4F(f, DefaultMovies4FConfig(), logging.Discard())
	_, err := m.ScrapeMovie(context.Background(), NewContext(true, nil), media.MediaQuery{
		Type: media.Movie, Title: "Heat", ReleaseYear: 1995,
	})
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestMovies4FHandshakeWithoutTokens(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := fetchmocks.NewMockFetcher(ctrl)

	f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rawURL string, _ fetch.Options) (*fetch.Response, error) {
			switch {
			case strings.Contains(rawURL, "/search"):
				return okResponse(fixture(t, "movies4f_search.html"), ""), nil
			case strings.Contains(rawURL, "/film/"):
				return okResponse(fixture(t, "movies4f_film.html"), ""), nil
			default:
				return okResponse([]byte("denied"), ""), nil
			}
		}).Times(3)

	m := NewMovies4F(f, DefaultMovies4FConfig(), logging.Discard())
	_, err := m.ScrapeMovie(context.Background(), NewContext(true, nil), media.MediaQuery{Type: media.Movie, Title: "The Thing"})
	assert.ErrorIs(t, err, media.ErrTokenExchangeFailed)
	assert.True(t, media.IsExpected(err))
}

func TestMovies4FFilmPageWithoutIframe(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := fetchmocks.NewMockFetcher(ctrl)

	gomock.InOrder(
		f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(okResponse(fixture(t, "movies4f_search.html"), ""), nil),
		f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(okResponse(fixture(t, "movies4f_empty.html"), ""), nil),
	)

	m := NewMovies4F(f, DefaultMovies4FConfig(), logging.Discard())
	_, err := m.ScrapeMovie(context.Background(), NewContext(true, nil), media.MediaQuery{Type: media.Movie, Title: "The Thing"})
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestMovies4FSearchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := fetchmocks.NewMockFetcher(ctrl)
	f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&fetch.Response{StatusCode: http.StatusBadGateway}, nil)

	m := NewMovies4F(f, DefaultMovies4FConfig(), logging.Discard())
	_, err := m.ScrapeMovie(context.Background(), NewContext(true, nil), media.MediaQuery{Type: media.Movie, Title: "The Thing"})
	assert.ErrorIs(t, err, media.ErrTransport)
}

func readForm(t *testing.T, body []byte, boundary string) map[string]string {
	t.Helper()
	r := multipart.NewReader(strings.NewReader(string(body)), boundary)
	fields := make(map[string]string)
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		v, err := io.ReadAll(p)
		require.NoError(t, err)
		fields[p.FormName()] = string(v)
	}
	return fields
}
