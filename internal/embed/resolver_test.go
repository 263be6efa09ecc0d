package embed

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"reelscrape/internal/fetch"
	"reelscrape/internal/fetch/mocks"
	"reelscrape/internal/media"
)

const origin = "https://www3.fsonline.app"

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return data
}

func ok(body []byte, finalURL string) *fetch.Response {
	return &fetch.Response{StatusCode: 200, Body: body, FinalURL: finalURL}
}

func TestResolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)

	gomock.InOrder(
		f.EXPECT().Full(gomock.Any(), "https://embed.example/start", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, opts fetch.Options) (*fetch.Response, error) {
				assert.Equal(t, origin, opts.Headers["Referer"])
				assert.Equal(t, origin, opts.Headers["Origin"])
				assert.Equal(t, "iframe", opts.Headers["sec-fetch-dest"])
				assert.Equal(t, "navigate", opts.Headers["sec-fetch-mode"])
				assert.Equal(t, "cross-site", opts.Headers["sec-fetch-site"])
				return ok(fixture(t, "outer.html"), "https://embed.example/redirected/page"), nil
			}),
		f.EXPECT().Full(gomock.Any(), "https://embed.example/e/abc123xyz", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, opts fetch.Options) (*fetch.Response, error) {
				assert.Equal(t, "https://embed.example/redirected/page", opts.Headers["Referer"])
				assert.Equal(t, origin, opts.Headers["Origin"])
				return ok(fixture(t, "player.html"), "https://embed.example/e/abc123xyz"), nil
			}),
	)

	r := NewResolver(f, origin, quietLogger(), WithSelector("#iframe-holder iframe"))
	ref, err := r.Resolve(context.Background(), "https://embed.example/start")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example/master.m3u8", ref.AssetURL)
	assert.Equal(t, "https://embed.example/e/abc123xyz", ref.EmbedURL)
	assert.Equal(t, "https://embed.example/redirected/page", ref.RefererURL)
	assert.Equal(t, "abc123xyz", ref.VideoID)
}

func TestResolveNoIframe(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(ok(fixture(t, "outer_noiframe.html"), "https://embed.example/start"), nil)

	r := NewResolver(f, origin, quietLogger())
	_, err := r.Resolve(context.Background(), "https://embed.example/start")
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrEmbedNotFound)
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestResolveNoPackedScript(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	gomock.InOrder(
		f.EXPECT().Full(gomock.Any(), "https://embed.example/start", gomock.Any()).
			Return(ok(fixture(t, "outer.html"), "https://embed.example/start"), nil),
		f.EXPECT().Full(gomock.Any(), "https://embed.example/e/abc123xyz", gomock.Any()).
			Return(ok(fixture(t, "player_plain.html"), "https://embed.example/e/abc123xyz"), nil),
	)

	r := NewResolver(f, origin, quietLogger(), WithEvaluate(true))
	_, err := r.Resolve(context.Background(), "https://embed.example/start")
	assert.ErrorIs(t, err, media.ErrEmbedNotFound)
}

func TestResolveTransportFailure(t *testing.T) {
	cause := errors.Join(media.ErrTransport, errors.New("connection reset"))

	t.Run("outer", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		f := mocks.NewMockFetcher(ctrl)
		f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, cause)

		_, err := NewResolver(f, origin, quietLogger()).Resolve(context.Background(), "https://embed.example/start")
		assert.ErrorIs(t, err, media.ErrEmbedNotFound)
		assert.ErrorIs(t, err, media.ErrTransport)
	})

	t.Run("outer status", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		f := mocks.NewMockFetcher(ctrl)
		f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&fetch.Response{StatusCode: 404, FinalURL: "https://embed.example/start"}, nil)

		_, err := NewResolver(f, origin, quietLogger()).Resolve(context.Background(), "https://embed.example/start")
		assert.ErrorIs(t, err, media.ErrEmbedNotFound)
		var se *fetch.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 404, se.StatusCode)
	})

	t.Run("inner", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		f := mocks.NewMockFetcher(ctrl)
		gomock.InOrder(
			f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(ok(fixture(t, "outer.html"), "https://embed.example/start"), nil),
			f.EXPECT().Full(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, cause),
		)

		_, err := NewResolver(f, origin, quietLogger()).Resolve(context.Background(), "https://embed.example/start")
		assert.ErrorIs(t, err, media.ErrEmbedNotFound)
		assert.ErrorIs(t, err, media.ErrTransport)
	})
}

func TestExtractFile(t *testing.T) {
	u, found := ExtractFile(`player.setup({file:"https://a.example/b.m3u8",image:"x"})`).Get()
	require.True(t, found)
	assert.Equal(t, "https://a.example/b.m3u8", u)

	assert.True(t, ExtractFile(`{file:"ftp://a"}`).IsAbsent())
	assert.True(t, ExtractFile(`{sources:[{src:"https://a"}]}`).IsAbsent())
}

func TestVideoID(t *testing.T) {
	tests := map[string]string{
		"https://filemoon.example/e/abc123":        "abc123",
		"https://filemoon.example/e/abc123/":       "abc123",
		"https://player.example/embed?id=f00d&x=1": "f00d",
		"https://player.example/":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, VideoID(in), in)
	}
}
