package normalize

import (
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelscrape/internal/media"
)

func loadSources(t *testing.T) SourceSet {
	t.Helper()
	data, err := os.ReadFile("testdata/uira_sources.json")
	require.NoError(t, err)
	set, err := ParseSourceSet(data)
	require.NoError(t, err)
	return set
}

func TestParseSourceSet(t *testing.T) {
	set := loadSources(t)

	require.Len(t, set.Sources, 3)
	assert.Equal(t, media.KindHLS, set.Sources[0].Kind)
	assert.Equal(t, "auto", set.Sources[0].Quality)
	assert.Equal(t, media.KindFile, set.Sources[1].Kind)
	assert.Equal(t, "1080", set.Sources[1].Quality)
	assert.Equal(t, "https://files.example/movie-720.mp4", set.Sources[2].URL)
	assert.Equal(t, "720", set.Sources[2].Quality)

	require.Len(t, set.Captions, 2, "caption without URL is dropped")
	assert.Equal(t, media.CaptionTrack{
		ID: "https://subs.example/en.vtt", Language: "English", URL: "https://subs.example/en.vtt", Type: media.CaptionVTT,
	}, set.Captions[0])
	assert.Equal(t, "es-1", set.Captions[1].ID)
	assert.Equal(t, media.CaptionSRT, set.Captions[1].Type)
}

func TestParseSourceSetRejects(t *testing.T) {
	tests := map[string]string{
		"not json":     `<html>`,
		"unknown kind": `{"sources":[{"file":"https://a/b.mpd","type":"dash"}]}`,
		"no url":       `{"sources":[{"type":"hls"}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSourceSet([]byte(body))
			assert.ErrorIs(t, err, media.ErrMalformedResponse)
		})
	}
}

func TestParseSourceSetError(t *testing.T) {
	set, err := ParseSourceSet([]byte(`{"error":"Invalid turnstile token"}`))
	require.NoError(t, err)
	assert.Equal(t, "Invalid turnstile token", set.Error)
	assert.Empty(t, set.Sources)
}

func TestNormalize(t *testing.T) {
	set := loadSources(t)
	streams := Normalize(set, Options{HeadersSupported: true, Flags: []media.Flag{media.FlagCORSAllowed}})
	require.Len(t, streams, 3)

	hls := streams[0]
	assert.Equal(t, media.KindHLS, hls.Kind)
	assert.Equal(t, "https://stream.example/hls/master.m3u8", hls.Playlist)
	assert.Nil(t, hls.Qualities)
	assert.True(t, hls.HasFlag(media.FlagCORSAllowed))
	assert.Len(t, hls.Captions, 2)

	file := streams[1]
	assert.Equal(t, media.KindFile, file.Kind)
	assert.Empty(t, file.Playlist)
	assert.Equal(t, media.FileVariant{Type: "mp4", URL: "https://files.example/movie-1080.mp4"}, file.Qualities["1080"])
	assert.Equal(t, "https://files.example/movie-1080.mp4", file.URL())
}

func TestNormalizeKeepsHLSHeaders(t *testing.T) {
	set := SourceSet{Sources: []Source{{
		Kind:    media.KindHLS,
		URL:     "https://stream.example/a.m3u8",
		Headers: map[string]string{"Referer": "https://x"},
	}}}

	streams := Normalize(set, Options{HeadersSupported: true})
	require.Len(t, streams, 1)
	assert.Equal(t, map[string]string{"Referer": "https://x"}, streams[0].Headers)

	// The descriptor owns its map.
	set.Sources[0].Headers["Referer"] = "https://changed"
	assert.Equal(t, "https://x", streams[0].Headers["Referer"])
}

func TestNormalizeCaptionsNeverNil(t *testing.T) {
	streams := Normalize(SourceSet{Sources: []Source{{Kind: media.KindFile, URL: "https://a/b.mp4", Quality: "unknown"}}}, Options{})
	require.Len(t, streams, 1)
	assert.NotNil(t, streams[0].Captions)
	assert.Empty(t, streams[0].Captions)
	assert.NotNil(t, streams[0].Flags)
}

func TestNormalizeProxiesWithoutHeaderSupport(t *testing.T) {
	set := SourceSet{Sources: []Source{{
		Kind:    media.KindHLS,
		URL:     "https://stream.example/a.m3u8",
		Headers: map[string]string{"Referer": "https://x"},
	}}}

	streams := Normalize(set, Options{M3U8Proxy: "https://proxy.example/"})
	require.Len(t, streams, 1)

	u, err := url.Parse(streams[0].Playlist)
	require.NoError(t, err)
	assert.Equal(t, "proxy.example", u.Host)
	assert.Equal(t, "/m3u8-proxy", u.Path)
	assert.Equal(t, "https://stream.example/a.m3u8", u.Query().Get("url"))
	assert.JSONEq(t, `{"Referer":"https://x"}`, u.Query().Get("headers"))
	assert.Equal(t, map[string]string{"Referer": "https://x"}, streams[0].Headers)

	// No proxy configured: the manifest is left alone.
	streams = Normalize(set, Options{})
	assert.Equal(t, "https://stream.example/a.m3u8", streams[0].Playlist)
}

func TestMirrorRoundTrip(t *testing.T) {
	hls := media.NewHLSStream("source-0", "https://stream.example/a.m3u8",
		map[string]string{"Referer": "https://x"}, []media.Flag{media.FlagCORSAllowed}, nil)

	ref, err := EncodeMirror(hls)
	require.NoError(t, err)
	assert.Equal(t, MirrorEmbedID, ref.EmbedID)

	got, err := DecodeMirror(ref.URL)
	require.NoError(t, err)
	assert.Equal(t, "primary", got.ID)
	assert.Equal(t, hls.Playlist, got.Playlist)
	assert.Equal(t, hls.Headers, got.Headers)
	assert.Equal(t, hls.Flags, got.Flags)
	assert.Equal(t, []media.CaptionTrack{}, got.Captions)

	file := media.NewFileStream("source-1", map[string]media.FileVariant{"720": {Type: "mp4", URL: "https://f/720.mp4"}}, nil, nil, nil)
	ref, err = EncodeMirror(file)
	require.NoError(t, err)
	assert.Contains(t, ref.URL, `"skipvalid":true`)

	got, err = DecodeMirror(ref.URL)
	require.NoError(t, err)
	assert.Equal(t, media.KindFile, got.Kind)
	assert.Equal(t, "https://f/720.mp4", got.URL())
}

func TestDecodeMirrorMalformed(t *testing.T) {
	for _, payload := range []string{
		`not json`,
		`{"type":"hls"}`,
		`{"type":"file"}`,
		`{"type":"dash","stream":"x"}`,
	} {
		_, err := DecodeMirror(payload)
		assert.ErrorIs(t, err, media.ErrMalformedResponse, payload)
	}
}
