package token

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"reelscrape/internal/fetch"
	"reelscrape/internal/media"
)

var tokenPattern = regexp.MustCompile(`token1=(\w+)&token2=(\w+)&token3=(\w+)`)

// HandshakeConfig describes a token endpoint and the fixed client identity
// sent to it.
type HandshakeConfig struct {
	Endpoint string
	// Boundary is the multipart boundary; some endpoints only accept the
	// one a real browser sends.
	Boundary string
	ClientID string
	Renderer string // WebGL renderer string of the pretended device
	Domain   string // Site the player is embedded on, with trailing slash
}

// HandshakeRequest identifies the asset to authorize.
type HandshakeRequest struct {
	VideoID string
	Referer string
}

// Tokens are the three query tokens that unlock a stream.
type Tokens struct {
	Token1 string
	Token2 string
	Token3 string
}

// Apply appends the tokens as token1..token3 query parameters to rawURL.
func (t Tokens) Apply(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing stream URL: %w", err)
	}
	q := u.Query()
	for _, kv := range [][2]string{{"token1", t.Token1}, {"token2", t.Token2}, {"token3", t.Token3}} {
		if kv[1] != "" {
			q.Add(kv[0], kv[1])
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseTokens extracts the token triple from a handshake response body.
func ParseTokens(body string) (Tokens, bool) {
	m := tokenPattern.FindStringSubmatch(body)
	if m == nil {
		return Tokens{}, false
	}
	return Tokens{Token1: m[1], Token2: m[2], Token3: m[3]}, true
}

// Handshake performs the multipart token exchange.
type Handshake struct {
	fetcher fetch.Fetcher
	cfg     HandshakeConfig
	log     logrus.FieldLogger
}

// NewHandshake creates a Handshake against cfg.Endpoint.
func NewHandshake(f fetch.Fetcher, cfg HandshakeConfig, log logrus.FieldLogger) *Handshake {
	return &Handshake{fetcher: f, cfg: cfg, log: log.WithField("component", "handshake")}
}

// Exchange posts the form and parses the tokens from the response. An empty
// first response is retried once; a response without tokens fails with
// media.ErrTokenExchangeFailed.
func (h *Handshake) Exchange(ctx context.Context, req HandshakeRequest) (Tokens, error) {
	body, contentType, err := h.form(req.VideoID)
	if err != nil {
		return Tokens{}, err
	}

	opts := fetch.Options{
		Method: http.MethodPost,
		Headers: map[string]string{
			"Content-Type": contentType,
		},
		Body: body,
	}
	if req.Referer != "" {
		opts.Headers["Referer"] = req.Referer
	}

	var text string
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := h.fetcher.Full(ctx, h.cfg.Endpoint, opts)
		if err != nil {
			return Tokens{}, fmt.Errorf("token handshake: %w", err)
		}
		if err := fetch.CheckResponse(resp); err != nil {
			return Tokens{}, fmt.Errorf("token handshake: %w", err)
		}
		text = strings.TrimSpace(resp.Text())
		if text != "" {
			break
		}
		h.log.WithField("attempt", attempt).Debug("empty handshake response")
	}

	tokens, ok := ParseTokens(text)
	if !ok {
		return Tokens{}, fmt.Errorf("%w: no tokens for video %s", media.ErrTokenExchangeFailed, req.VideoID)
	}
	return tokens, nil
}

func (h *Handshake) form(videoID string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if h.cfg.Boundary != "" {
		if err := w.SetBoundary(h.cfg.Boundary); err != nil {
			return nil, "", fmt.Errorf("setting boundary: %w", err)
		}
	}

	fields := [][2]string{
		{"renderer", h.cfg.Renderer},
		{"id", h.cfg.ClientID},
		{"videoId", videoID},
		{"domain", h.cfg.Domain},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("writing %s field: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
