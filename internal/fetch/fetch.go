// Package fetch defines the HTTP capability providers scrape through.
package fetch

//go:generate mockgen -source=fetch.go -destination=mocks/fetcher_mock.go -package=mocks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"reelscrape/internal/httputil"
	"reelscrape/internal/media"
)

// Options describes a single request.
type Options struct {
	Method  string            // Defaults to GET
	Headers map[string]string // Applied after the browser defaults
	Body    []byte
	Query   map[string]string
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	// FinalURL is the URL after redirects.
	FinalURL string
	Header   http.Header
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Fetcher performs HTTP requests. Timeouts and proxying belong to the
// implementation.
type Fetcher interface {
	Full(ctx context.Context, url string, opts Options) (*Response, error)
}

// StatusError reports an HTTP status of 400 or above.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("response does not indicate success: %d for %s", e.StatusCode, e.URL)
}

// Unwrap makes every StatusError match media.ErrTransport.
func (e *StatusError) Unwrap() error {
	return media.ErrTransport
}

// CheckResponse fails for status codes >= 400.
func CheckResponse(resp *Response) error {
	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, URL: resp.FinalURL}
	}
	return nil
}

// HTTPFetcher implements Fetcher over an *http.Client.
type HTTPFetcher struct {
	client *http.Client
	log    logrus.FieldLogger
}

// NewHTTPFetcher creates a fetcher using client.
func NewHTTPFetcher(client *http.Client, log logrus.FieldLogger) *HTTPFetcher {
	return &HTTPFetcher{client: client, log: log.WithField("component", "fetch")}
}

// Full sends the request and reads the whole body. Network errors wrap
// media.ErrTransport; the status code is not checked.
func (f *HTTPFetcher) Full(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	if err := httputil.ValidateHTTPURL(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if len(opts.Query) > 0 {
		q := req.URL.Query()
		for k, v := range opts.Query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	httputil.SetBrowserHeaders(req, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range opts.Headers {
		if strings.EqualFold(k, "host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	f.log.WithFields(logrus.Fields{"method": method, "url": req.URL.String()}).Debug("fetching")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s %s: %w: %w", method, rawURL, media.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := httputil.ReadBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrTransport, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		FinalURL:   resp.Request.URL.String(),
		Header:     resp.Header,
	}, nil
}
