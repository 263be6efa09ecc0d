// Package challenge talks to an external CAPTCHA-solving service that turns a
// Turnstile site key into a token.
package challenge

//go:generate mockgen -source=challenge.go -destination=mocks/solver_mock.go -package=mocks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"reelscrape/internal/httputil"
	"reelscrape/internal/media"
)

// Solver produces a challenge token for a site key. Failures wrap
// media.ErrChallengeFailed.
type Solver interface {
	Solve(ctx context.Context, siteKey string) (string, error)
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, siteKey string) (string, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, siteKey string) (string, error) {
	return f(ctx, siteKey)
}

// Unavailable is the solver used when no service is configured.
var Unavailable Solver = SolverFunc(func(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: no solver configured", media.ErrChallengeFailed)
})

type solveRequest struct {
	Cmd        string `json:"cmd"`
	SiteKey    string `json:"sitekey"`
	URL        string `json:"url,omitempty"`
	MaxTimeout int    `json:"maxTimeout"`
}

type solveResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		Token string `json:"token"`
	} `json:"solution"`
}

// Client is an HTTP solver-service client.
type Client struct {
	baseURL    string
	pageURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewClient creates a solver client for the service at baseURL. pageURL is
// the page the challenge is embedded in and may be empty.
func NewClient(baseURL, pageURL string, timeout time.Duration, log logrus.FieldLogger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		pageURL: pageURL,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout + 10*time.Second, // Service overhead on top of the solve itself
		},
		log: log.WithField("component", "challenge"),
	}
}

// Solve asks the service for a Turnstile token.
func (c *Client) Solve(ctx context.Context, siteKey string) (string, error) {
	token, err := c.solve(ctx, siteKey)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %w", media.ErrChallengeFailed, err)
	}
	return token, nil
}

func (c *Client) solve(ctx context.Context, siteKey string) (string, error) {
	endpoint := c.baseURL + "/v1"
	if err := httputil.ValidateHTTPURL(endpoint); err != nil {
		return "", fmt.Errorf("invalid solver URL: %w", err)
	}

	c.log.WithField("sitekey", siteKey).Debug("requesting challenge token")

	body, err := json.Marshal(solveRequest{
		Cmd:        "turnstile.solve",
		SiteKey:    siteKey,
		URL:        c.pageURL,
		MaxTimeout: int(c.timeout.Milliseconds()),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := httputil.ReadBody(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("solver returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var sr solveResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if sr.Status != "ok" {
		return "", fmt.Errorf("solver error: %s", sr.Message)
	}
	if sr.Solution.Token == "" {
		return "", fmt.Errorf("solver returned an empty token")
	}

	c.log.Debug("challenge solved")
	return sr.Solution.Token, nil
}
