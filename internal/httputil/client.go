// Package httputil provides a hardened HTTP client with proxy routing and
// browser TLS fingerprinting, plus input sanitization utilities.
package httputil

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// UserAgent is the browser identity sent with every scraping request.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:145.0) Gecko/20100101 Firefox/145.0"

// MaxBodySize caps how much of a response body is read.
const MaxBodySize = 10 * 1024 * 1024 // 10MB

// ClientOptions configures NewClient.
type ClientOptions struct {
	Timeout time.Duration
	// Proxy is an http://, https://, socks5:// or socks5h:// URL. Empty means direct.
	Proxy string
	// FingerprintHosts lists host substrings that get a Chrome TLS fingerprint.
	FingerprintHosts []string
}

// NewClient creates a hardened HTTP client with secure defaults.
func NewClient(opts ClientOptions) (*http.Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ResponseHeaderTimeout: opts.Timeout,
	}

	var dial dialContextFunc = dialer.DialContext
	if opts.Proxy != "" {
		u, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy URL: %w", err)
		}
		switch u.Scheme {
		case "socks5", "socks5h":
			d, err := proxy.FromURL(u, dialer)
			if err != nil {
				return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
			}
			transport.DialContext = cd.DialContext
			dial = cd.DialContext
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}

	var rt http.RoundTripper = transport
	if len(opts.FingerprintHosts) > 0 {
		if transport.Proxy != nil {
			return nil, fmt.Errorf("fingerprint hosts require a direct or SOCKS5 proxy")
		}
		rt = &routingTransport{
			base:        transport,
			fingerprint: newUTLSRoundTripper(dial),
			hosts:       opts.FingerprintHosts,
		}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: rt,
	}, nil
}

// routingTransport sends fingerprinted hosts through utls and everything else
// through the standard transport.
type routingTransport struct {
	base        http.RoundTripper
	fingerprint http.RoundTripper
	hosts       []string
}

func (t *routingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "https" && matchesHost(req.URL.Hostname(), t.hosts) {
		return t.fingerprint.RoundTrip(req)
	}
	return t.base.RoundTrip(req)
}

func matchesHost(host string, patterns []string) bool {
	host = strings.ToLower(host)
	for _, p := range patterns {
		if p != "" && strings.Contains(host, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// SetBrowserHeaders applies the standard browser-like headers to req.
func SetBrowserHeaders(req *http.Request, accept string) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

// ReadBody reads at most MaxBodySize bytes from r.
func ReadBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
