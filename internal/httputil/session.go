// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/pdiddy/pdf-harvest/pkg/types"
)

// DefaultUserAgent mimics a desktop Chrome. Several publishers answer
// non-browser agents with 403 or an HTML challenge.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Session is the HTTP state of one batch run: a pooled client with a
// cookie jar, the retry budget, and the headers sent on every request.
// It is created once per run and used sequentially.
type Session struct {
	client      *http.Client
	maxAttempts int
	header      http.Header
	cookies     map[string]string
}

// NewSession builds a Session from cfg. Redirects are followed by the
// client; cookies set by one response are sent on later requests to the
// same site, which the landing-page retry depends on.
func NewSession(cfg types.HTTPConfig) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   20 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return NewSessionWithClient(&http.Client{Transport: transport, Jar: jar}, cfg), nil
}

// NewSessionWithClient wraps an existing client, e.g. httptest.Server.Client().
// A client without a cookie jar gets one.
func NewSessionWithClient(client *http.Client, cfg types.HTTPConfig) *Session {
	if client.Jar == nil {
		if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
			client.Jar = jar
		}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	header := make(http.Header)
	header.Set("User-Agent", ua)
	header.Set("Accept", "application/pdf,*/*;q=0.8")
	header.Set("Accept-Language", "en-US,en;q=0.9")

	cookies := make(map[string]string, len(cfg.Cookies))
	for host, v := range cfg.Cookies {
		cookies[strings.ToLower(host)] = v
	}

	return &Session{
		client:      client,
		maxAttempts: cfg.MaxAttempts,
		header:      header,
		cookies:     cookies,
	}
}

// Do sends a request with the session defaults, the given extra headers,
// and the retry policy applied. Extra headers override the defaults.
func (s *Session) Do(ctx context.Context, method, rawURL string, extra http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range s.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range extra {
		req.Header[k] = append([]string(nil), vs...)
	}
	if c := s.cookieFor(req.URL.Hostname()); c != "" {
		req.Header.Add("Cookie", c)
	}
	return DoWithRetry(ctx, s.client, req, s.maxAttempts)
}

// cookieFor returns the configured Cookie header for host, matching the
// configured key as the host itself or a parent domain.
func (s *Session) cookieFor(host string) string {
	host = strings.ToLower(host)
	for key, v := range s.cookies {
		if host == key || strings.HasSuffix(host, "."+key) {
			return v
		}
	}
	return ""
}

// CloseIdle releases pooled connections at the end of a run.
func (s *Session) CloseIdle() {
	s.client.CloseIdleConnections()
}
