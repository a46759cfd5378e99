// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch implements the direct download strategy: a plain HTTP GET
// through the batch session, with portal URL rewrites, anti-bot headers,
// a landing-page retry for cookie-gated PDF routes, and PDF validation.
package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/pdf-harvest/internal/fsutil"
	"github.com/pdiddy/pdf-harvest/internal/httputil"
	"github.com/pdiddy/pdf-harvest/internal/portal"
	"github.com/pdiddy/pdf-harvest/pkg/types"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultHeadTimeout = 20 * time.Second
)

// directPDFSegments are final path segments of publisher routes that serve
// the PDF only after the article page has set session cookies.
var directPDFSegments = map[string]bool{
	"pdf":      true,
	"pdfft":    true,
	"epdf":     true,
	"download": true,
}

// Fetcher downloads PDFs with plain HTTP requests.
type Fetcher struct {
	session *httputil.Session
	cfg     types.FetchConfig
	log     *logrus.Logger
}

// NewFetcher returns a Fetcher sending requests through session. Zero
// timeouts are replaced by the defaults (60s GET, 20s HEAD). A nil logger
// discards log output.
func NewFetcher(session *httputil.Session, cfg types.FetchConfig, log *logrus.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HeadTimeout <= 0 {
		cfg.HeadTimeout = defaultHeadTimeout
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Fetcher{session: session, cfg: cfg, log: log}
}

// Fetch downloads rawURL into destDir. On success the file is complete on
// disk and the result carries its name, size and the response status. On
// failure no file is left behind and the error is one of
// *TransientHTTPError, *AntiBotBlockedError, *StatusError, *NotPDFError or
// *fsutil.FilesystemError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destDir string) (*types.DownloadResult, error) {
	target := portal.Normalize(rawURL)
	headers := portal.HeadersFor(target)
	log := f.log.WithField("url", target)
	if target != rawURL {
		log.WithField("original", rawURL).Debug("rewrote portal URL")
	}

	if f.cfg.Preflight {
		f.preflight(ctx, target, headers, log)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	resp, err := f.get(reqCtx, target, headers, log)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL
	contentType := resp.Header.Get("Content-Type")
	if !looksLikePDF(contentType, finalURL) {
		return nil, &NotPDFError{URL: finalURL.String(), ContentType: contentType}
	}

	name := FileName(resp.Header.Get("Content-Disposition"), finalURL)
	dest := filepath.Join(destDir, name)
	n, err := fsutil.WriteStream(dest, resp.Body)
	if err != nil {
		var fsErr *fsutil.FilesystemError
		if errors.As(err, &fsErr) {
			return nil, err
		}
		return nil, &TransientHTTPError{URL: target, Err: err}
	}

	log.WithFields(logrus.Fields{
		"file":   name,
		"bytes":  n,
		"status": resp.StatusCode,
	}).Debug("direct download complete")

	// The file is complete; a cancelled throttle still reports it.
	sleep(ctx, f.cfg.ThrottleDelay)

	return &types.DownloadResult{
		FileName:   name,
		FilePath:   dest,
		Method:     types.MethodDirect,
		HTTPStatus: resp.StatusCode,
		ByteCount:  n,
	}, nil
}

// preflight sends a best-effort HEAD. Some portals set cookies or warm a
// CDN edge on HEAD; any failure is ignored.
func (f *Fetcher) preflight(ctx context.Context, target string, headers http.Header, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.HeadTimeout)
	defer cancel()

	resp, err := f.session.Do(ctx, http.MethodHead, target, headers)
	if err != nil {
		log.WithError(err).Debug("preflight HEAD failed")
		return
	}
	resp.Body.Close()
	log.WithField("status", resp.StatusCode).Debug("preflight HEAD")
}

// get performs the GET and resolves the status into either a 2xx response
// whose body the caller must close, or a typed error.
func (f *Fetcher) get(ctx context.Context, target string, headers http.Header, log *logrus.Entry) (*http.Response, error) {
	resp, err := f.session.Do(ctx, http.MethodGet, target, headers)
	if err != nil {
		return nil, &TransientHTTPError{URL: target, Err: err}
	}

	if denied(resp.StatusCode) {
		if landing, ok := landingPage(target); ok {
			discard(resp)
			log.WithFields(logrus.Fields{"status": resp.StatusCode, "landing": landing}).
				Debug("access denied, visiting landing page before retry")

			if lr, err := f.session.Do(ctx, http.MethodGet, landing, headers); err == nil {
				discard(lr)
			} else {
				log.WithError(err).Debug("landing page visit failed")
			}

			resp, err = f.session.Do(ctx, http.MethodGet, target, headers)
			if err != nil {
				return nil, &TransientHTTPError{URL: target, Err: err}
			}
			if denied(resp.StatusCode) {
				discard(resp)
				return nil, &AntiBotBlockedError{URL: target, StatusCode: resp.StatusCode}
			}
		}
	}

	switch code := resp.StatusCode; {
	case code == http.StatusTeapot:
		discard(resp)
		return nil, &AntiBotBlockedError{URL: target, StatusCode: code}
	case code >= 200 && code < 300:
		return resp, nil
	case httputil.RetryableStatus(code):
		discard(resp)
		return nil, &TransientHTTPError{URL: target, StatusCode: code}
	default:
		discard(resp)
		return nil, &StatusError{URL: target, StatusCode: code}
	}
}

func denied(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// landingPage strips a trailing direct-PDF segment (and the query) from
// rawURL, returning the article page that issues the session cookies.
func landingPage(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	p := strings.TrimRight(u.Path, "/")
	i := strings.LastIndex(p, "/")
	if i < 0 || !directPDFSegments[strings.ToLower(p[i+1:])] {
		return "", false
	}

	landing := *u
	landing.Path = p[:i]
	if landing.Path == "" {
		landing.Path = "/"
	}
	landing.RawPath = ""
	landing.RawQuery = ""
	landing.Fragment = ""
	return landing.String(), true
}

// looksLikePDF accepts a response whose Content-Type mentions pdf or whose
// final URL path ends in ".pdf".
func looksLikePDF(contentType string, finalURL *url.URL) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	return finalURL != nil && strings.HasSuffix(strings.ToLower(finalURL.Path), ".pdf")
}

func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
