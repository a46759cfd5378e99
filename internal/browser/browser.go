// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser implements the fallback download strategy: a real
// browser renders the page, and the PDF is taken either from a download
// the page triggers or from the body of an inline-rendered PDF response.
//
// The strategy talks to the browser through the Launcher and Page
// interfaces; ChromeLauncher is the chromedp implementation.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/pdf-harvest/internal/fsutil"
	"github.com/pdiddy/pdf-harvest/internal/portal"
	"github.com/pdiddy/pdf-harvest/pkg/types"
)

// PDFLinkSelector matches anchors that point at a PDF.
const PDFLinkSelector = `a[href$='.pdf'], a[href*='.pdf']`

const (
	defaultNavigationTimeout = 90 * time.Second
	defaultPrimeTimeout      = 15 * time.Second
	defaultClickTimeout      = 3 * time.Second
	defaultPollInterval      = 200 * time.Millisecond
	defaultPollAttempts      = 30
)

// LaunchOptions configures one browser session.
type LaunchOptions struct {
	Headless  bool
	ExecPath  string
	UserAgent string
}

// Launcher starts an isolated browser session with downloads enabled.
// Every call returns a fresh session; nothing is shared between pages.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Page, error)
}

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and returns once DOMContentLoaded fired.
	Navigate(ctx context.Context, url string) error

	// ClickIfPresent clicks the first element matching selector.
	ClickIfPresent(ctx context.Context, selector string) error

	// Download returns the first download the page started, or nil.
	Download() Download

	// MainResponse describes the response of the last top-level
	// navigation, or nil when none was observed.
	MainResponse() *Response

	// ReadMainBody returns the raw body of MainResponse.
	ReadMainBody(ctx context.Context) ([]byte, error)

	// Location returns the URL currently shown.
	Location(ctx context.Context) (string, error)

	// Close tears down the tab, the browser and any temporary files.
	Close() error
}

// Download is a file download started by the page.
type Download interface {
	SuggestedFilename() string

	// SaveAs waits for the download to finish and writes it to path,
	// returning the number of bytes written.
	SaveAs(ctx context.Context, path string) (int64, error)
}

// Response is the main document response of a navigation.
type Response struct {
	URL         string
	Status      int
	ContentType string
}

// BrowserCaptureError means neither a download event nor an inline PDF
// response was observed.
type BrowserCaptureError struct {
	URL string
	Err error
}

func (e *BrowserCaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not capture a PDF from %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("could not capture a PDF from %s", e.URL)
}

func (e *BrowserCaptureError) Unwrap() error { return e.Err }

// Fallback is the browser download strategy.
type Fallback struct {
	launcher Launcher
	cfg      types.BrowserConfig
	log      *logrus.Logger
}

// NewFallback returns a Fallback driving browsers started by launcher.
// Zero durations in cfg are replaced by the defaults (90s navigation, 15s
// priming, 3s click, 30 polls of 200ms).
func NewFallback(launcher Launcher, cfg types.BrowserConfig, log *logrus.Logger) *Fallback {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.PrimeTimeout <= 0 {
		cfg.PrimeTimeout = defaultPrimeTimeout
	}
	if cfg.ClickTimeout <= 0 {
		cfg.ClickTimeout = defaultClickTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Fallback{launcher: launcher, cfg: cfg, log: log}
}

// Fetch opens rawURL in a new browser session and saves the PDF it yields
// into destDir. The session is closed on every return path.
func (f *Fallback) Fetch(ctx context.Context, rawURL, destDir string) (*types.DownloadResult, error) {
	log := f.log.WithField("url", rawURL)

	page, err := f.launcher.Launch(ctx, LaunchOptions{
		Headless:  f.cfg.Headless,
		ExecPath:  f.cfg.ExecPath,
		UserAgent: f.cfg.UserAgent,
	})
	if err != nil {
		return nil, &BrowserCaptureError{URL: rawURL, Err: fmt.Errorf("launching browser: %w", err)}
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.WithError(err).Debug("closing browser")
		}
	}()

	f.prime(ctx, page, rawURL, log)

	navCtx, cancel := context.WithTimeout(ctx, f.cfg.NavigationTimeout)
	defer cancel()

	// A navigation that turns into a download is aborted by the browser,
	// so a failure here is kept and reported only if nothing is captured.
	navErr := page.Navigate(navCtx, rawURL)
	if navErr != nil {
		log.WithError(navErr).Debug("navigation did not complete")
	}

	if page.Download() == nil {
		f.clickPDFLink(navCtx, page, log)
	}

	if dl := f.waitForDownload(navCtx, page); dl != nil {
		return f.saveDownload(navCtx, page, dl, rawURL, destDir, log)
	}

	if resp := page.MainResponse(); resp != nil && f.inlinePDF(navCtx, page, resp) {
		return f.saveBody(navCtx, page, resp, rawURL, destDir, log)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, &BrowserCaptureError{URL: rawURL, Err: navErr}
}

// prime visits the site origin so the portal can set cookies before the
// real navigation. Failures are ignored.
func (f *Fallback) prime(ctx context.Context, page Page, rawURL string, log *logrus.Entry) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.PrimeTimeout)
	defer cancel()

	origin := portal.Origin(u)
	if err := page.Navigate(ctx, origin); err != nil {
		log.WithError(err).WithField("origin", origin).Debug("priming visit failed")
	}
}

// clickPDFLink clicks the first PDF anchor, for portals that put the file
// behind a link instead of serving it at the URL. Failures are ignored.
func (f *Fallback) clickPDFLink(ctx context.Context, page Page, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.ClickTimeout)
	defer cancel()

	if err := page.ClickIfPresent(ctx, PDFLinkSelector); err != nil {
		log.WithError(err).Debug("no clickable PDF link")
	}
}

// waitForDownload polls for a latched download event.
func (f *Fallback) waitForDownload(ctx context.Context, page Page) Download {
	for i := 0; i < f.cfg.PollAttempts; i++ {
		if dl := page.Download(); dl != nil {
			return dl
		}
		select {
		case <-ctx.Done():
			return page.Download()
		case <-time.After(f.cfg.PollInterval):
		}
	}
	return page.Download()
}

func (f *Fallback) saveDownload(ctx context.Context, page Page, dl Download, rawURL, destDir string, log *logrus.Entry) (*types.DownloadResult, error) {
	name := fsutil.CleanName(dl.SuggestedFilename())
	if name == "" {
		name = fsutil.DefaultFileName
	}
	dest := filepath.Join(destDir, name)

	n, err := dl.SaveAs(ctx, dest)
	if err != nil {
		var fsErr *fsutil.FilesystemError
		if errors.As(err, &fsErr) {
			return nil, err
		}
		return nil, &BrowserCaptureError{URL: rawURL, Err: fmt.Errorf("saving download: %w", err)}
	}

	status := 0
	if resp := page.MainResponse(); resp != nil {
		status = resp.Status
	}
	log.WithFields(logrus.Fields{"file": name, "bytes": n}).Debug("captured browser download")
	return &types.DownloadResult{
		FileName:   name,
		FilePath:   dest,
		Method:     types.MethodBrowserDownload,
		HTTPStatus: status,
		ByteCount:  n,
	}, nil
}

// inlinePDF reports whether the main response is itself the PDF.
func (f *Fallback) inlinePDF(ctx context.Context, page Page, resp *Response) bool {
	if strings.Contains(strings.ToLower(resp.ContentType), "pdf") {
		return true
	}
	loc, err := page.Location(ctx)
	if err != nil {
		loc = resp.URL
	}
	u, err := url.Parse(loc)
	return err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

func (f *Fallback) saveBody(ctx context.Context, page Page, resp *Response, rawURL, destDir string, log *logrus.Entry) (*types.DownloadResult, error) {
	body, err := page.ReadMainBody(ctx)
	if err != nil {
		return nil, &BrowserCaptureError{URL: rawURL, Err: fmt.Errorf("reading response body: %w", err)}
	}

	loc, err := page.Location(ctx)
	if err != nil || loc == "" {
		loc = resp.URL
	}
	var name string
	if u, err := url.Parse(loc); err == nil {
		name = fsutil.NameFromURLPath(u)
	}
	if name == "" {
		name = fsutil.DefaultFileName
	}
	dest := filepath.Join(destDir, name)

	n, err := fsutil.WriteBytes(dest, body)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"file": name, "bytes": n}).Debug("captured inline PDF body")
	return &types.DownloadResult{
		FileName:   name,
		FilePath:   dest,
		Method:     types.MethodBrowserBody,
		HTTPStatus: resp.Status,
		ByteCount:  n,
	}, nil
}
