// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-harvest/internal/fsutil"
	"github.com/pdiddy/pdf-harvest/pkg/types"
)

type fakeDownload struct {
	name string
	data []byte
	err  error
}

func (d *fakeDownload) SuggestedFilename() string { return d.name }

func (d *fakeDownload) SaveAs(_ context.Context, path string) (int64, error) {
	if d.err != nil {
		return 0, d.err
	}
	return fsutil.WriteBytes(path, d.data)
}

type fakePage struct {
	navigated []string
	clicked   []string
	closed    bool

	// downloadOn latches download when Navigate is called with this URL.
	downloadOn string
	// downloadOnClick latches download when a PDF link is clicked.
	downloadOnClick bool
	download        *fakeDownload
	latched         bool

	navErr   map[string]error
	response *Response
	body     []byte
	location string
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	if p.download != nil && p.downloadOn == url {
		p.latched = true
	}
	return p.navErr[url]
}

func (p *fakePage) ClickIfPresent(_ context.Context, selector string) error {
	p.clicked = append(p.clicked, selector)
	if p.downloadOnClick && p.download != nil {
		p.latched = true
		return nil
	}
	return errors.New("no element")
}

func (p *fakePage) Download() Download {
	if p.latched {
		return p.download
	}
	return nil
}

func (p *fakePage) MainResponse() *Response { return p.response }

func (p *fakePage) ReadMainBody(context.Context) ([]byte, error) {
	if p.body == nil {
		return nil, errors.New("no body")
	}
	return p.body, nil
}

func (p *fakePage) Location(context.Context) (string, error) { return p.location, nil }

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeLauncher struct {
	page *fakePage
	err  error
	opts LaunchOptions
}

func (l *fakeLauncher) Launch(_ context.Context, opts LaunchOptions) (Page, error) {
	l.opts = opts
	if l.err != nil {
		return nil, l.err
	}
	return l.page, nil
}

func newTestFallback(l Launcher) *Fallback {
	return NewFallback(l, types.BrowserConfig{
		Headless:     true,
		PollInterval: time.Millisecond,
		PollAttempts: 3,
	}, nil)
}

func TestFallback_DownloadEvent(t *testing.T) {
	dir := t.TempDir()
	const target = "https://portal.example.com/doc/42"
	pg := &fakePage{
		downloadOn: target,
		download:   &fakeDownload{name: "paper-42.pdf", data: []byte("%PDF-1.7 download")},
		navErr:     map[string]error{target: errors.New("net::ERR_ABORTED")},
		response:   &Response{URL: target, Status: 200, ContentType: "application/pdf"},
	}
	l := &fakeLauncher{page: pg}

	res, err := newTestFallback(l).Fetch(context.Background(), target, dir)
	require.NoError(t, err)

	assert.Equal(t, "paper-42.pdf", res.FileName)
	assert.Equal(t, types.MethodBrowserDownload, res.Method)
	assert.Equal(t, 200, res.HTTPStatus)
	assert.Equal(t, int64(len("%PDF-1.7 download")), res.ByteCount)

	data, err := os.ReadFile(filepath.Join(dir, "paper-42.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 download", string(data))

	assert.Equal(t, []string{"https://portal.example.com/", target}, pg.navigated)
	assert.Empty(t, pg.clicked, "no click once a download is latched")
	assert.True(t, pg.closed)
	assert.True(t, l.opts.Headless)
}

func TestFallback_DownloadAfterClick(t *testing.T) {
	dir := t.TempDir()
	pg := &fakePage{
		downloadOnClick: true,
		download:        &fakeDownload{name: "", data: []byte("%PDF")},
	}

	res, err := newTestFallback(&fakeLauncher{page: pg}).Fetch(context.Background(), "https://portal.example.com/article", dir)
	require.NoError(t, err)

	assert.Equal(t, fsutil.DefaultFileName, res.FileName)
	assert.Equal(t, []string{PDFLinkSelector}, pg.clicked)
	assert.Equal(t, 0, res.HTTPStatus)
}

func TestFallback_InlineBody(t *testing.T) {
	dir := t.TempDir()
	body := []byte("%PDF-1.4 inline body bytes")
	const target = "https://portal.example.com/files/report.pdf?token=1"
	pg := &fakePage{
		response: &Response{URL: target, Status: 200, ContentType: "application/pdf"},
		body:     body,
		location: target,
	}

	res, err := newTestFallback(&fakeLauncher{page: pg}).Fetch(context.Background(), target, dir)
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", res.FileName)
	assert.Equal(t, types.MethodBrowserBody, res.Method)
	assert.Equal(t, 200, res.HTTPStatus)
	assert.Equal(t, int64(len(body)), res.ByteCount)

	info, err := os.Stat(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), info.Size())
	assert.True(t, pg.closed)
}

func TestFallback_InlineBodyByURLSuffix(t *testing.T) {
	dir := t.TempDir()
	pg := &fakePage{
		response: &Response{URL: "https://portal.example.com/x/a.pdf", Status: 200, ContentType: "text/html"},
		body:     []byte("%PDF"),
		location: "https://portal.example.com/x/a.pdf",
	}

	res, err := newTestFallback(&fakeLauncher{page: pg}).Fetch(context.Background(), "https://portal.example.com/x/a.pdf", dir)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", res.FileName)
}

func TestFallback_NothingCaptured(t *testing.T) {
	dir := t.TempDir()
	const target = "https://portal.example.com/article"
	pg := &fakePage{
		response: &Response{URL: target, Status: 200, ContentType: "text/html"},
		location: target,
	}

	_, err := newTestFallback(&fakeLauncher{page: pg}).Fetch(context.Background(), target, dir)
	require.Error(t, err)

	var capErr *BrowserCaptureError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, target, capErr.URL)
	assert.True(t, pg.closed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFallback_NavigationErrorReported(t *testing.T) {
	const target = "https://portal.example.com/article"
	navErr := errors.New("net::ERR_NAME_NOT_RESOLVED")
	pg := &fakePage{navErr: map[string]error{target: navErr}}

	_, err := newTestFallback(&fakeLauncher{page: pg}).Fetch(context.Background(), target, t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, navErr)
}

func TestFallback_PrimingFailureIgnored(t *testing.T) {
	dir := t.TempDir()
	const target = "https://portal.example.com/a.pdf"
	pg := &fakePage{
		navErr:   map[string]error{"https://portal.example.com/": errors.New("timeout")},
		response: &Response{URL: target, Status: 200, ContentType: "application/pdf"},
		body:     []byte("%PDF"),
		location: target,
	}

	res, err := newTestFallback(&fakeLauncher{page: pg}).Fetch(context.Background(), target, dir)
	require.NoError(t, err)
	assert.Equal(t, types.MethodBrowserBody, res.Method)
}

func TestFallback_LaunchFailure(t *testing.T) {
	_, err := newTestFallback(&fakeLauncher{err: errors.New("chrome not found")}).
		Fetch(context.Background(), "https://portal.example.com/a.pdf", t.TempDir())
	require.Error(t, err)

	var capErr *BrowserCaptureError
	require.ErrorAs(t, err, &capErr)
	assert.Contains(t, err.Error(), "chrome not found")
}

func TestFallback_SaveFailure(t *testing.T) {
	const target = "https://portal.example.com/doc"
	pg := &fakePage{
		downloadOn: target,
		download:   &fakeDownload{name: "x.pdf", err: errors.New("download canceled by the browser")},
	}

	_, err := newTestFallback(&fakeLauncher{page: pg}).Fetch(context.Background(), target, t.TempDir())
	var capErr *BrowserCaptureError
	require.ErrorAs(t, err, &capErr)
	assert.Contains(t, err.Error(), "canceled")
	assert.True(t, pg.closed)
}

func TestFallback_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pg := &fakePage{}
	_, err := newTestFallback(&fakeLauncher{page: pg}).Fetch(ctx, "https://portal.example.com/a", t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, pg.closed)
}

func TestNewFallback_Defaults(t *testing.T) {
	f := NewFallback(&fakeLauncher{}, types.BrowserConfig{}, nil)
	assert.Equal(t, defaultNavigationTimeout, f.cfg.NavigationTimeout)
	assert.Equal(t, defaultPrimeTimeout, f.cfg.PrimeTimeout)
	assert.Equal(t, defaultClickTimeout, f.cfg.ClickTimeout)
	assert.Equal(t, defaultPollInterval, f.cfg.PollInterval)
	assert.Equal(t, defaultPollAttempts, f.cfg.PollAttempts)
}

func TestBrowserCaptureError_Message(t *testing.T) {
	assert.Equal(t, "could not capture a PDF from https://x", (&BrowserCaptureError{URL: "https://x"}).Error())
	assert.Equal(t, "could not capture a PDF from https://x: boom",
		(&BrowserCaptureError{URL: "https://x", Err: errors.New("boom")}).Error())
}
