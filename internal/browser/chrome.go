// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/pdiddy/pdf-harvest/internal/fsutil"
)

// ChromeLauncher starts headless Chrome through the DevTools protocol.
// Each Launch runs a separate browser process with its own profile and
// download directory.
type ChromeLauncher struct{}

// Launch starts Chrome, opens a tab, and enables network, page and
// download events on it.
func (ChromeLauncher) Launch(ctx context.Context, opts LaunchOptions) (Page, error) {
	dir, err := os.MkdirTemp("", "pdf-harvest-dl-*")
	if err != nil {
		return nil, &fsutil.FilesystemError{Op: "create download dir", Path: os.TempDir(), Err: err}
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	p := &chromePage{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		dir:         dir,
	}

	// The first Run starts the browser and attaches to the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}
	p.targetID = string(chromedp.FromContext(tabCtx).Target.TargetID)
	chromedp.ListenTarget(tabCtx, p.onEvent)

	err = chromedp.Run(tabCtx,
		network.Enable(),
		page.Enable(),
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("enabling browser events: %w", err)
	}
	return p, nil
}

type chromePage struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	dir         string
	targetID    string

	mu        sync.Mutex
	ready     chan struct{}
	mainReqID network.RequestID
	main      *Response
	download  *chromeDownload
}

// onEvent runs on the chromedp event loop and must not block.
func (p *chromePage) onEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *page.EventDomContentEventFired:
		p.settle()

	case *network.EventResponseReceived:
		if ev.Type != network.ResourceTypeDocument || ev.Response == nil {
			return
		}
		if string(ev.FrameID) != p.targetID {
			return
		}
		resp := &Response{
			URL:         ev.Response.URL,
			Status:      int(ev.Response.Status),
			ContentType: contentType(ev.Response),
		}
		p.mu.Lock()
		p.mainReqID = ev.RequestID
		p.main = resp
		p.mu.Unlock()
		if strings.Contains(strings.ToLower(resp.ContentType), "pdf") {
			p.settle()
		}

	case *browser.EventDownloadWillBegin:
		p.mu.Lock()
		if p.download == nil {
			p.download = &chromeDownload{
				guid:      ev.GUID,
				suggested: ev.SuggestedFilename,
				dir:       p.dir,
				done:      make(chan struct{}),
			}
		}
		p.mu.Unlock()
		p.settle()

	case *browser.EventDownloadProgress:
		p.mu.Lock()
		dl := p.download
		p.mu.Unlock()
		if dl == nil || dl.guid != ev.GUID {
			return
		}
		switch ev.State {
		case browser.DownloadProgressStateCompleted:
			dl.finish(nil)
		case browser.DownloadProgressStateCanceled:
			dl.finish(errors.New("download canceled by the browser"))
		}
	}
}

// settle wakes a Navigate waiting for the page to be usable.
func (p *chromePage) settle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready != nil {
		close(p.ready)
		p.ready = nil
	}
}

// bind returns a context on the tab that also ends when ctx ends.
func (p *chromePage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	c, cancel := context.WithCancel(p.tabCtx)
	if d, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		c, cancelDeadline = context.WithDeadline(c, d)
		parent := cancel
		cancel = func() {
			cancelDeadline()
			parent()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	ready := make(chan struct{})
	p.mu.Lock()
	p.ready = ready
	p.main = nil
	p.mainReqID = ""
	p.mu.Unlock()

	c, cancel := p.bind(ctx)
	defer cancel()

	err := chromedp.Run(c, chromedp.ActionFunc(func(ctx context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("navigating to %s: %s", url, res.ErrorText)
		}
		return nil
	}))
	if err != nil {
		return err
	}

	select {
	case <-ready:
		return nil
	case <-c.Done():
		return c.Err()
	}
}

func (p *chromePage) ClickIfPresent(ctx context.Context, selector string) error {
	c, cancel := p.bind(ctx)
	defer cancel()
	return chromedp.Run(c, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) Download() Download {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.download == nil {
		return nil
	}
	return p.download
}

func (p *chromePage) MainResponse() *Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.main == nil {
		return nil
	}
	r := *p.main
	return &r
}

func (p *chromePage) ReadMainBody(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	reqID := p.mainReqID
	p.mu.Unlock()
	if reqID == "" {
		return nil, errors.New("no main document response")
	}

	c, cancel := p.bind(ctx)
	defer cancel()

	var body []byte
	err := chromedp.Run(c, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(reqID).Do(ctx)
		return err
	}))
	return body, err
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	c, cancel := p.bind(ctx)
	defer cancel()

	var loc string
	if err := chromedp.Run(c, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (p *chromePage) Close() error {
	p.tabCancel()
	p.allocCancel()
	return os.RemoveAll(p.dir)
}

// contentType returns the response Content-Type header, or the MIME type
// Chrome sniffed when the header is missing.
func contentType(r *network.Response) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, "content-type") {
			return fmt.Sprint(v)
		}
	}
	return r.MimeType
}

// chromeDownload is a download written by Chrome to dir/guid.
type chromeDownload struct {
	guid      string
	suggested string
	dir       string

	once sync.Once
	done chan struct{}
	err  error
}

func (d *chromeDownload) finish(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}

func (d *chromeDownload) SuggestedFilename() string { return d.suggested }

func (d *chromeDownload) SaveAs(ctx context.Context, path string) (int64, error) {
	select {
	case <-d.done:
	case <-ctx.Done():
		return 0, fmt.Errorf("waiting for download: %w", ctx.Err())
	}
	if d.err != nil {
		return 0, d.err
	}

	f, err := os.Open(filepath.Join(d.dir, d.guid))
	if err != nil {
		return 0, fmt.Errorf("opening downloaded file: %w", err)
	}
	defer f.Close()
	return fsutil.WriteStream(path, f)
}
