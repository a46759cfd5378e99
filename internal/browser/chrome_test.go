// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTarget = "TARGET-1"

func newChromePage(t *testing.T) *chromePage {
	t.Helper()
	return &chromePage{
		tabCtx:      context.Background(),
		tabCancel:   func() {},
		allocCancel: func() {},
		dir:         t.TempDir(),
		targetID:    testTarget,
	}
}

func documentResponse(frame, reqID, url string, headers network.Headers, mime string) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		RequestID: network.RequestID(reqID),
		Type:      network.ResourceTypeDocument,
		FrameID:   cdp.FrameID(frame),
		Response: &network.Response{
			URL:      url,
			Status:   200,
			Headers:  headers,
			MimeType: mime,
		},
	}
}

func waitClosed(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestChromePage_MainFrameDocumentRecorded(t *testing.T) {
	p := newChromePage(t)
	p.onEvent(documentResponse(testTarget, "req-1", "https://a.example/paper",
		network.Headers{"Content-Type": "text/html; charset=utf-8"}, "text/html"))

	resp := p.MainResponse()
	require.NotNil(t, resp)
	assert.Equal(t, "https://a.example/paper", resp.URL)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	assert.Equal(t, network.RequestID("req-1"), p.mainReqID)
}

func TestChromePage_IgnoresSubFrameAndSubresources(t *testing.T) {
	p := newChromePage(t)

	p.onEvent(documentResponse("IFRAME-7", "req-2", "https://ads.example/frame", nil, "text/html"))
	assert.Nil(t, p.MainResponse())

	script := documentResponse(testTarget, "req-3", "https://a.example/app.js", nil, "application/javascript")
	script.Type = network.ResourceTypeScript
	p.onEvent(script)
	assert.Nil(t, p.MainResponse())

	p.onEvent(&network.EventResponseReceived{Type: network.ResourceTypeDocument, FrameID: testTarget})
	assert.Nil(t, p.MainResponse())
}

func TestChromePage_PDFResponseSettles(t *testing.T) {
	p := newChromePage(t)
	ready := make(chan struct{})
	p.ready = ready

	// No Content-Type header: the sniffed MIME type decides.
	p.onEvent(documentResponse(testTarget, "req-1", "https://a.example/view", nil, "application/pdf"))

	waitClosed(t, ready)
	assert.Equal(t, "application/pdf", p.MainResponse().ContentType)
}

func TestChromePage_HTMLResponseDoesNotSettle(t *testing.T) {
	p := newChromePage(t)
	ready := make(chan struct{})
	p.ready = ready

	p.onEvent(documentResponse(testTarget, "req-1", "https://a.example/", nil, "text/html"))

	select {
	case <-ready:
		t.Fatal("settled on an HTML response")
	default:
	}

	p.onEvent(&page.EventDomContentEventFired{})
	waitClosed(t, ready)

	// A second settle with nothing waiting is a no-op.
	p.onEvent(&page.EventDomContentEventFired{})
}

func TestChromePage_FirstDownloadLatched(t *testing.T) {
	p := newChromePage(t)
	ready := make(chan struct{})
	p.ready = ready

	p.onEvent(&browser.EventDownloadWillBegin{GUID: "g1", SuggestedFilename: "first.pdf"})
	p.onEvent(&browser.EventDownloadWillBegin{GUID: "g2", SuggestedFilename: "second.pdf"})

	waitClosed(t, ready)
	dl := p.Download()
	require.NotNil(t, dl)
	assert.Equal(t, "first.pdf", dl.SuggestedFilename())
	assert.Equal(t, "g1", p.download.guid)
}

func TestChromePage_NoDownload(t *testing.T) {
	p := newChromePage(t)
	assert.Nil(t, p.Download())
}

func TestChromeDownload_SaveAfterCompletion(t *testing.T) {
	p := newChromePage(t)
	p.onEvent(&browser.EventDownloadWillBegin{GUID: "g1", SuggestedFilename: "paper.pdf"})
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "g1"), []byte("%PDF-1.7 body"), 0o644))

	// Progress for another download is ignored.
	p.onEvent(&browser.EventDownloadProgress{GUID: "other", State: browser.DownloadProgressStateCanceled})
	p.onEvent(&browser.EventDownloadProgress{GUID: "g1", State: browser.DownloadProgressStateInProgress})
	p.onEvent(&browser.EventDownloadProgress{GUID: "g1", State: browser.DownloadProgressStateCompleted})

	dest := filepath.Join(t.TempDir(), "paper.pdf")
	n, err := p.Download().SaveAs(context.Background(), dest)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(data))
}

func TestChromeDownload_Canceled(t *testing.T) {
	p := newChromePage(t)
	p.onEvent(&browser.EventDownloadWillBegin{GUID: "g1", SuggestedFilename: "paper.pdf"})
	p.onEvent(&browser.EventDownloadProgress{GUID: "g1", State: browser.DownloadProgressStateCanceled})
	// A later completion does not override the first final state.
	p.onEvent(&browser.EventDownloadProgress{GUID: "g1", State: browser.DownloadProgressStateCompleted})

	dest := filepath.Join(t.TempDir(), "paper.pdf")
	_, err := p.Download().SaveAs(context.Background(), dest)
	assert.EqualError(t, err, "download canceled by the browser")
	assert.NoFileExists(t, dest)
}

func TestChromeDownload_SaveWaitsForContext(t *testing.T) {
	p := newChromePage(t)
	p.onEvent(&browser.EventDownloadWillBegin{GUID: "g1", SuggestedFilename: "paper.pdf"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Download().SaveAs(ctx, filepath.Join(t.TempDir(), "paper.pdf"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChromePage_ReadMainBodyWithoutResponse(t *testing.T) {
	p := newChromePage(t)
	_, err := p.ReadMainBody(context.Background())
	assert.EqualError(t, err, "no main document response")
}

func TestChromePage_CloseRemovesDownloadDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dl")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g1"), []byte("x"), 0o644))

	var tabClosed, allocClosed bool
	p := &chromePage{
		tabCancel:   func() { tabClosed = true },
		allocCancel: func() { allocClosed = true },
		dir:         dir,
	}
	require.NoError(t, p.Close())

	assert.True(t, tabClosed)
	assert.True(t, allocClosed)
	assert.NoDirExists(t, dir)
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		resp *network.Response
		want string
	}{
		{"header", &network.Response{Headers: network.Headers{"Content-Type": "application/pdf"}, MimeType: "text/html"}, "application/pdf"},
		{"lowercase header", &network.Response{Headers: network.Headers{"content-type": "application/pdf"}}, "application/pdf"},
		{"mime fallback", &network.Response{MimeType: "application/pdf"}, "application/pdf"},
		{"nothing", &network.Response{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contentType(tt.resp))
		})
	}
}
