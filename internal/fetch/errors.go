// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import "fmt"

// TransientHTTPError is a retryable status or connection failure that
// outlived the transport retry policy.
type TransientHTTPError struct {
	URL        string
	StatusCode int // 0 for connection-level failures
	Err        error
}

func (e *TransientHTTPError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d from %s (retries exhausted)", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransientHTTPError) Unwrap() error { return e.Err }

// AntiBotBlockedError means the server is actively refusing automated
// access: HTTP 418, or 401/403 that survived the landing-page retry.
// It is never retried by the direct strategy.
type AntiBotBlockedError struct {
	URL        string
	StatusCode int
}

func (e *AntiBotBlockedError) Error() string {
	return fmt.Sprintf("blocked by anti-bot protection (HTTP %d) at %s", e.StatusCode, e.URL)
}

// StatusError is any other non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// NotPDFError means the request succeeded but neither the Content-Type
// nor the final URL indicates a PDF.
type NotPDFError struct {
	URL         string
	ContentType string
}

func (e *NotPDFError) Error() string {
	ct := e.ContentType
	if ct == "" {
		ct = "none"
	}
	return fmt.Sprintf("response from %s is not a PDF (Content-Type: %s)", e.URL, ct)
}
