// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP session shared by a batch run and the
// transport retry policy applied to every request it sends.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RetryBaseDelay is the backoff factor: the n-th retry waits
// RetryBaseDelay * 2^(n-1). Tests override this to avoid real sleeps.
var RetryBaseDelay = 600 * time.Millisecond

// DefaultMaxAttempts is the total number of attempts, first try included.
const DefaultMaxAttempts = 5

// RetryableStatus reports whether code is a transient server condition
// worth another attempt.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// idempotent reports whether a request with this method may be replayed.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// DoWithRetry executes req and retries connection errors and retryable
// statuses (429, 500, 502, 503, 504) with exponential backoff. Only GET,
// HEAD and OPTIONS are retried; other methods get exactly one attempt.
//
// When maxAttempts is 0 the default (5) is used. Before each retry the
// response body is drained and closed. If the context is cancelled during
// a backoff wait the function returns ctx.Err(). After exhausting attempts
// the last response is returned so the caller can inspect its status, or
// the last transport error when no response was received.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if !idempotent(req.Method) {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err == nil && !RetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		if attempt >= maxAttempts || ctx.Err() != nil {
			if err != nil {
				return nil, fmt.Errorf("%s %s failed after %d attempt(s): %w", req.Method, req.URL.Redacted(), attempt, err)
			}
			return resp, nil
		}

		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(Backoff(attempt)):
		}
	}
}

// Backoff returns the wait before retry number n (1-based).
func Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return RetryBaseDelay * time.Duration(1<<uint(n-1))
}
