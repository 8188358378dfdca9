// ABOUTME: HTTP fetcher with conditional requests, retry with backoff, and typed network errors.
// ABOUTME: Returns 304 Not Modified status when content hasn't changed, with SSRF and DoS protection.

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const MaxResponseSize = 10 * 1024 * 1024 // 10MB

const userAgent = "castsync/1.0 (podcast client)"

// Retry policy for transient failures.
const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// NetworkError is a transport or HTTP status failure. Transport failures
// wrap the underlying error; status failures carry the HTTP status code.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// retryable reports whether another attempt could plausibly succeed.
// Client errors (4xx) are permanent; transport errors and 5xx are not.
func (e *NetworkError) retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// Result contains the response from an HTTP fetch operation.
type Result struct {
	Body         []byte
	ETag         string
	LastModified string
	NotModified  bool
}

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// isPrivateIP checks if an IP address is in a private range (excluding loopback for tests).
func isPrivateIP(ip net.IP) bool {
	// Allow loopback addresses (localhost) for tests
	if ip.IsLoopback() {
		return false
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// Fetch retrieves a URL with optional conditional request headers.
// If etag is provided, sets If-None-Match header.
// If lastModified is provided, sets If-Modified-Since header.
// Returns NotModified=true for 304 responses.
// Non-2xx statuses and transport failures return a *NetworkError.
// Includes SSRF protection by blocking private IP ranges and DoS protection via response size limit.
func Fetch(ctx context.Context, urlStr string, etag, lastModified *string) (*Result, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	// SSRF protection: block private IP ranges
	if ips, err := net.LookupIP(parsedURL.Hostname()); err == nil {
		for _, ip := range ips {
			if isPrivateIP(ip) {
				return nil, fmt.Errorf("access to private IP ranges is not allowed")
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	if etag != nil && *etag != "" {
		req.Header.Set("If-None-Match", *etag)
	}

	if lastModified != nil && *lastModified != "" {
		req.Header.Set("If-Modified-Since", *lastModified)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: urlStr, Err: err}
	}
	defer resp.Body.Close()

	// Handle 304 Not Modified
	if resp.StatusCode == http.StatusNotModified {
		return &Result{NotModified: true}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: urlStr, StatusCode: resp.StatusCode}
	}

	// Read response body with DoS protection (10MB limit)
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, &NetworkError{URL: urlStr, Err: fmt.Errorf("read response body: %w", err)}
	}

	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response too large (exceeds %d bytes)", MaxResponseSize)
	}

	return &Result{
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		NotModified:  false,
	}, nil
}

// FetchWithRetry wraps Fetch with exponential backoff on transient network
// failures. Permanent failures (4xx, oversized bodies, bad URLs) return
// immediately; cancellation is honored between attempts.
func FetchWithRetry(ctx context.Context, urlStr string, etag, lastModified *string) (*Result, error) {
	var lastErr error
	delay := retryBackoff

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		result, err := Fetch(ctx, urlStr, etag, lastModified)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var netErr *NetworkError
		if !errors.As(err, &netErr) || !netErr.retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}
