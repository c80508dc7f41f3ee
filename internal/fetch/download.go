package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrDownloadFailed is matched by every error returned from Download.
var ErrDownloadFailed = errors.New("download failed")

// ProgressFunc receives cumulative bytes written and the declared total.
// It is only called when the server declares a positive Content-Length.
type ProgressFunc func(written, total int64)

// DownloadError reports a download that failed on every attempt.
type DownloadError struct {
	URL      string
	Attempts []error
}

func (e *DownloadError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for i, err := range e.Attempts {
		parts = append(parts, fmt.Sprintf("attempt %d: %v", i+1, err))
	}
	return fmt.Sprintf("download of %s failed after %d attempts: %s", e.URL, len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes the sentinel and every attempt error to errors.Is and errors.As.
func (e *DownloadError) Unwrap() []error {
	return append([]error{ErrDownloadFailed}, e.Attempts...)
}

// Download streams urlStr into destPath. Every attempt re-creates destPath
// from scratch, and a failed attempt leaves no partial file behind.
// A response declaring a text or HTML body is a failure: file hosts answer
// expired or gated links with a normal 200 page.
func (f *Fetcher) Download(ctx context.Context, urlStr, destPath string, progress ProgressFunc) error {
	logger := f.logger.With("url", urlStr)
	var attempts []error

	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		err := f.downloadOnce(ctx, urlStr, destPath, progress)
		if err == nil {
			logger.Info("download complete", "path", destPath, "attempt", attempt)
			return nil
		}
		_ = os.Remove(destPath)
		attempts = append(attempts, err)
		logger.Warn("download attempt failed", "attempt", attempt, "max_attempts", f.opts.MaxAttempts, "error", err)

		if ctx.Err() != nil {
			break
		}
		if attempt < f.opts.MaxAttempts && f.opts.RetryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(f.opts.RetryDelay):
			}
		}
	}

	return &DownloadError{URL: urlStr, Attempts: attempts}
}

func (f *Fetcher) downloadOnce(ctx context.Context, urlStr, destPath string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	f.primary.Apply(req)
	req.Header.Set("Accept", "*/*")
	for key, value := range f.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.download.Do(req)
	if err != nil {
		return &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &Error{URL: urlStr, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	if ct := resp.Header.Get("Content-Type"); IsMarkup(ct) {
		return &Error{URL: urlStr, Message: fmt.Sprintf("server returned %s instead of a file", ct)}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	var w io.Writer = out
	if progress != nil && resp.ContentLength > 0 {
		w = &progressWriter{w: out, total: resp.ContentLength, fn: progress}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		_ = out.Close()
		return &Error{URL: urlStr, Message: "failed to read response body", Cause: err}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", destPath, err)
	}
	return nil
}

type progressWriter struct {
	w       io.Writer
	written int64
	total   int64
	fn      ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	p.fn(p.written, p.total)
	return n, err
}
