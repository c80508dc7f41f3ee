// Package fetch provides HTTP fetching for aggregator pages, file-host pages,
// archive downloads and cover images.
// Requests carry a browser-like fingerprint because every upstream applies bot detection.
package fetch

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
)

// DefaultTimeout is the default timeout for page and image requests.
const DefaultTimeout = 30 * time.Second

// DefaultDownloadTimeout bounds a single archive download attempt.
const DefaultDownloadTimeout = 30 * time.Minute

// Result holds the raw and processed content from a page fetch.
type Result struct {
	URL         string
	HTML        string
	ContentType string
	StatusCode  int
	FromBrowser bool
}

// Error represents an error during URL fetching.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout         time.Duration
	DownloadTimeout time.Duration
	// Fingerprint names the profile used for pages and archive downloads.
	Fingerprint string
	// MaxAttempts bounds archive download attempts.
	MaxAttempts int
	// RetryDelay is the pause between archive download attempts.
	RetryDelay time.Duration
	// ImageRetryDelay is the pause between image fingerprints.
	ImageRetryDelay time.Duration
	// UseBrowser enables headless browser rendering for bot-walled pages.
	UseBrowser     bool
	BrowserTimeout time.Duration
	Headers        map[string]string
	// RootCAs overrides the system roots for TLS verification.
	RootCAs *x509.CertPool
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:         DefaultTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		Fingerprint:     DefaultFingerprint,
		MaxAttempts:     3,
		RetryDelay:      2 * time.Second,
		ImageRetryDelay: time.Second,
		BrowserTimeout:  30 * time.Second,
	}
}

// browseFunc renders a page and returns its HTML.
type browseFunc func(ctx context.Context, url string, timeout time.Duration, logger *slog.Logger) (string, error)

// Fetcher issues fingerprinted requests. A Fetcher keeps a cookie jar, so
// clearance cookies picked up on one page are replayed on the next.
type Fetcher struct {
	client   *http.Client
	download *http.Client
	// transports holds one connection pool per fingerprint.
	transports map[string]*http.Transport
	jar        http.CookieJar
	opts       Options
	primary    Fingerprint
	logger     *slog.Logger
	browse     browseFunc
}

// New creates a Fetcher. A nil opts uses DefaultOptions.
func New(opts *Options, logger *slog.Logger) *Fetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	defaults := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = defaults.Timeout
	}
	if o.DownloadTimeout <= 0 {
		o.DownloadTimeout = defaults.DownloadTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaults.MaxAttempts
	}
	if o.BrowserTimeout <= 0 {
		o.BrowserTimeout = defaults.BrowserTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	primary, ok := LookupFingerprint(o.Fingerprint)
	if !ok {
		primary, _ = LookupFingerprint(DefaultFingerprint)
	}

	// cookiejar.New never returns a non-nil error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	transports := make(map[string]*http.Transport, len(fingerprints))
	for _, fp := range fingerprints {
		transports[fp.Name] = newTransport(fp.Hello, o.RootCAs)
	}

	return &Fetcher{
		client:     &http.Client{Timeout: o.Timeout, Jar: jar, Transport: transports[primary.Name]},
		download:   &http.Client{Timeout: o.DownloadTimeout, Jar: jar, Transport: transports[primary.Name]},
		transports: transports,
		jar:        jar,
		opts:       o,
		primary:    primary,
		logger:     logger,
		browse:     WithBrowser,
	}
}

// clientFor returns a page-timeout client that handshakes as fp.
func (f *Fetcher) clientFor(fp Fingerprint) *http.Client {
	if fp.Name == f.primary.Name {
		return f.client
	}
	return &http.Client{Timeout: f.opts.Timeout, Jar: f.jar, Transport: f.transports[fp.Name]}
}

// Page retrieves an HTML page with the primary fingerprint.
// When browser rendering is enabled, pages that look like an anti-bot
// interstitial are re-fetched through a headless browser.
func (f *Fetcher) Page(ctx context.Context, urlStr string) (*Result, error) {
	if err := validateURL(urlStr); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	f.primary.Apply(req)
	for key, value := range f.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to read response body", Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		HTML:        string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if f.opts.UseBrowser && looksBlocked(result) {
		if rendered, ok := f.renderWithBrowser(ctx, urlStr); ok {
			return rendered, nil
		}
	}

	if resp.StatusCode != http.StatusOK {
		return result, &Error{
			URL:     urlStr,
			Message: fmt.Sprintf("HTTP status %d", resp.StatusCode),
		}
	}

	return result, nil
}

func (f *Fetcher) renderWithBrowser(ctx context.Context, urlStr string) (*Result, bool) {
	f.logger.Info("page looks bot-walled, rendering with browser", "url", urlStr)
	html, err := f.browse(ctx, urlStr, f.opts.BrowserTimeout, f.logger)
	if err != nil {
		f.logger.Warn("browser rendering failed", "url", urlStr, "error", err)
		return nil, false
	}
	return &Result{
		URL:         urlStr,
		HTML:        html,
		ContentType: "text/html",
		StatusCode:  http.StatusOK,
		FromBrowser: true,
	}, true
}

// looksBlocked reports whether a response is probably a bot-detection page.
func looksBlocked(result *Result) bool {
	switch result.StatusCode {
	case http.StatusForbidden, http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return true
	case http.StatusOK:
		text, err := ExtractMainText(result.HTML, DefaultTextSelectors())
		return err == nil && ShouldUseBrowser(text)
	default:
		return false
	}
}

func validateURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}
	return nil
}

// IsMarkup reports whether a content type declares text or markup
// rather than a binary payload.
func IsMarkup(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "html")
}

// ExtractMainText parses HTML and returns the main body text.
// It removes noise elements using noiseSelectors, then finds content using contentSelectors.
// If no content selectors match, it falls back to the body element.
func ExtractMainText(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return MainText(doc, contentSelectors, noiseSelectors...), nil
}

// MainText is ExtractMainText over an already parsed document.
// The document is not modified.
func MainText(doc *goquery.Document, contentSelectors []string, noiseSelectors ...string) string {
	clone := goquery.CloneDocument(doc)

	clone.Find("nav, footer, header, script, style, noscript, .ad, .advertisement, .ads, .sidebar, .cookie-banner, .popup").Remove()

	if len(noiseSelectors) > 0 {
		noiseSelector := strings.Join(noiseSelectors, ", ")
		if noiseSelector != "" {
			clone.Find(noiseSelector).Remove()
		}
	}

	var mainContent *goquery.Selection
	for _, selector := range contentSelectors {
		if selection := clone.Find(selector); selection.Length() > 0 {
			mainContent = selection.First()
			break
		}
	}
	if mainContent == nil {
		mainContent = clone.Find("body")
	}

	return cleanWhitespace(mainContent.Text())
}

// DefaultTextSelectors returns standard selectors for general web content.
func DefaultTextSelectors() []string {
	return []string{
		"main",
		"article",
		".content",
		"#content",
		".main-content",
		"#main-content",
	}
}

// PostContentSelectors returns selectors for the body of an aggregator post.
func PostContentSelectors() []string {
	return []string{
		".entry-content",
		".full-story",
		".post-content",
		"article",
		"main",
		"#content",
	}
}

// cleanWhitespace normalizes whitespace in text.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
