package hosts

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/repackr/internal/fetch"
	"github.com/jonathan/repackr/internal/types"
)

// PageFetcher retrieves an HTML page. *fetch.Fetcher satisfies it.
type PageFetcher interface {
	Page(ctx context.Context, url string) (*fetch.Result, error)
}

// Strategy knows one file host: which URLs belong to it and how to turn a
// file page into a URL that serves the archive bytes.
type Strategy interface {
	Host() types.Host
	// Matches reports whether rawURL is a file page on this host.
	Matches(rawURL string) bool
	// FindAll returns file-page URLs of this host found in raw text, in order.
	FindAll(text string) []string
	ResolveDirectLink(ctx context.Context, pageURL string) (string, error)
}

// AnchorConfig describes a host whose file page carries the direct link in an anchor.
type AnchorConfig struct {
	Host types.Host
	// Pattern matches file-page URLs of the host.
	Pattern string
	// Selector picks candidate anchors; defaults to "a[href]".
	Selector string
	// HrefContains filters candidate anchors by substring; empty accepts any.
	HrefContains string
}

// anchorStrategy fetches the file page and takes the first matching anchor.
type anchorStrategy struct {
	cfg     AnchorConfig
	pattern *regexp.Regexp
	pages   PageFetcher
}

// NewAnchorStrategy builds a Strategy from cfg. It panics on an invalid
// pattern, which is a programming error.
func NewAnchorStrategy(cfg AnchorConfig, pages PageFetcher) Strategy {
	if cfg.Selector == "" {
		cfg.Selector = "a[href]"
	}
	return &anchorStrategy{
		cfg:     cfg,
		pattern: regexp.MustCompile(cfg.Pattern),
		pages:   pages,
	}
}

func (s *anchorStrategy) Host() types.Host { return s.cfg.Host }

func (s *anchorStrategy) Matches(rawURL string) bool {
	return matchesPrefix(s.pattern, rawURL)
}

func (s *anchorStrategy) FindAll(text string) []string {
	return s.pattern.FindAllString(text, -1)
}

func (s *anchorStrategy) ResolveDirectLink(ctx context.Context, pageURL string) (string, error) {
	result, err := s.pages.Page(ctx, pageURL)
	if err != nil {
		return "", &LinkResolutionError{Host: s.cfg.Host, URL: pageURL, Message: "failed to fetch file page", Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.HTML))
	if err != nil {
		return "", &LinkResolutionError{Host: s.cfg.Host, URL: pageURL, Message: "failed to parse file page", Cause: err}
	}

	base, _ := url.Parse(pageURL)
	var direct string
	doc.Find(s.cfg.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || !strings.Contains(href, s.cfg.HrefContains) {
			return true
		}
		direct = absolute(base, href)
		return direct == ""
	})

	if direct == "" {
		return "", &LinkResolutionError{Host: s.cfg.Host, URL: pageURL, Message: "no direct download link on page"}
	}
	return direct, nil
}

// rewriteStrategy derives the direct link from the page URL without a fetch.
type rewriteStrategy struct {
	host    types.Host
	pattern *regexp.Regexp
	rewrite func(match []string) string
}

// NewPixeldrainStrategy maps /u/<id> pages onto the API file endpoint.
// apiBase is the scheme and host serving /api/file; empty uses pixeldrain.com.
func NewPixeldrainStrategy(pattern, apiBase string) Strategy {
	if apiBase == "" {
		apiBase = "https://pixeldrain.com"
	}
	apiBase = strings.TrimSuffix(apiBase, "/")
	return &rewriteStrategy{
		host:    types.HostPixeldrain,
		pattern: regexp.MustCompile(pattern),
		rewrite: func(match []string) string {
			if len(match) < 2 || match[1] == "" {
				return ""
			}
			return apiBase + "/api/file/" + match[1] + "?download"
		},
	}
}

func (s *rewriteStrategy) Host() types.Host { return s.host }

func (s *rewriteStrategy) Matches(rawURL string) bool {
	return matchesPrefix(s.pattern, rawURL)
}

func (s *rewriteStrategy) FindAll(text string) []string {
	return s.pattern.FindAllString(text, -1)
}

func (s *rewriteStrategy) ResolveDirectLink(_ context.Context, pageURL string) (string, error) {
	match := s.pattern.FindStringSubmatch(pageURL)
	direct := ""
	if match != nil {
		direct = s.rewrite(match)
	}
	if direct == "" {
		return "", &LinkResolutionError{Host: s.host, URL: pageURL, Message: "URL does not carry a file id"}
	}
	return direct, nil
}

func matchesPrefix(pattern *regexp.Regexp, rawURL string) bool {
	loc := pattern.FindStringIndex(rawURL)
	return loc != nil && loc[0] == 0
}

func absolute(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}
