package crawling

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// categoryPaths are the index sections whose posts carry downloads.
var categoryPaths = []string{"/scripts3/", "/plugins3/", "/apps3/", "/mobile/", "/templates/"}

// postSlug matches the numeric id prefix of a post slug, e.g. /12345-name.html.
var postSlug = regexp.MustCompile(`/\d+-`)

// ExtractPostLinks extracts post links from an index page, in page order
// and without duplicates. Fragments and query strings are dropped.
// A link counts as a post when it ends in .html and is either under a
// content category or on the index page's own host with a numeric slug.
func ExtractPostLinks(htmlContent string, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &LinkExtractionError{
			Message: "failed to parse base URL",
			Cause:   err,
		}
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, &LinkExtractionError{
			Message: fmt.Sprintf("invalid base URL: %s (must have scheme and host)", baseURL),
			Cause:   nil,
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &LinkExtractionError{
			Message: "failed to parse HTML",
			Cause:   err,
		}
	}

	linkSet := make(map[string]bool)
	links := make([]string, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}

		linkURL, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			// Skip malformed URLs
			return
		}

		absoluteURL := base.ResolveReference(linkURL)
		absoluteURL.Fragment = ""
		absoluteURL.RawQuery = ""
		absoluteURL.ForceQuery = false
		urlString := absoluteURL.String()

		if !isPost(absoluteURL, base) {
			return
		}

		if !linkSet[urlString] {
			linkSet[urlString] = true
			links = append(links, urlString)
		}
	})

	return links, nil
}

func isPost(u, base *url.URL) bool {
	if !strings.HasSuffix(u.Path, ".html") {
		return false
	}
	for _, category := range categoryPaths {
		if strings.Contains(u.Path, category) {
			return true
		}
	}
	return strings.EqualFold(u.Hostname(), base.Hostname()) && postSlug.MatchString(u.Path)
}
