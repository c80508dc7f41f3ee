// Package metadata scrapes title, description, demo link, cover image and
// file-host links from aggregator post pages.
package metadata

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/repackr/internal/fetch"
	"golang.org/x/net/html"
)

// MaxDescriptionLength bounds the description in characters.
const MaxDescriptionLength = 1000

const demoMarker = "Demo:"

var (
	// viewCounter matches the byline counter, e.g. "1,234 views" or "2.1k views".
	viewCounter = regexp.MustCompile(`(?i)\d[\d.,]*\s*[km]?\s*views`)
	byAdmin     = regexp.MustCompile(`(?i)^by\s+admin\b`)
	redirectors = map[string]bool{
		"lolinez.com": true,
		"anonym.to":   true,
		"href.li":     true,
	}
	marketplaceHosts = []string{"codecanyon.net", "themeforest.net"}
	imageNoise       = []string{"avatar", "icon", "logo", "badge"}
)

// Title returns the post title.
func Title(doc *goquery.Document) (string, string) {
	title := strings.TrimSpace(doc.Find("h1.entry-title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		return "", "no h1 heading"
	}
	return strings.Join(strings.Fields(title), " "), ""
}

// Description returns the post text that precedes the demo marker, minus the
// byline and view counter the template prints above it.
func Description(doc *goquery.Document) (string, string) {
	text := fetch.MainText(doc, fetch.PostContentSelectors())
	idx := strings.Index(text, demoMarker)
	if idx < 0 {
		return "", "no " + demoMarker + " marker in content"
	}
	text = text[:idx]

	// The counter is the first one on the page; later mentions belong to the body.
	if loc := viewCounter.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}
	text = strings.Join(strings.Fields(text), " ")
	text = strings.TrimSpace(byAdmin.ReplaceAllString(text, ""))

	if text == "" {
		return "", "no text before " + demoMarker + " marker"
	}
	return lastRunes(text, MaxDescriptionLength), ""
}

// DemoURL returns a marketplace item link if the page has one, else the
// first link after the demo marker. Redirector wrappers are removed.
func DemoURL(doc *goquery.Document) (string, string) {
	var demo string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if strings.Contains(href, "codecanyon.net/item") || strings.Contains(href, "themeforest.net/item") {
			demo = href
			return false
		}
		return true
	})

	if demo == "" {
		demo = linkAfterMarker(contentRoot(doc))
	}
	if demo == "" {
		return "", "no marketplace link and no link after " + demoMarker
	}
	return Unwrap(resolve(doc.Url, demo)), ""
}

// Unwrap strips a known redirector from rawURL.
func Unwrap(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !redirectors[host] {
		return rawURL
	}

	tail := u.RawQuery
	if unescaped, err := url.QueryUnescape(tail); err == nil {
		tail = unescaped
	}
	if strings.HasPrefix(tail, "http://") || strings.HasPrefix(tail, "https://") {
		return tail
	}
	if host == "lolinez.com" {
		u.Host = "codecanyon.net"
		return u.String()
	}
	return rawURL
}

// IsMarketplace reports whether rawURL is a marketplace item page.
func IsMarketplace(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, m := range marketplaceHosts {
		if host == m || strings.HasSuffix(host, "."+m) {
			return strings.HasPrefix(u.Path, "/item")
		}
	}
	return false
}

// OGImage returns the page's Open Graph image.
func OGImage(doc *goquery.Document) string {
	content := strings.TrimSpace(doc.Find(`meta[property="og:image"]`).First().AttrOr("content", ""))
	if content == "" {
		return ""
	}
	return resolve(doc.Url, content)
}

// MarketplaceImage picks the preview image of a marketplace item page.
func MarketplaceImage(doc *goquery.Document) string {
	if og := OGImage(doc); og != "" {
		return og
	}
	if src := strings.TrimSpace(doc.Find(".item-header__image img").First().AttrOr("src", "")); src != "" {
		return resolve(doc.Url, src)
	}

	var found string
	doc.Find("img[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src := resolve(doc.Url, strings.TrimSpace(sel.AttrOr("src", "")))
		u, err := url.Parse(src)
		if err != nil || !strings.HasSuffix(strings.ToLower(u.Hostname()), "envatousercontent.com") {
			return true
		}
		lower := strings.ToLower(src)
		for _, noise := range imageNoise {
			if strings.Contains(lower, noise) {
				return true
			}
		}
		found = src
		return false
	})
	return found
}

// UploadImages returns body images served from the aggregator's upload paths, in page order.
func UploadImages(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var out []string
	doc.Find("body img[src]").Each(func(_ int, sel *goquery.Selection) {
		fields := strings.Fields(sel.AttrOr("src", ""))
		if len(fields) == 0 {
			return
		}
		src := resolve(doc.Url, fields[0])
		if !strings.Contains(src, "wp-content/uploads") && !strings.Contains(src, "/uploads/posts/") {
			return
		}
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	})
	return out
}

func contentRoot(doc *goquery.Document) *goquery.Selection {
	for _, selector := range fetch.PostContentSelectors() {
		if sel := doc.Find(selector); sel.Length() > 0 {
			return sel.First()
		}
	}
	return doc.Find("body")
}

// linkAfterMarker walks root in document order and returns the href of the
// first anchor that follows a text node containing the demo marker.
func linkAfterMarker(root *goquery.Selection) string {
	if root.Length() == 0 {
		return ""
	}
	seenMarker := false
	var href string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		switch {
		case n.Type == html.TextNode && strings.Contains(n.Data, demoMarker):
			seenMarker = true
		case seenMarker && n.Type == html.ElementNode && n.Data == "a":
			for _, attr := range n.Attr {
				if attr.Key == "href" && strings.TrimSpace(attr.Val) != "" {
					href = strings.TrimSpace(attr.Val)
					return true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root.Nodes[0])
	return href
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func lastRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[len(runes)-n:])
}
