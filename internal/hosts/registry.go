package hosts

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/repackr/internal/types"
)

// Default file-page URL patterns. Pixeldrain's carries the file id as its first group.
const (
	UploadEEPattern   = `https?://(?:www\.)?upload\.ee/files/[^\s"'<>]+`
	MediafirePattern  = `https?://(?:www\.)?mediafire\.com/file/[^\s"'<>]+`
	WorkuploadPattern = `https?://(?:www\.)?workupload\.com/file/[^\s"'<>]+`
	PixeldrainPattern = `https?://(?:www\.)?pixeldrain\.com/u/([A-Za-z0-9]+)`
)

// Registry holds one Strategy per host.
type Registry struct {
	strategies map[types.Host]Strategy
	order      []types.Host
}

// NewRegistry builds a registry. Later strategies for the same host replace earlier ones.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[types.Host]Strategy)}
	for _, s := range strategies {
		if _, exists := r.strategies[s.Host()]; !exists {
			r.order = append(r.order, s.Host())
		}
		r.strategies[s.Host()] = s
	}
	types.SortHosts(r.order)
	return r
}

// DefaultRegistry returns strategies for every supported public host.
func DefaultRegistry(pages PageFetcher) *Registry {
	return NewRegistry(
		NewAnchorStrategy(AnchorConfig{
			Host:         types.HostUploadEE,
			Pattern:      UploadEEPattern,
			HrefContains: "/download/",
		}, pages),
		NewAnchorStrategy(AnchorConfig{
			Host:     types.HostMediafire,
			Pattern:  MediafirePattern,
			Selector: "a#downloadButton[href]",
		}, pages),
		NewAnchorStrategy(AnchorConfig{
			Host:         types.HostWorkupload,
			Pattern:      WorkuploadPattern,
			HrefContains: "/start/",
		}, pages),
		NewPixeldrainStrategy(PixeldrainPattern, ""),
	)
}

// Lookup returns the strategy for host.
func (r *Registry) Lookup(host types.Host) (Strategy, bool) {
	s, ok := r.strategies[host]
	return s, ok
}

// Match returns the strategy whose host owns rawURL.
func (r *Registry) Match(rawURL string) (Strategy, bool) {
	for _, h := range r.order {
		if s := r.strategies[h]; s.Matches(rawURL) {
			return s, true
		}
	}
	return nil, false
}

// Hosts returns the registered hosts in priority order.
func (r *Registry) Hosts() []types.Host {
	out := make([]types.Host, len(r.order))
	copy(out, r.order)
	return out
}

// Discover finds at most one link per registered host on an aggregator page.
// Raw HTML is scanned first, so links inside scripts or plain text count;
// anchors are consulted for hosts the scan missed. When doc.Url is set,
// relative anchors are resolved against it. The result is in priority order.
func (r *Registry) Discover(rawHTML string, doc *goquery.Document) []types.CandidateLink {
	found := make(map[types.Host]string)

	for _, h := range r.order {
		if matches := r.strategies[h].FindAll(rawHTML); len(matches) > 0 {
			found[h] = matches[0]
		}
	}

	if doc != nil && len(found) < len(r.order) {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href := absolute(doc.Url, strings.TrimSpace(sel.AttrOr("href", "")))
			if href == "" {
				return
			}
			if s, ok := r.Match(href); ok {
				if _, seen := found[s.Host()]; !seen {
					found[s.Host()] = href
				}
			}
		})
	}

	links := make([]types.CandidateLink, 0, len(found))
	for _, h := range r.order {
		if u, ok := found[h]; ok {
			links = append(links, types.CandidateLink{Host: h, URL: u})
		}
	}
	types.SortCandidates(links)
	return links
}

// FileName picks a local file name for a download: the last path segment of
// the direct URL, else of the file page (minus a trailing .html).
func FileName(directURL, pageURL string) string {
	if name := lastSegment(directURL); strings.Contains(name, ".") {
		return name
	}
	if name := strings.TrimSuffix(lastSegment(pageURL), ".html"); strings.Contains(name, ".") {
		return name
	}
	if name := lastSegment(directURL); name != "" {
		return name
	}
	return "download"
}

func lastSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	return name
}
