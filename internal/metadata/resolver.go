package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/repackr/internal/hosts"
	"github.com/jonathan/repackr/internal/types"
)

// ErrResolveFailed is matched by every error returned from Resolve.
var ErrResolveFailed = errors.New("resolve failed")

// ResolveError reports an aggregator page that could not be fetched or parsed.
type ResolveError struct {
	URL     string
	Message string
	Cause   error
}

func (e *ResolveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resolve error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("resolve error for %s: %s", e.URL, e.Message)
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

func (e *ResolveError) Is(target error) bool {
	return target == ErrResolveFailed
}

// CoverProcessor stores a cover image locally. *imaging.Processor satisfies it.
type CoverProcessor interface {
	FetchAndCrop(ctx context.Context, imageURL, workDir, referer string) (string, bool)
}

// Resolver extracts Metadata from aggregator pages.
type Resolver struct {
	pages    hosts.PageFetcher
	registry *hosts.Registry
	covers   CoverProcessor
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(pages hosts.PageFetcher, registry *hosts.Registry, covers CoverProcessor, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{pages: pages, registry: registry, covers: covers, logger: logger}
}

type coverCandidate struct {
	url     string
	referer string
	source  string
}

// Resolve fetches aggregatorURL and extracts its metadata. Only a page that
// cannot be fetched or parsed is an error; every missing field is recorded
// as a Diagnostic instead. Cover images are written into workDir; with an
// empty workDir only ImageURL is filled.
func (r *Resolver) Resolve(ctx context.Context, aggregatorURL, workDir string) (*types.Metadata, error) {
	logger := r.logger.With("url", aggregatorURL)

	page, err := r.pages.Page(ctx, aggregatorURL)
	if err != nil {
		return nil, &ResolveError{URL: aggregatorURL, Message: "failed to fetch aggregator page", Cause: err}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, &ResolveError{URL: aggregatorURL, Message: "failed to parse aggregator page", Cause: err}
	}
	doc.Url, _ = url.Parse(aggregatorURL)

	meta := &types.Metadata{}

	var reason string
	meta.Title, reason = Title(doc)
	meta.Note("title", reason)
	meta.Description, reason = Description(doc)
	meta.Note("description", reason)
	meta.DemoURL, reason = DemoURL(doc)
	meta.Note("demo_url", reason)

	meta.CandidateLinks = r.registry.Discover(page.HTML, doc)
	if len(meta.CandidateLinks) == 0 {
		meta.Note("candidate_links", "no supported file-host link on page")
	}

	r.resolveCover(ctx, meta, doc, aggregatorURL, workDir)

	for _, d := range meta.Diagnostics {
		logger.Debug("metadata field missing", "field", d.Field, "reason", d.Reason)
	}
	logger.Info("metadata resolved",
		"title", meta.Title,
		"candidates", len(meta.CandidateLinks),
		"has_cover", meta.HasCover(),
	)
	return meta, nil
}

func (r *Resolver) resolveCover(ctx context.Context, meta *types.Metadata, doc *goquery.Document, aggregatorURL, workDir string) {
	candidates := r.coverCandidates(ctx, meta, doc, aggregatorURL)
	if len(candidates) == 0 {
		meta.Note("image", "no cover image candidates")
		return
	}

	meta.ImageURL = candidates[0].url
	if workDir == "" || r.covers == nil {
		return
	}

	for _, c := range candidates {
		path, ok := r.covers.FetchAndCrop(ctx, c.url, workDir, c.referer)
		if !ok {
			continue
		}
		meta.ImageURL = c.url
		meta.ImagePath = path
		r.logger.Debug("cover selected", "source", c.source, "image_url", c.url)
		return
	}
	meta.Note("image_path", "no cover candidate passed validation")
}

func (r *Resolver) coverCandidates(ctx context.Context, meta *types.Metadata, doc *goquery.Document, aggregatorURL string) []coverCandidate {
	var out []coverCandidate
	seen := make(map[string]bool)
	add := func(u, referer, source string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, coverCandidate{url: u, referer: referer, source: source})
	}

	if meta.HasDemo() && IsMarketplace(meta.DemoURL) {
		if img := r.marketplaceImage(ctx, meta); img != "" {
			add(img, meta.DemoURL, "marketplace")
		}
	}
	add(OGImage(doc), aggregatorURL, "og:image")
	for _, img := range UploadImages(doc) {
		add(img, aggregatorURL, "uploads")
	}
	return out
}

func (r *Resolver) marketplaceImage(ctx context.Context, meta *types.Metadata) string {
	page, err := r.pages.Page(ctx, meta.DemoURL)
	if err != nil {
		meta.Note("marketplace_image", err.Error())
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		meta.Note("marketplace_image", err.Error())
		return ""
	}
	doc.Url, _ = url.Parse(meta.DemoURL)

	img := MarketplaceImage(doc)
	if img == "" {
		meta.Note("marketplace_image", "no preview image on marketplace page")
	}
	return img
}
