// Package pipeline orchestrates the download, extract, clean and repack
// flow for one aggregator or file-host URL.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/jonathan/repackr/internal/archive"
	"github.com/jonathan/repackr/internal/fetch"
	"github.com/jonathan/repackr/internal/hosts"
	"github.com/jonathan/repackr/internal/types"
)

// Stage names reported through ProgressEvent.
const (
	StageResolve  = "resolve"
	StageLink     = "link"
	StageDownload = "download"
	StageExtract  = "extract"
	StageClean    = "clean"
	StageRepack   = "repack"
	StageDone     = "done"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Stage   string     `json:"stage"`
	Host    types.Host `json:"host,omitempty"`
	Message string     `json:"message"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// MetadataResolver scrapes an aggregator page. *metadata.Resolver satisfies it.
type MetadataResolver interface {
	Resolve(ctx context.Context, aggregatorURL, workDir string) (*types.Metadata, error)
}

// Downloader streams a URL to disk. *fetch.Fetcher satisfies it.
type Downloader interface {
	Download(ctx context.Context, url, destPath string, progress fetch.ProgressFunc) error
}

// ArchiveExtractor unpacks an archive. *archive.Extractor satisfies it.
type ArchiveExtractor interface {
	Extract(ctx context.Context, archivePath, destDir string) (types.ExtractionOutcome, error)
}

// Options wires an Orchestrator.
type Options struct {
	Resolver   MetadataResolver
	Registry   *hosts.Registry
	Downloader Downloader
	Extractor  ArchiveExtractor
	// AggregatorDomains are hostnames (or host:port) whose pages are scraped for candidates.
	AggregatorDomains []string
	// BrandingDir holds files copied into archives when branding is requested.
	BrandingDir string
	// DenyList overrides archive.DefaultDenyList when non-nil.
	DenyList []string
	Logger   *slog.Logger
}

// Request is one pipeline invocation.
type Request struct {
	URL string
	// WorkDir must exist; the orchestrator writes into it but never removes it.
	WorkDir        string
	InjectBranding bool
	// Progress receives download byte counts.
	Progress fetch.ProgressFunc
	OnStage  ProgressCallback
}

// Orchestrator runs the acquisition pipeline.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{opts: opts, logger: logger}
}

// Process turns req.URL into a cleaned archive inside req.WorkDir.
// Aggregator pages are resolved to candidate links which are tried in host
// priority order; a direct file-host URL is tried once. Errors are always *Error.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*types.Result, error) {
	logger := o.logger.With("url", req.URL)

	if o.IsAggregator(req.URL) {
		return o.processAggregator(ctx, req, logger)
	}

	if strategy, ok := o.opts.Registry.Match(req.URL); ok {
		result, failure := o.processCandidate(ctx, req, strategy, req.URL, logger)
		if failure != nil {
			o.logFailure(logger, failure)
			return nil, &Error{
				Kind:     KindExhausted,
				Host:     strategy.Host(),
				URL:      req.URL,
				Message:  "direct link failed",
				Cause:    failure,
				Failures: []*Error{failure},
			}
		}
		emit(req, StageDone, strategy.Host(), "archive ready")
		return result, nil
	}

	return nil, &Error{Kind: KindUnsupportedURL, URL: req.URL, Message: "not an aggregator page or supported file host"}
}

func (o *Orchestrator) processAggregator(ctx context.Context, req Request, logger *slog.Logger) (*types.Result, error) {
	emit(req, StageResolve, "", "reading post")
	meta, err := o.opts.Resolver.Resolve(ctx, req.URL, req.WorkDir)
	if err != nil {
		return nil, &Error{Kind: KindResolveFailed, URL: req.URL, Message: "failed to resolve aggregator page", Cause: err}
	}
	if len(meta.CandidateLinks) == 0 {
		return nil, &Error{Kind: KindNoCandidateLinks, URL: req.URL, Message: "page has no supported file-host link"}
	}

	var failures []*Error
	for _, candidate := range meta.CandidateLinks {
		strategy, ok := o.opts.Registry.Lookup(candidate.Host)
		if !ok {
			failure := &Error{Kind: KindLinkResolutionFailed, Host: candidate.Host, URL: candidate.URL, Message: "no strategy registered for host"}
			o.logFailure(logger, failure)
			failures = append(failures, failure)
			continue
		}

		result, failure := o.processCandidate(ctx, req, strategy, candidate.URL, logger)
		if failure != nil {
			o.logFailure(logger, failure)
			failures = append(failures, failure)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		result.Metadata = meta
		result.SourceURL = req.URL
		emit(req, StageDone, candidate.Host, "archive ready")
		return result, nil
	}

	return nil, &Error{
		Kind:     KindExhausted,
		URL:      req.URL,
		Message:  fmt.Sprintf("all %d candidate links failed", len(failures)),
		Failures: failures,
	}
}

// processCandidate runs link resolution through repack for one file-host page.
// logger already carries the request URL.
func (o *Orchestrator) processCandidate(ctx context.Context, req Request, strategy hosts.Strategy, pageURL string, logger *slog.Logger) (*types.Result, *Error) {
	host := strategy.Host()
	logger = logger.With("host", host, "page_url", pageURL)
	fail := func(kind Kind, message string, cause error) *Error {
		return &Error{Kind: kind, Host: host, URL: pageURL, Message: message, Cause: cause}
	}

	downloads := filepath.Join(req.WorkDir, DownloadsDir)
	extracted := filepath.Join(req.WorkDir, ExtractedDir)
	for _, dir := range []string{downloads, extracted} {
		if err := resetDir(dir); err != nil {
			return nil, fail(KindDownloadFailed, "failed to prepare work directory", err)
		}
	}

	emit(req, StageLink, host, "resolving direct link")
	direct, err := strategy.ResolveDirectLink(ctx, pageURL)
	if err != nil {
		return nil, fail(KindLinkResolutionFailed, "no direct download link", err)
	}

	name := hosts.FileName(direct, pageURL)
	archivePath := filepath.Join(downloads, name)
	emit(req, StageDownload, host, "downloading "+name)
	if err := o.opts.Downloader.Download(ctx, direct, archivePath, req.Progress); err != nil {
		return nil, fail(KindDownloadFailed, "download failed", err)
	}

	emit(req, StageExtract, host, "extracting "+name)
	outcome, err := o.opts.Extractor.Extract(ctx, archivePath, extracted)
	if err != nil {
		return nil, fail(KindExtractionFailed, "extraction failed", err)
	}

	emit(req, StageClean, host, "removing watermark files")
	removed, err := archive.Sanitize(extracted, o.opts.DenyList, logger)
	if err != nil {
		logger.Warn("sanitize failed, continuing", "error", err)
	}
	if req.InjectBranding {
		if _, err := archive.InjectBranding(extracted, o.opts.BrandingDir, logger); err != nil {
			logger.Warn("branding failed, continuing", "error", err)
		}
	}

	outPath := filepath.Join(req.WorkDir, archive.OutputName(name))
	emit(req, StageRepack, host, "packing "+filepath.Base(outPath))
	if err := archive.Repack(extracted, outPath); err != nil {
		return nil, fail(KindRepackFailed, "repack failed", err)
	}

	logger.Info("candidate succeeded", "archive", outPath, "tool", outcome.Tool, "removed", len(removed))
	return &types.Result{
		ArchivePath: outPath,
		Host:        host,
		SourceURL:   pageURL,
		Outcome:     outcome,
		Removed:     removed,
	}, nil
}

// IsAggregator reports whether rawURL is on a configured aggregator domain.
func (o *Orchestrator) IsAggregator(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	hostname := strings.ToLower(u.Hostname())
	for _, d := range o.opts.AggregatorDomains {
		d = strings.ToLower(d)
		if host == d || hostname == d || strings.HasSuffix(hostname, "."+d) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) logFailure(logger *slog.Logger, failure *Error) {
	attrs := []any{"host", failure.Host, "kind", failure.Kind, "candidate_url", failure.URL}
	if failure.Cause != nil {
		attrs = append(attrs, "error", failure.Cause)
	}
	logger.Warn("candidate failed", attrs...)
}

// emit calls the progress callback if configured
func emit(req Request, stage string, host types.Host, message string) {
	if req.OnStage != nil {
		req.OnStage(ProgressEvent{Stage: stage, Host: host, Message: message})
	}
}
