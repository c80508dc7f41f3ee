package crawling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonathan/repackr/internal/fetch"
	"golang.org/x/sync/errgroup"
)

// Poll timing defaults.
const (
	DefaultInterval  = 10 * time.Minute
	DefaultPostDelay = 10 * time.Second
	DefaultIdleDelay = time.Minute
)

// PageFetcher retrieves an HTML page. *fetch.Fetcher satisfies it.
type PageFetcher interface {
	Page(ctx context.Context, url string) (*fetch.Result, error)
}

// Store remembers which posts have been handled.
type Store interface {
	IsProcessed(ctx context.Context, url string) (bool, error)
	MarkProcessed(ctx context.Context, url string) error
	CountProcessed(ctx context.Context) (int64, error)
}

// Switch reports whether polling is enabled. It is consulted before every poll.
type Switch interface {
	MonitorActive() bool
}

// Handler processes one new post.
type Handler func(ctx context.Context, postURL string) error

// Stats is a snapshot of poller activity.
type Stats struct {
	LastCheck      time.Time
	TotalFound     int
	TotalProcessed int
}

// Report summarizes one poll.
type Report struct {
	Discovered int
	Seeded     int
	New        int
	Processed  int
	Failed     int
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	IndexURLs []string
	Interval  time.Duration
	PostDelay time.Duration
	IdleDelay time.Duration
	// MaxConcurrent bounds parallel index fetches; zero fetches all at once.
	MaxConcurrent int
}

// Poller discovers new posts on index pages and hands them to a Handler.
type Poller struct {
	opts    PollerOptions
	pages   PageFetcher
	store   Store
	active  Switch
	handler Handler
	logger  *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewPoller creates a Poller.
func NewPoller(opts PollerOptions, pages PageFetcher, store Store, active Switch, handler Handler, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.PostDelay < 0 {
		opts.PostDelay = 0
	}
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = DefaultIdleDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		opts:    opts,
		pages:   pages,
		store:   store,
		active:  active,
		handler: handler,
		logger:  logger,
	}
}

// Stats returns a copy of the activity counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run polls every Interval until ctx is done. While the switch is off it
// checks again every IdleDelay without fetching.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "index_urls", len(p.opts.IndexURLs), "interval", p.opts.Interval)
	for {
		delay := p.opts.IdleDelay
		if p.active == nil || p.active.MonitorActive() {
			if _, err := p.PollOnce(ctx); err != nil {
				p.logger.Error("poll failed", "error", err)
			}
			delay = p.opts.Interval
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// PollOnce runs a single check. On an empty store every discovered post is
// recorded without processing, so a fresh install does not replay the whole
// index. Otherwise new posts are handled oldest first and marked processed
// even when the handler fails.
func (p *Poller) PollOnce(ctx context.Context) (Report, error) {
	var report Report

	posts := p.discover(ctx)
	report.Discovered = len(posts)

	p.mu.Lock()
	p.stats.LastCheck = time.Now()
	p.mu.Unlock()

	count, err := p.store.CountProcessed(ctx)
	if err != nil {
		return report, &CrawlError{Message: "failed to count processed posts", Cause: err}
	}
	if count == 0 {
		for _, post := range posts {
			if err := p.store.MarkProcessed(ctx, post); err != nil {
				return report, &CrawlError{Message: "failed to seed processed posts", Cause: err}
			}
			report.Seeded++
		}
		p.logger.Info("seeded processed posts", "count", report.Seeded)
		return report, nil
	}

	var fresh []string
	for _, post := range posts {
		done, err := p.store.IsProcessed(ctx, post)
		if err != nil {
			return report, &CrawlError{Message: "failed to check post", Cause: err}
		}
		if !done {
			fresh = append(fresh, post)
		}
	}
	report.New = len(fresh)
	if len(fresh) == 0 {
		return report, nil
	}

	p.mu.Lock()
	p.stats.TotalFound += len(fresh)
	p.mu.Unlock()
	p.logger.Info("new posts found", "count", len(fresh))

	// Index pages list newest first.
	for i := len(fresh) - 1; i >= 0; i-- {
		post := fresh[i]
		logger := p.logger.With("post_url", post)

		if err := p.handler(ctx, post); err != nil {
			logger.Error("failed to process post", "error", err)
			report.Failed++
		} else {
			report.Processed++
			p.mu.Lock()
			p.stats.TotalProcessed++
			p.mu.Unlock()
		}

		if err := p.store.MarkProcessed(ctx, post); err != nil {
			return report, &CrawlError{Message: "failed to mark post processed", Cause: err}
		}

		if i > 0 {
			if err := sleep(ctx, p.opts.PostDelay); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

// discover fetches every index page concurrently and merges their post links
// in index order. A failing index page is logged and skipped.
func (p *Poller) discover(ctx context.Context) []string {
	results := make([][]string, len(p.opts.IndexURLs))

	g, gctx := errgroup.WithContext(ctx)
	if p.opts.MaxConcurrent > 0 {
		g.SetLimit(p.opts.MaxConcurrent)
	}
	for i, indexURL := range p.opts.IndexURLs {
		g.Go(func() error {
			page, err := p.pages.Page(gctx, indexURL)
			if err != nil {
				p.logger.Warn("index fetch failed", "index_url", indexURL, "error", err)
				return nil
			}
			links, err := ExtractPostLinks(page.HTML, indexURL)
			if err != nil {
				p.logger.Warn("index parse failed", "index_url", indexURL, "error", err)
				return nil
			}
			results[i] = links
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	var merged []string
	for _, links := range results {
		for _, l := range links {
			if !seen[l] {
				seen[l] = true
				merged = append(merged, l)
			}
		}
	}
	return merged
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
