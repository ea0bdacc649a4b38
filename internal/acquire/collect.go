package acquire

import (
	"context"
	"sync"

	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/search"
	"github.com/ppiankov/newspan/internal/source"
)

type fetchStats struct {
	ok     int
	failed int
}

// collect fetches every source concurrently, bounded by maxConcurrency, and
// concatenates the results in source order.
func (o *Orchestrator) collect(ctx context.Context, sources []source.Source, expanded bool) ([]article.Article, fetchStats) {
	results := make([][]article.Article, len(sources))
	stats := make([]fetchStats, len(sources))

	o.fanOut(ctx, len(sources), func(i int) {
		results[i], stats[i] = o.collectSource(ctx, sources[i], expanded)
	})

	var (
		all   []article.Article
		total fetchStats
	)
	for i := range sources {
		all = append(all, results[i]...)
		total.ok += stats[i].ok
		total.failed += stats[i].failed
	}
	return article.Dedupe(all), total
}

// collectSource reads the primary feeds of src and, when they yield nothing,
// its alternative feeds until altFeedTarget articles are found.
func (o *Orchestrator) collectSource(ctx context.Context, src source.Source, expanded bool) ([]article.Article, fetchStats) {
	var stats fetchStats
	articles := o.readFeeds(ctx, src, src.Feeds, expanded, 0, &stats)

	if len(articles) == 0 && len(src.AltFeeds) > 0 && ctx.Err() == nil {
		o.logger.Debug("trying alternative feeds", "source", src.ID)
		articles = o.readFeeds(ctx, src, src.AltFeeds, expanded, o.altFeedTarget, &stats)
	}
	return article.Dedupe(articles), stats
}

// readFeeds fetches and parses feeds in order. A positive target stops once
// that many articles were collected.
func (o *Orchestrator) readFeeds(ctx context.Context, src source.Source, feeds []string, expanded bool, target int, stats *fetchStats) []article.Article {
	var out []article.Article
	for _, feedURL := range feeds {
		if ctx.Err() != nil {
			break
		}
		text, err := o.fetcher.FetchFeed(ctx, feedURL)
		if err != nil {
			stats.failed++
			o.logger.Warn("feed fetch failed", "source", src.ID, "url", feedURL, "err", err)
			continue
		}
		stats.ok++

		items, err := o.parser.Parse(text, src.ID, expanded)
		if err != nil {
			o.logger.Warn("feed parse failed", "source", src.ID, "url", feedURL, "err", err)
			continue
		}
		out = append(out, items...)
		if target > 0 && len(out) >= target {
			break
		}
	}
	return out
}

// searchAll runs each outlet's native search concurrently and concatenates
// the results in source order.
func (o *Orchestrator) searchAll(ctx context.Context, sources []source.Source, keywords string) []article.Article {
	results := make([][]article.Article, len(sources))

	o.fanOut(ctx, len(sources), func(i int) {
		src := sources[i]
		searchURL, ok := src.SearchURL(keywords)
		if !ok {
			return
		}
		page, err := o.fetcher.FetchPage(ctx, searchURL)
		if err != nil {
			o.logger.Warn("site search failed", "source", src.ID, "url", searchURL, "err", err)
			return
		}
		results[i] = search.Parse(page, src, searchURL)
		o.logger.Debug("site search", "source", src.ID, "results", len(results[i]))
	})

	var all []article.Article
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// fanOut runs fn(0..n-1) with at most maxConcurrency calls in flight.
// Tasks not yet started when ctx ends are skipped.
func (o *Orchestrator) fanOut(ctx context.Context, n int, fn func(i int)) {
	sem := make(chan struct{}, o.maxConcurrency)
	var wg sync.WaitGroup
	for i := range n {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}()
	}
	wg.Wait()
}
