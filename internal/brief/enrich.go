package brief

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/newspan/internal/article"
)

// minFullContent is the shortest extracted text that counts as full content.
const minFullContent = 200

// sleepFunc waits between page fetches; tests replace it.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
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

// enrich replaces feed descriptions with extracted page text where possible.
// Articles whose page cannot be fetched or parsed keep their feed content,
// as do all remaining articles once ctx ends.
func (s *Service) enrich(ctx context.Context, articles []article.Article) []article.Article {
	out := make([]article.Article, len(articles))
	copy(out, articles)

	jobs := make(chan int, len(out))
	for i := range out {
		jobs <- i
	}
	close(jobs)

	workers := min(s.opts.Workers, len(out))
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			for i := range jobs {
				if !first {
					if err := sleepFunc(ctx, s.opts.Delay); err != nil {
						return
					}
				}
				first = false
				if ctx.Err() != nil {
					return
				}
				out[i] = s.enrichOne(ctx, out[i])
			}
		}()
	}
	wg.Wait()
	return out
}

func (s *Service) enrichOne(ctx context.Context, a article.Article) article.Article {
	page, err := s.pages.FetchPage(ctx, a.URL)
	if err != nil {
		s.logger.Warn("article fetch failed", "source", a.Source, "url", a.URL, "err", err)
		return a
	}
	text, ok := s.extractor.Extract(page, a.Source, a.URL)
	if !ok {
		s.logger.Debug("no article body extracted", "source", a.Source, "url", a.URL)
		return a
	}
	if utf8.RuneCountInString(text) > minFullContent {
		a.Content = text
		a.HasFullContent = true
	}
	return a
}
