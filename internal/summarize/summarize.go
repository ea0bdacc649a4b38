// Package summarize turns articles into short extractive or model-written summaries.
package summarize

import (
	"context"
	"time"

	"github.com/ppiankov/newspan/internal/article"
)

// Summarizer produces summary text for an article. Implementations must be
// safe for concurrent use and give up on ctx cancellation.
type Summarizer interface {
	Summarize(ctx context.Context, a article.Article) string
}

// Build summarizes a and assembles the caller-facing record.
func Build(ctx context.Context, s Summarizer, a article.Article, now time.Time) article.Summary {
	return article.Summary{
		Title:          a.Title,
		URL:            a.URL,
		Source:         a.Source,
		Summary:        s.Summarize(ctx, a),
		TimeAgo:        article.TimeAgo(a.PublishedAt, now),
		HasFullContent: a.HasFullContent,
		PublishedAt:    a.PublishedAt,
	}
}

// BuildAll summarizes every article in order. Once ctx is done the
// remaining articles get heuristic summaries so the result stays complete.
func BuildAll(ctx context.Context, s Summarizer, articles []article.Article, now time.Time) []article.Summary {
	out := make([]article.Summary, 0, len(articles))
	for _, a := range articles {
		if ctx.Err() != nil {
			s = HeuristicSummarizer{}
		}
		out = append(out, Build(ctx, s, a, now))
	}
	return out
}
