// Package brief is the caller-facing pipeline: acquire articles, enrich them
// with page text and summarize each one.
package brief

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/newspan/internal/acquire"
	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/summarize"
)

const noArticlesMessage = "No articles available at the moment. This might be due to RSS feed connectivity issues. Please try again later."

// Request names the sources to read and optional keyword filters.
type Request struct {
	Sources  []string `json:"sources"`
	Keywords string   `json:"keywords"`
}

// Result is either a list of summaries or, when nothing was found, a message.
type Result struct {
	RunID         string            `json:"runId"`
	Summaries     []article.Summary `json:"summaries"`
	DateRange     string            `json:"dateRange,omitempty"`
	KeywordSearch bool              `json:"keywordSearch"`
	Keywords      string            `json:"keywords,omitempty"`
	Message       string            `json:"message,omitempty"`
	GeneratedAt   time.Time         `json:"generatedAt"`
}

// Empty reports whether the result carries no summaries.
func (r Result) Empty() bool {
	return len(r.Summaries) == 0
}

// Acquirer produces the candidate article list.
type Acquirer interface {
	Acquire(ctx context.Context, sources []string, keywords string) (acquire.Result, error)
}

// PageFetcher retrieves article pages.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// ContentExtractor isolates body text from an article page.
type ContentExtractor interface {
	Extract(page, source, pageURL string) (string, bool)
}

// Options tunes a Service.
type Options struct {
	// FullContent enables fetching each article page before summarizing.
	FullContent bool
	Workers     int
	// Delay separates consecutive page fetches made by one worker.
	Delay  time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

const (
	DefaultWorkers = 3
	DefaultDelay   = 500 * time.Millisecond
)

// Service runs briefs.
type Service struct {
	acquirer   Acquirer
	pages      PageFetcher
	extractor  ContentExtractor
	summarizer summarize.Summarizer
	opts       Options
	logger     *slog.Logger
}

// New wires a Service. pages and extractor may be nil when FullContent is off.
func New(acq Acquirer, pages PageFetcher, extractor ContentExtractor, summarizer summarize.Summarizer, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if summarizer == nil {
		summarizer = summarize.HeuristicSummarizer{}
	}
	if pages == nil || extractor == nil {
		opts.FullContent = false
	}
	return &Service{
		acquirer:   acq,
		pages:      pages,
		extractor:  extractor,
		summarizer: summarizer,
		opts:       opts,
		logger:     opts.Logger,
	}
}

// Brief acquires, enriches and summarizes articles for req. Only invalid
// input and a completely unreachable network are returned as errors; an
// empty result carries an explanatory Message instead.
func (s *Service) Brief(ctx context.Context, req Request) (Result, error) {
	res := Result{
		RunID:    uuid.NewString(),
		Keywords: strings.TrimSpace(req.Keywords),
	}

	acq, err := s.acquirer.Acquire(ctx, req.Sources, req.Keywords)
	if err != nil {
		return Result{}, err
	}
	res.KeywordSearch = acq.KeywordSearch
	res.DateRange = acq.DateRange

	if len(acq.Articles) == 0 {
		res.Summaries = []article.Summary{}
		res.Message = NoResultsMessage(res.Keywords, acq.KeywordSearch, acq.Attempted)
		res.GeneratedAt = s.opts.Now()
		return res, nil
	}

	articles := acq.Articles
	if s.opts.FullContent {
		articles = s.enrich(ctx, articles)
	}

	now := s.opts.Now()
	res.Summaries = summarize.BuildAll(ctx, s.summarizer, articles, now)
	res.GeneratedAt = now
	s.logger.Info("brief ready", "run", res.RunID, "summaries", len(res.Summaries), "range", res.DateRange)
	return res, nil
}

// NoResultsMessage explains an empty result. attempted is the widest
// recency window that was searched.
func NoResultsMessage(keywords string, keywordSearch bool, attempted string) string {
	if !keywordSearch {
		return noArticlesMessage
	}
	if attempted == "" {
		attempted = article.LabelDefault
	}
	return fmt.Sprintf(`No articles found matching keywords: "%s" in the past %s. Try different keywords, check spelling, or remove keywords for general news.`,
		keywords, attempted)
}
