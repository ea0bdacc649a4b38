// Package acquire collects candidate articles for a set of sources, widening
// the search step by step until enough keyword matches are found.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/feed"
	"github.com/ppiankov/newspan/internal/keyword"
	"github.com/ppiankov/newspan/internal/source"
)

const (
	DefaultMaxConcurrency = 5
	DefaultMinMatches     = 3
	DefaultMaxArticles    = 10
	DefaultAltFeedTarget  = 3
)

var (
	// ErrInvalidInput means the request named no usable source.
	ErrInvalidInput = errors.New("no news sources selected")
	// ErrUnreachable means every feed fetch of the first pass failed.
	ErrUnreachable = errors.New("no news source could be reached")
)

// Fetcher retrieves raw feed and page bodies.
type Fetcher interface {
	FetchFeed(ctx context.Context, feedURL string) (string, error)
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// Options tunes an Orchestrator. Zero values select the defaults.
type Options struct {
	MaxConcurrency int
	MinMatches     int
	MaxArticles    int
	AltFeedTarget  int
	Now            func() time.Time
	Logger         *slog.Logger
}

// Result is the outcome of one acquisition.
type Result struct {
	Articles []article.Article
	// DateRange labels the pass whose results were adopted.
	DateRange string
	// Attempted is the widest recency window that was fetched.
	Attempted     string
	KeywordSearch bool
}

type strategy struct {
	label    string
	expanded bool
	search   bool
}

// strategies run in order; each later one runs only for keyword searches
// that are still short of the minimum match count.
var strategies = []strategy{
	{label: article.LabelDefault},
	{label: article.LabelExpanded, expanded: true},
	{label: article.LabelSearch, search: true},
}

// Orchestrator drives feed collection, keyword filtering and fallbacks.
type Orchestrator struct {
	fetcher        Fetcher
	registry       *source.Registry
	parser         *feed.Parser
	maxConcurrency int
	minMatches     int
	maxArticles    int
	altFeedTarget  int
	logger         *slog.Logger
}

// New creates an Orchestrator over the given outlet table.
func New(fetcher Fetcher, registry *source.Registry, opts Options) *Orchestrator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.MinMatches <= 0 {
		opts.MinMatches = DefaultMinMatches
	}
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = DefaultMaxArticles
	}
	if opts.AltFeedTarget <= 0 {
		opts.AltFeedTarget = DefaultAltFeedTarget
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:        fetcher,
		registry:       registry,
		parser:         &feed.Parser{Now: opts.Now},
		maxConcurrency: opts.MaxConcurrency,
		minMatches:     opts.MinMatches,
		maxArticles:    opts.MaxArticles,
		altFeedTarget:  opts.AltFeedTarget,
		logger:         opts.Logger,
	}
}

// Acquire returns at most MaxArticles unique articles for the given source
// ids. Per-feed failures are logged and skipped. When ctx ends early the
// articles gathered so far are returned without error.
func (o *Orchestrator) Acquire(ctx context.Context, ids []string, keywords string) (Result, error) {
	sources, err := o.resolve(ids)
	if err != nil {
		return Result{}, err
	}

	res := Result{KeywordSearch: len(keyword.Tokenize(keywords)) > 0}
	var current []article.Article

	for i, st := range strategies {
		if i > 0 && (!res.KeywordSearch || len(current) >= o.minMatches) {
			break
		}
		if ctx.Err() != nil {
			o.logger.Warn("acquisition stopped early", "stage", st.label, "err", ctx.Err())
			break
		}
		if i > 0 {
			o.logger.Info("widening search", "stage", st.label, "matches", len(current))
		}

		if st.search {
			found := o.searchAll(ctx, sources, keywords)
			if len(found) > 0 {
				current = article.Dedupe(append(current, found...))
				res.DateRange = st.label
			}
			continue
		}

		collected, stats := o.collect(ctx, sources, st.expanded)
		if i == 0 && stats.ok == 0 && stats.failed > 0 && ctx.Err() == nil {
			return Result{}, fmt.Errorf("%w: %d feed fetches failed", ErrUnreachable, stats.failed)
		}
		if ctx.Err() == nil {
			res.Attempted = st.label
		}

		matched := keyword.Filter(collected, keywords)
		if i == 0 || len(matched) > len(current) {
			current = matched
			res.DateRange = st.label
		}
	}

	current = article.Dedupe(current)
	if len(current) > o.maxArticles {
		current = current[:o.maxArticles]
	}
	res.Articles = current
	return res, nil
}

func (o *Orchestrator) resolve(ids []string) ([]source.Source, error) {
	if len(ids) == 0 {
		return nil, ErrInvalidInput
	}
	found, unknown := o.registry.Resolve(ids)
	if len(unknown) > 0 {
		o.logger.Warn("ignoring unknown sources", "sources", strings.Join(unknown, ","))
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: unknown sources %s", ErrInvalidInput, strings.Join(unknown, ", "))
	}
	return found, nil
}
