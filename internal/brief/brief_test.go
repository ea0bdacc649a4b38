package brief

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/newspan/internal/acquire"
	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/extract"
	"github.com/ppiankov/newspan/internal/source"
	"github.com/ppiankov/newspan/internal/summarize"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeAcquirer struct {
	res acquire.Result
	err error
}

func (f fakeAcquirer) Acquire(context.Context, []string, string) (acquire.Result, error) {
	return f.res, f.err
}

type fakePages struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakePages) FetchPage(_ context.Context, u string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, u)
	p, ok := f.pages[u]
	if !ok {
		return "", fmt.Errorf("%s: HTTP 404", u)
	}
	return p, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(t *testing.T) *int {
	t.Helper()
	var n int
	var mu sync.Mutex
	old := sleepFunc
	sleepFunc = func(ctx context.Context, _ time.Duration) error {
		mu.Lock()
		n++
		mu.Unlock()
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = old })
	return &n
}

func hoursAgo(h int) *time.Time {
	v := testNow.Add(-time.Duration(h) * time.Hour)
	return &v
}

func TestBriefSummarizesFeedContent(t *testing.T) {
	acq := fakeAcquirer{res: acquire.Result{
		Articles: []article.Article{
			{Title: "Storm closes schools across the region", URL: "https://n.test/1", Source: "BBC",
				Content: "Schools closed on Monday. Roads are flooded in many towns.", PublishedAt: hoursAgo(2)},
			{Title: "Undated story from the wire service", URL: "https://n.test/2", Source: "NPR",
				Content: "A short description of the event today."},
		},
		DateRange: "24 hours",
	}}
	svc := New(acq, nil, nil, summarize.HeuristicSummarizer{}, Options{Now: func() time.Time { return testNow }, Logger: quietLogger()})

	res, err := svc.Brief(context.Background(), Request{Sources: []string{"bbc", "npr"}})
	if err != nil {
		t.Fatalf("Brief: %v", err)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if res.Message != "" || res.Empty() {
		t.Fatalf("unexpected empty result: %+v", res)
	}
	if len(res.Summaries) != 2 {
		t.Fatalf("len = %d, want 2", len(res.Summaries))
	}
	first := res.Summaries[0]
	if first.Summary != "Schools closed on Monday. Roads are flooded in many towns" || first.TimeAgo != "2h ago" {
		t.Errorf("first = %+v", first)
	}
	if res.Summaries[1].TimeAgo != "Recent" {
		t.Errorf("TimeAgo = %q, want Recent", res.Summaries[1].TimeAgo)
	}
	if res.DateRange != "24 hours" || !res.GeneratedAt.Equal(testNow) {
		t.Errorf("DateRange = %q GeneratedAt = %v", res.DateRange, res.GeneratedAt)
	}
}

func TestBriefPropagatesHardErrors(t *testing.T) {
	for _, want := range []error{acquire.ErrInvalidInput, acquire.ErrUnreachable} {
		svc := New(fakeAcquirer{err: want}, nil, nil, nil, Options{Logger: quietLogger()})
		if _, err := svc.Brief(context.Background(), Request{}); !errors.Is(err, want) {
			t.Errorf("err = %v, want %v", err, want)
		}
	}
}

func TestBriefEmptyMessages(t *testing.T) {
	tests := []struct {
		name     string
		keywords string
		res      acquire.Result
		want     []string
	}{
		{
			name:     "keywords widest two weeks",
			keywords: "zzzznonexistent",
			res:      acquire.Result{KeywordSearch: true, Attempted: "2 weeks", DateRange: "24 hours"},
			want:     []string{`"zzzznonexistent"`, "2 weeks", "Try different keywords"},
		},
		{
			name:     "keywords only default window",
			keywords: "economy",
			res:      acquire.Result{KeywordSearch: true, Attempted: "24 hours"},
			want:     []string{`"economy"`, "past 24 hours"},
		},
		{
			name: "no keywords",
			res:  acquire.Result{Attempted: "24 hours"},
			want: []string{"No articles available at the moment"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(fakeAcquirer{res: tt.res}, nil, nil, nil, Options{Logger: quietLogger()})
			res, err := svc.Brief(context.Background(), Request{Sources: []string{"bbc"}, Keywords: tt.keywords})
			if err != nil {
				t.Fatalf("Brief: %v", err)
			}
			if len(res.Summaries) != 0 || res.Summaries == nil {
				t.Errorf("Summaries = %#v, want empty non-nil", res.Summaries)
			}
			for _, w := range tt.want {
				if !strings.Contains(res.Message, w) {
					t.Errorf("Message = %q, want to contain %q", res.Message, w)
				}
			}
		})
	}
}

func TestNoResultsMessageExact(t *testing.T) {
	got := NoResultsMessage("climate", true, "2 weeks")
	want := `No articles found matching keywords: "climate" in the past 2 weeks. Try different keywords, check spelling, or remove keywords for general news.`
	if got != want {
		t.Errorf("message = %q", got)
	}
	if got := NoResultsMessage("climate", true, ""); !strings.Contains(got, "past 24 hours") {
		t.Errorf("message = %q", got)
	}
}

var articlePage = `<html><body><article>
<p>The city council voted on Tuesday to approve the new transit budget after months of debate.</p>
<p>Officials said the plan would add three bus routes and extend service hours on weekends.</p>
<p>Opponents argued the spending was too high, but the measure passed by a vote of seven to two.</p>
<p>Construction on the first route is expected to begin early next year, according to the mayor.</p>
<p>The transit agency said ridership has grown steadily since the pandemic ended and fares stayed flat.</p>
<p>Council members plan to review the budget again in six months to track spending on the program.</p>
</article></body></html>`

func TestBriefEnrichesFullContent(t *testing.T) {
	delays := noSleep(t)
	reg, err := source.NewRegistry(source.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	pages := &fakePages{pages: map[string]string{"https://n.test/transit": articlePage}}
	acq := fakeAcquirer{res: acquire.Result{Articles: []article.Article{
		{Title: "Council approves transit budget", URL: "https://n.test/transit", Source: "BBC", Content: "Short feed blurb."},
		{Title: "Page that cannot be fetched", URL: "https://n.test/missing", Source: "BBC", Content: "Feed text stays here."},
		{Title: "Another page that is missing", URL: "https://n.test/missing-2", Source: "NPR", Content: "Feed text two."},
	}}}
	svc := New(acq, pages, extract.New(reg.SelectorMap(), false, quietLogger()), summarize.HeuristicSummarizer{},
		Options{FullContent: true, Workers: 1, Delay: time.Second, Now: func() time.Time { return testNow }, Logger: quietLogger()})

	res, err := svc.Brief(context.Background(), Request{Sources: []string{"bbc"}})
	if err != nil {
		t.Fatalf("Brief: %v", err)
	}
	if len(res.Summaries) != 3 {
		t.Fatalf("len = %d", len(res.Summaries))
	}
	if !res.Summaries[0].HasFullContent {
		t.Error("first article not enriched")
	}
	if !strings.Contains(res.Summaries[0].Summary, "transit budget") {
		t.Errorf("summary = %q", res.Summaries[0].Summary)
	}
	if res.Summaries[1].HasFullContent || res.Summaries[1].Summary != "Feed text stays here" {
		t.Errorf("second = %+v", res.Summaries[1])
	}
	if len(pages.calls) != 3 {
		t.Errorf("page fetches = %d, want 3", len(pages.calls))
	}
	if *delays != 2 {
		t.Errorf("politeness delays = %d, want 2", *delays)
	}
}

func TestBriefEnrichStopsOnCancel(t *testing.T) {
	noSleep(t)
	pages := &fakePages{pages: map[string]string{}}
	acq := fakeAcquirer{res: acquire.Result{Articles: []article.Article{
		{Title: "First story with a long title", URL: "https://n.test/1", Content: "Feed one text here."},
		{Title: "Second story with a long title", URL: "https://n.test/2", Content: "Feed two text here."},
	}}}
	svc := New(acq, pages, extract.New(nil, false, quietLogger()), nil,
		Options{FullContent: true, Workers: 2, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.Brief(ctx, Request{Sources: []string{"bbc"}})
	if err != nil {
		t.Fatalf("Brief: %v", err)
	}
	if len(res.Summaries) != 2 {
		t.Fatalf("len = %d, want 2", len(res.Summaries))
	}
	if len(pages.calls) != 0 {
		t.Errorf("page fetches = %d, want 0", len(pages.calls))
	}
}

func TestBriefDeadlineBoundsModelSummaries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(700 * time.Millisecond):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	var articles []article.Article
	for i := range 4 {
		articles = append(articles, article.Article{
			Title:   fmt.Sprintf("Council story number %d with a long title", i),
			URL:     fmt.Sprintf("https://n.test/%d", i),
			Source:  "BBC",
			Content: "The council met on Monday. The budget was approved after a long debate.",
		})
	}
	llm := summarize.NewLLM(srv.URL, "", "", 0, summarize.HeuristicSummarizer{}, quietLogger())
	svc := New(fakeAcquirer{res: acquire.Result{Articles: articles}}, nil, nil, llm,
		Options{Now: func() time.Time { return testNow }, Logger: quietLogger()})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := svc.Brief(ctx, Request{Sources: []string{"bbc"}})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Brief: %v", err)
	}
	if elapsed > 600*time.Millisecond {
		t.Errorf("Brief took %v after a 100ms deadline", elapsed)
	}
	if len(res.Summaries) != 4 {
		t.Fatalf("len = %d, want 4", len(res.Summaries))
	}
	want := summarize.HeuristicSummarizer{}.Summarize(context.Background(), articles[0])
	for i, sum := range res.Summaries {
		if sum.Summary != want {
			t.Errorf("summary %d = %q, want heuristic %q", i, sum.Summary, want)
		}
	}
}

func TestNewDisablesFullContentWithoutFetcher(t *testing.T) {
	svc := New(fakeAcquirer{}, nil, nil, nil, Options{FullContent: true})
	if svc.opts.FullContent {
		t.Error("FullContent should be off without a page fetcher")
	}
	if svc.opts.Workers != DefaultWorkers {
		t.Errorf("Workers = %d", svc.opts.Workers)
	}
}
