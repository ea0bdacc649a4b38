package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/newspan/internal/source"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu    sync.Mutex
	feeds map[string]string
	pages map[string]string
	delay map[string]time.Duration
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		feeds: make(map[string]string),
		pages: make(map[string]string),
		delay: make(map[string]time.Duration),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) get(ctx context.Context, m map[string]string, u string) (string, error) {
	f.mu.Lock()
	f.calls[u]++
	body, ok := m[u]
	d := f.delay[u]
	f.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if !ok {
		return "", fmt.Errorf("%s: HTTP 404", u)
	}
	return body, nil
}

func (f *fakeFetcher) FetchFeed(ctx context.Context, u string) (string, error) {
	return f.get(ctx, f.feeds, u)
}

func (f *fakeFetcher) FetchPage(ctx context.Context, u string) (string, error) {
	return f.get(ctx, f.pages, u)
}

func (f *fakeFetcher) callCount(u string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[u]
}

type item struct {
	title string
	link  string
	desc  string
	age   time.Duration
}

func rss(items ...item) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>`)
	for _, it := range items {
		fmt.Fprintf(&b, "<item><title>%s</title><link>%s</link><description>%s</description>", it.title, it.link, it.desc)
		if it.age >= 0 {
			fmt.Fprintf(&b, "<pubDate>%s</pubDate>", testNow.Add(-it.age).Format(time.RFC1123Z))
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func testSource(id string, feeds ...string) source.Source {
	return source.Source{
		ID:    id,
		Feeds: feeds,
		Search: source.Search{
			URL:    "https://search.test/" + id + "?q={query}",
			Domain: "news.test",
		},
	}
}

func newTestOrchestrator(t *testing.T, f Fetcher, sources ...source.Source) *Orchestrator {
	t.Helper()
	reg, err := source.NewRegistry(sources)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return New(f, reg, Options{
		Now:    func() time.Time { return testNow },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func urls(r Result) []string {
	var out []string
	for _, a := range r.Articles {
		out = append(out, a.URL)
	}
	return out
}

func TestAcquireNoKeywords(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://a.test/rss"] = rss(
		item{"Alpha story number one today", "https://news.test/a1", "x", time.Hour},
		item{"Alpha story number two today", "https://news.test/a2", "x", 2 * time.Hour},
	)
	f.feeds["https://b.test/rss"] = rss(
		item{"Beta story number one today", "https://news.test/b1", "x", time.Hour},
	)
	o := newTestOrchestrator(t, f, testSource("alpha", "https://a.test/rss"), testSource("beta", "https://b.test/rss"))

	res, err := o.Acquire(context.Background(), []string{"alpha", "beta"}, "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	want := "https://news.test/a1,https://news.test/a2,https://news.test/b1"
	if got := strings.Join(urls(res), ","); got != want {
		t.Errorf("urls = %s, want %s", got, want)
	}
	if res.DateRange != "24 hours" || res.KeywordSearch {
		t.Errorf("DateRange = %q, KeywordSearch = %v", res.DateRange, res.KeywordSearch)
	}
	if res.Articles[2].Source != "BETA" {
		t.Errorf("Source = %q", res.Articles[2].Source)
	}
}

func TestAcquireInvalidInput(t *testing.T) {
	o := newTestOrchestrator(t, newFakeFetcher(), testSource("alpha", "https://a.test/rss"))

	for _, ids := range [][]string{nil, {}, {"unknown"}} {
		if _, err := o.Acquire(context.Background(), ids, ""); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Acquire(%v) err = %v, want ErrInvalidInput", ids, err)
		}
	}
}

func TestAcquireUnreachable(t *testing.T) {
	o := newTestOrchestrator(t, newFakeFetcher(), testSource("alpha", "https://a.test/rss", "https://a.test/rss2"))

	_, err := o.Acquire(context.Background(), []string{"alpha"}, "")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}

func TestAcquireSkipsFailedSources(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://b.test/rss"] = rss(item{"Beta story number one today", "https://news.test/b1", "x", time.Hour})
	f.feeds["https://c.test/rss"] = "this is not a feed"
	o := newTestOrchestrator(t, f,
		testSource("alpha", "https://a.test/rss"),
		testSource("beta", "https://b.test/rss"),
		testSource("gamma", "https://c.test/rss"),
	)

	res, err := o.Acquire(context.Background(), []string{"alpha", "beta", "gamma", "unknown"}, "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := urls(res); len(got) != 1 || got[0] != "https://news.test/b1" {
		t.Errorf("urls = %v", got)
	}
}

func TestAcquireEnoughMatchesStopsEarly(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://a.test/rss"] = rss(
		item{"Economy grows in first quarter", "https://news.test/1", "x", time.Hour},
		item{"Economy outlook improves again", "https://news.test/2", "x", time.Hour},
		item{"Weather turns cold this weekend", "https://news.test/3", "economy impact", time.Hour},
	)
	o := newTestOrchestrator(t, f, testSource("alpha", "https://a.test/rss"))

	res, err := o.Acquire(context.Background(), []string{"alpha"}, "economy")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(res.Articles) != 3 || res.DateRange != "24 hours" || !res.KeywordSearch {
		t.Errorf("res = %+v", res)
	}
	if n := f.callCount("https://a.test/rss"); n != 1 {
		t.Errorf("feed fetched %d times, want 1", n)
	}
	if n := f.callCount("https://search.test/alpha?q=economy"); n != 0 {
		t.Errorf("search fetched %d times, want 0", n)
	}
}

func TestAcquireExpandsWindow(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://a.test/rss"] = rss(
		item{"Economy grows faster than expected", "https://news.test/recent", "x", time.Hour},
		item{"Economy minister resigns over scandal", "https://news.test/old", "x", 72 * time.Hour},
		item{"Football final tonight in the city", "https://news.test/sport", "x", time.Hour},
	)
	o := newTestOrchestrator(t, f, testSource("alpha", "https://a.test/rss"))

	res, err := o.Acquire(context.Background(), []string{"alpha"}, "economy")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := strings.Join(urls(res), ","); got != "https://news.test/recent,https://news.test/old" {
		t.Errorf("urls = %s", got)
	}
	if res.DateRange != "2 weeks" || res.Attempted != "2 weeks" {
		t.Errorf("DateRange = %q, Attempted = %q", res.DateRange, res.Attempted)
	}
	if n := f.callCount("https://search.test/alpha?q=economy"); n != 1 {
		t.Errorf("search fetched %d times, want 1", n)
	}
}

func TestAcquireKeepsOriginalOnEqualExpansion(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://a.test/rss"] = rss(
		item{"Economy grows faster than expected", "https://news.test/recent", "x", time.Hour},
		item{"Football final tonight in the city", "https://news.test/sport", "x", 72 * time.Hour},
	)
	o := newTestOrchestrator(t, f, testSource("alpha", "https://a.test/rss"))

	res, err := o.Acquire(context.Background(), []string{"alpha"}, "economy")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(res.Articles) != 1 {
		t.Fatalf("len = %d, want 1", len(res.Articles))
	}
	if res.DateRange != "24 hours" {
		t.Errorf("DateRange = %q, want 24 hours", res.DateRange)
	}
	if res.Attempted != "2 weeks" {
		t.Errorf("Attempted = %q, want 2 weeks", res.Attempted)
	}
}

func TestAcquireSiteSearchFallbackDedupes(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://a.test/rss"] = rss(
		item{"Climate summit opens in Geneva", "https://news.test/feed-1", "x", time.Hour},
	)
	f.pages["https://search.test/alpha?q=climate"] = `<html><body>
<article><h2><a href="https://news.test/feed-1">Climate summit opens in Geneva</a></h2></article>
<article><h2><a href="/search-2">Climate funding pledges fall short</a></h2><p>Donors hesitated.</p></article>
<article><h2><a href="https://elsewhere.test/x">Climate story on another site</a></h2></article>
</body></html>`
	src := testSource("alpha", "https://a.test/rss")
	src.Search.Domain = "test"
	o := newTestOrchestrator(t, f, src)

	res, err := o.Acquire(context.Background(), []string{"alpha"}, "climate")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	want := "https://news.test/feed-1,https://search.test/search-2,https://elsewhere.test/x"
	if got := strings.Join(urls(res), ","); got != want {
		t.Errorf("urls = %s, want %s", got, want)
	}
	if res.DateRange != "website search" {
		t.Errorf("DateRange = %q", res.DateRange)
	}
	if res.Attempted != "2 weeks" {
		t.Errorf("Attempted = %q", res.Attempted)
	}
}

func TestAcquireNoMatchesAnywhere(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://a.test/rss"] = rss(item{"Football final tonight in the city", "https://news.test/1", "x", time.Hour})
	o := newTestOrchestrator(t, f, testSource("alpha", "https://a.test/rss"))

	res, err := o.Acquire(context.Background(), []string{"alpha"}, "zzzznonexistent")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(res.Articles) != 0 {
		t.Errorf("articles = %v", urls(res))
	}
	if res.Attempted != "2 weeks" || res.DateRange != "24 hours" {
		t.Errorf("Attempted = %q, DateRange = %q", res.Attempted, res.DateRange)
	}
}

// cancelOnSecondFetch serves body once, then cancels the acquisition
// before answering any later fetch.
type cancelOnSecondFetch struct {
	mu     sync.Mutex
	body   string
	calls  int
	cancel context.CancelFunc
}

func (f *cancelOnSecondFetch) FetchFeed(ctx context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n == 1 {
		return f.body, nil
	}
	f.cancel()
	return "", ctx.Err()
}

func (f *cancelOnSecondFetch) FetchPage(ctx context.Context, _ string) (string, error) {
	return "", ctx.Err()
}

func TestAcquireCanceledExpansionKeepsAttemptedWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &cancelOnSecondFetch{
		body:   rss(item{"Football final tonight in the city", "https://news.test/1", "x", time.Hour}),
		cancel: cancel,
	}
	o := newTestOrchestrator(t, f, testSource("alpha", "https://a.test/rss"))

	res, err := o.Acquire(ctx, []string{"alpha"}, "volcano")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(res.Articles) != 0 {
		t.Errorf("articles = %v", urls(res))
	}
	if res.Attempted != "24 hours" {
		t.Errorf("Attempted = %q, want 24 hours", res.Attempted)
	}
}

func TestAcquireCapsAndDedupes(t *testing.T) {
	f := newFakeFetcher()
	var sources []source.Source
	var ids []string
	for s := range 3 {
		id := fmt.Sprintf("src%d", s)
		var items []item
		for i := range 5 {
			items = append(items, item{
				title: fmt.Sprintf("Story %d from source %d today", i, s),
				link:  fmt.Sprintf("https://news.test/%d/%d", s, i),
				desc:  "x",
				age:   time.Hour,
			})
		}
		primary := "https://" + id + ".test/rss"
		mirror := "https://" + id + ".test/mirror"
		f.feeds[primary] = rss(items...)
		f.feeds[mirror] = rss(items[:2]...)
		sources = append(sources, testSource(id, primary, mirror))
		ids = append(ids, id)
	}
	o := newTestOrchestrator(t, f, sources...)

	res, err := o.Acquire(context.Background(), ids, "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(res.Articles) != 10 {
		t.Fatalf("len = %d, want 10", len(res.Articles))
	}
	seen := make(map[string]bool)
	for _, a := range res.Articles {
		if seen[a.URL] {
			t.Errorf("duplicate url %s", a.URL)
		}
		seen[a.URL] = true
	}
	if res.Articles[5].URL != "https://news.test/1/0" {
		t.Errorf("Articles[5] = %s, want first item of second source", res.Articles[5].URL)
	}
}

func TestAcquireAltFeeds(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://a.test/rss"] = rss(item{"Stale story from last month", "https://news.test/old", "x", 30 * 24 * time.Hour})
	f.feeds["https://a.test/alt1"] = rss(
		item{"Alternative story number one", "https://news.test/alt-1", "x", time.Hour},
		item{"Alternative story number two", "https://news.test/alt-2", "x", time.Hour},
		item{"Alternative story number three", "https://news.test/alt-3", "x", time.Hour},
	)
	f.feeds["https://a.test/alt2"] = rss(item{"Never needed alternative story", "https://news.test/alt-4", "x", time.Hour})
	src := testSource("alpha", "https://a.test/rss")
	src.AltFeeds = []string{"https://a.test/alt1", "https://a.test/alt2"}
	o := newTestOrchestrator(t, f, src)

	res, err := o.Acquire(context.Background(), []string{"alpha"}, "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(res.Articles) != 3 {
		t.Errorf("len = %d, want 3: %v", len(res.Articles), urls(res))
	}
	if n := f.callCount("https://a.test/alt2"); n != 0 {
		t.Errorf("second alt feed fetched %d times, want 0", n)
	}
}

func TestAcquireDeterministicOrder(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://a.test/rss"] = rss(item{"Slow source headline today", "https://news.test/slow", "x", time.Hour})
	f.feeds["https://b.test/rss"] = rss(item{"Fast source headline today", "https://news.test/fast", "x", time.Hour})
	f.delay["https://a.test/rss"] = 50 * time.Millisecond
	o := newTestOrchestrator(t, f, testSource("slow", "https://a.test/rss"), testSource("fast", "https://b.test/rss"))

	res, err := o.Acquire(context.Background(), []string{"slow", "fast"}, "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := strings.Join(urls(res), ","); got != "https://news.test/slow,https://news.test/fast" {
		t.Errorf("urls = %s", got)
	}
}

func TestAcquireCanceledContext(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://a.test/rss"] = rss(item{"Story that is never fetched", "https://news.test/1", "x", time.Hour})
	o := newTestOrchestrator(t, f, testSource("alpha", "https://a.test/rss"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := o.Acquire(ctx, []string{"alpha"}, "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(res.Articles) != 0 {
		t.Errorf("articles = %v", urls(res))
	}
}

func TestAcquireTimeoutReturnsPartial(t *testing.T) {
	f := newFakeFetcher()
	f.feeds["https://a.test/rss"] = rss(item{"Fast source headline today", "https://news.test/fast", "x", time.Hour})
	f.feeds["https://b.test/rss"] = rss(item{"Slow source headline today", "https://news.test/slow", "x", time.Hour})
	f.delay["https://b.test/rss"] = 5 * time.Second
	o := newTestOrchestrator(t, f, testSource("fast", "https://a.test/rss"), testSource("slow", "https://b.test/rss"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res, err := o.Acquire(ctx, []string{"fast", "slow"}, "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := urls(res); len(got) != 1 || got[0] != "https://news.test/fast" {
		t.Errorf("urls = %v", got)
	}
}
