package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/newspan/internal/acquire"
	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/brief"
	"github.com/ppiankov/newspan/internal/source"
	"github.com/ppiankov/newspan/internal/store"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeBriefer struct {
	res  brief.Result
	err  error
	reqs []brief.Request
}

func (f *fakeBriefer) Brief(_ context.Context, req brief.Request) (brief.Result, error) {
	f.reqs = append(f.reqs, req)
	return f.res, f.err
}

type fakeHistory struct {
	entries []store.Entry
	runs    []store.Run
	filters []store.Filter
	cleared bool
}

func (f *fakeHistory) SaveRun(_ context.Context, run store.Run, summaries []article.Summary) (int, error) {
	f.runs = append(f.runs, run)
	for _, s := range summaries {
		f.entries = append(f.entries, store.Entry{Summary: s, SavedAt: run.CreatedAt, RunID: run.ID})
	}
	return len(summaries), nil
}

func (f *fakeHistory) List(_ context.Context, filter store.Filter) ([]store.Entry, error) {
	f.filters = append(f.filters, filter)
	return f.entries, nil
}

func (f *fakeHistory) Stats(context.Context, time.Time) (store.Stats, error) {
	return store.Stats{
		Total:     len(f.entries),
		Today:     1,
		Sources:   1,
		Runs:      len(f.runs),
		BySource:  []store.SourceCount{{Source: "BBC", Count: len(f.entries)}},
		LastSaved: testNow.Add(-2 * time.Hour),
	}, nil
}

func (f *fakeHistory) Clear(context.Context) (int64, error) {
	n := int64(len(f.entries))
	f.entries = nil
	f.cleared = true
	return n, nil
}

func newTestServer(b Briefer, h History) *Server {
	gin.SetMode(gin.TestMode)
	return New(b, h, Options{
		Sources:        source.Defaults(),
		DefaultSources: []string{"bbc"},
		Now:            func() time.Time { return testNow },
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func do(t *testing.T, srv *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func sampleSummaries() []article.Summary {
	return []article.Summary{
		{Title: "Storm closes coastal roads", URL: "https://bbc.test/storm", Source: "BBC", Summary: "Roads shut.", TimeAgo: "1h ago"},
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&fakeBriefer{}, nil), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := do(t, newTestServer(&fakeBriefer{}, nil), http.MethodOptions, "/api/brief", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Fatal("expected POST in allowed methods")
	}
}

func TestSources(t *testing.T) {
	rec := do(t, newTestServer(&fakeBriefer{}, nil), http.MethodGet, "/api/sources", nil)
	var out struct {
		Sources []sourceView `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Sources) != 5 {
		t.Fatalf("expected 5 sources, got %d", len(out.Sources))
	}
	if out.Sources[0].ID != "bbc" || !out.Sources[0].Search {
		t.Fatalf("unexpected first source: %+v", out.Sources[0])
	}
}

func TestBrief_SavesAndReturns(t *testing.T) {
	b := &fakeBriefer{res: brief.Result{
		RunID:       "run-1",
		Summaries:   sampleSummaries(),
		DateRange:   article.LabelDefault,
		GeneratedAt: testNow,
	}}
	h := &fakeHistory{}
	srv := newTestServer(b, h)

	rec := do(t, srv, http.MethodPost, "/api/brief", strings.NewReader(`{"keywords":"storm"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var out struct {
		RunID     string            `json:"runId"`
		Summaries []article.Summary `json:"summaries"`
		Saved     int               `json:"saved"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.RunID != "run-1" || len(out.Summaries) != 1 || out.Saved != 1 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if len(b.reqs) != 1 || strings.Join(b.reqs[0].Sources, ",") != "bbc" {
		t.Fatalf("expected default sources, got %+v", b.reqs)
	}
	if len(h.runs) != 1 || h.runs[0].ID != "run-1" {
		t.Fatalf("expected run saved, got %+v", h.runs)
	}
}

func TestBrief_EmptyResultNotSaved(t *testing.T) {
	b := &fakeBriefer{res: brief.Result{RunID: "run-2", Summaries: []article.Summary{}, Message: "No articles available"}}
	h := &fakeHistory{}

	rec := do(t, newTestServer(b, h), http.MethodPost, "/api/brief", strings.NewReader(`{"sources":["npr"]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(h.runs) != 0 {
		t.Fatal("empty brief should not be saved")
	}
	if !strings.Contains(rec.Body.String(), "No articles available") {
		t.Fatalf("expected message, got %s", rec.Body.String())
	}
}

func TestBrief_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"invalid input", `{}`, acquire.ErrInvalidInput, http.StatusBadRequest},
		{"unreachable", `{}`, acquire.ErrUnreachable, http.StatusBadGateway},
		{"other", `{}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(&fakeBriefer{err: tt.err}, nil), http.MethodPost, "/api/brief", strings.NewReader(tt.body))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestArticles_ListAndFilters(t *testing.T) {
	h := &fakeHistory{entries: []store.Entry{{ID: 1, Summary: sampleSummaries()[0], SavedAt: testNow}}}
	srv := newTestServer(&fakeBriefer{}, h)

	rec := do(t, srv, http.MethodGet, "/api/articles?q=storm&source=bbc&period=today&limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Articles []store.Entry `json:"articles"`
		Count    int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 1 || out.Articles[0].Title != "Storm closes coastal roads" {
		t.Fatalf("unexpected response: %+v", out)
	}

	f := h.filters[0]
	if f.Query != "storm" || f.Source != "bbc" || f.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if !f.Since.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected since: %v", f.Since)
	}
}

func TestArticles_BadQuery(t *testing.T) {
	srv := newTestServer(&fakeBriefer{}, &fakeHistory{})
	for _, target := range []string{"/api/articles?period=decade", "/api/articles?limit=-1", "/api/articles?limit=x"} {
		rec := do(t, srv, http.MethodGet, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestArticles_EmptyListIsArray(t *testing.T) {
	rec := do(t, newTestServer(&fakeBriefer{}, &fakeHistory{}), http.MethodGet, "/api/articles", nil)
	if !strings.Contains(rec.Body.String(), `"articles":[]`) {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestArticles_Clear(t *testing.T) {
	h := &fakeHistory{entries: []store.Entry{{ID: 1}, {ID: 2}}}
	rec := do(t, newTestServer(&fakeBriefer{}, h), http.MethodDelete, "/api/articles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !h.cleared || !strings.Contains(rec.Body.String(), `"deleted":2`) {
		t.Fatalf("unexpected clear: %s", rec.Body.String())
	}
}

func TestHistoryDisabled(t *testing.T) {
	srv := newTestServer(&fakeBriefer{}, nil)
	for _, target := range []string{"/api/articles", "/api/stats", "/api/export"} {
		rec := do(t, srv, http.MethodGet, target, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestStats(t *testing.T) {
	h := &fakeHistory{entries: []store.Entry{{ID: 1}}, runs: []store.Run{{ID: "r"}}}
	rec := do(t, newTestServer(&fakeBriefer{}, h), http.MethodGet, "/api/stats", nil)

	var out statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 1 || out.Today != 1 || out.Runs != 1 {
		t.Fatalf("unexpected stats: %+v", out)
	}
	if out.LastSaved != "2h ago" {
		t.Fatalf("last saved = %q", out.LastSaved)
	}
}

func TestExport_CSV(t *testing.T) {
	h := &fakeHistory{entries: []store.Entry{{ID: 1, Summary: sampleSummaries()[0], SavedAt: testNow}}}
	rec := do(t, newTestServer(&fakeBriefer{}, h), http.MethodGet, "/api/export?format=csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %s", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "newspan-2026-03-10.csv") {
		t.Fatalf("content disposition = %s", cd)
	}

	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 || records[1][3] != "https://bbc.test/storm" {
		t.Fatalf("unexpected records: %v", records)
	}
	if records[1][4] != "Recent" {
		t.Fatalf("expected undated row to read Recent, got %q", records[1][4])
	}
}

func TestExport_BadFormat(t *testing.T) {
	srv := newTestServer(&fakeBriefer{}, &fakeHistory{})
	for _, format := range []string{"pdf", "terminal"} {
		rec := do(t, srv, http.MethodGet, "/api/export?format="+format, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", format, rec.Code)
		}
	}
}
