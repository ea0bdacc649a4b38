package digest

import (
	"encoding/json"
	"io"
	"time"
)

type jsonDigest struct {
	Meta     jsonMeta   `json:"meta"`
	Articles []jsonItem `json:"articles"`
	Message  string     `json:"message,omitempty"`
}

type jsonMeta struct {
	Count         int    `json:"count"`
	DateRange     string `json:"date_range,omitempty"`
	Keywords      string `json:"keywords,omitempty"`
	KeywordSearch bool   `json:"keyword_search"`
	GeneratedAt   string `json:"generated_at,omitempty"`
}

type jsonItem struct {
	Title          string `json:"title"`
	URL            string `json:"url"`
	Source         string `json:"source"`
	Summary        string `json:"summary"`
	TimeAgo        string `json:"time_ago"`
	PublishedAt    string `json:"published_at,omitempty"`
	HasFullContent bool   `json:"has_full_content"`
}

// JSONFormatter formats summaries as JSON.
type JSONFormatter struct{}

func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) Format(w io.Writer, input Input) error {
	out := jsonDigest{
		Meta: jsonMeta{
			Count:         len(input.Items),
			DateRange:     input.DateRange,
			Keywords:      input.Keywords,
			KeywordSearch: input.KeywordSearch,
		},
		Articles: make([]jsonItem, 0, len(input.Items)),
		Message:  input.Message,
	}
	if !input.GeneratedAt.IsZero() {
		out.Meta.GeneratedAt = input.GeneratedAt.UTC().Format(time.RFC3339)
	}

	for _, item := range input.Items {
		ji := jsonItem{
			Title:          item.Title,
			URL:            item.URL,
			Source:         item.Source,
			Summary:        item.Summary,
			TimeAgo:        item.TimeAgo,
			HasFullContent: item.HasFullContent,
		}
		if item.PublishedAt != nil {
			ji.PublishedAt = item.PublishedAt.UTC().Format(time.RFC3339)
		}
		out.Articles = append(out.Articles, ji)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
