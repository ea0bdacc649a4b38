// Package article defines the transient article and summary records that flow
// through acquisition and summarization.
package article

import (
	"strings"
	"time"
)

// Article is a candidate news item discovered in a feed or a site search page.
type Article struct {
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Content        string     `json:"content"`
	Source         string     `json:"source"`
	PublishedAt    *time.Time `json:"publishedDate"`
	HasFullContent bool       `json:"hasFullContent"`
}

// Valid reports whether the article has a title and an absolute HTTP(S) link.
func (a Article) Valid() bool {
	if strings.TrimSpace(a.Title) == "" {
		return false
	}
	return IsHTTPURL(a.URL)
}

// IsHTTPURL reports whether u starts with an http or https scheme.
func IsHTTPURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Summary is the caller-facing result derived from one Article.
type Summary struct {
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Source         string     `json:"source"`
	Summary        string     `json:"summary"`
	TimeAgo        string     `json:"timeAgo"`
	HasFullContent bool       `json:"hasFullContent"`
	PublishedAt    *time.Time `json:"publishedDate,omitempty"`
}

// Dedupe drops every article whose URL was already seen, keeping the first
// occurrence and the original order.
func Dedupe(articles []Article) []Article {
	if len(articles) == 0 {
		return articles
	}
	seen := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.URL]; ok {
			continue
		}
		seen[a.URL] = struct{}{}
		out = append(out, a)
	}
	return out
}
