// Package source holds the news outlet table: feeds, content selectors and
// native search settings for each source identifier.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Source describes one news outlet.
type Source struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Feeds     []string `yaml:"feeds" json:"feeds"`
	AltFeeds  []string `yaml:"alt_feeds,omitempty" json:"altFeeds,omitempty"`
	Selectors []string `yaml:"selectors,omitempty" json:"selectors,omitempty"`
	Search    Search   `yaml:"search,omitempty" json:"search,omitempty"`
}

// Search describes an outlet's native search page and how to read result blocks from it.
type Search struct {
	// URL contains a {query} placeholder replaced with the escaped keywords.
	URL     string `yaml:"url" json:"url"`
	Domain  string `yaml:"domain" json:"domain"`
	Item    string `yaml:"item,omitempty" json:"item,omitempty"`
	Title   string `yaml:"title,omitempty" json:"title,omitempty"`
	Link    string `yaml:"link,omitempty" json:"link,omitempty"`
	Summary string `yaml:"summary,omitempty" json:"summary,omitempty"`
}

// Default result-block selectors used when a Search leaves them empty.
const (
	DefaultSearchItem    = "article"
	DefaultSearchTitle   = "h1, h2, h3, h4, h5, h6"
	DefaultSearchLink    = "a[href]"
	DefaultSearchSummary = "p"
)

const queryPlaceholder = "{query}"

// Tag returns the uppercase canonical tag attached to articles.
func (s Source) Tag() string {
	return strings.ToUpper(s.ID)
}

// DisplayName returns Name, or the tag when no name is configured.
func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Tag()
}

// SearchURL builds the outlet search URL for query. It reports false when the
// outlet has no search template or the query is blank.
func (s Source) SearchURL(query string) (string, bool) {
	query = strings.TrimSpace(query)
	if s.Search.URL == "" || query == "" {
		return "", false
	}
	return strings.ReplaceAll(s.Search.URL, queryPlaceholder, url.QueryEscape(query)), true
}

// WithDefaults fills empty search selectors.
func (s Search) WithDefaults() Search {
	if s.Item == "" {
		s.Item = DefaultSearchItem
	}
	if s.Title == "" {
		s.Title = DefaultSearchTitle
	}
	if s.Link == "" {
		s.Link = DefaultSearchLink
	}
	if s.Summary == "" {
		s.Summary = DefaultSearchSummary
	}
	return s
}

func (s Source) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("source id is required")
	}
	if len(s.Feeds) == 0 {
		return fmt.Errorf("source %s: at least one feed URL is required", s.ID)
	}
	for _, f := range append(append([]string{}, s.Feeds...), s.AltFeeds...) {
		u, err := url.Parse(f)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("source %s: invalid feed URL %q", s.ID, f)
		}
	}
	if s.Search.URL != "" && !strings.Contains(s.Search.URL, queryPlaceholder) {
		return fmt.Errorf("source %s: search url must contain %s", s.ID, queryPlaceholder)
	}
	return nil
}
