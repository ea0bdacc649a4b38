// Package feed turns RSS 2.0 and Atom documents into candidate articles.
package feed

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/textnorm"
)

const (
	// MaxItems bounds how many entries are read from the top of one feed.
	MaxItems = 5

	maxTitleLen   = 200
	maxContentLen = 500
	minTitleLen   = 10
)

// Parser extracts articles from feed text.
type Parser struct {
	// Now returns the reference time for the recency window.
	Now func() time.Time
}

// NewParser creates a Parser using the wall clock.
func NewParser() *Parser {
	return &Parser{Now: time.Now}
}

// Parse reads up to MaxItems entries from text and returns those with a usable
// title and link that fall inside the 24 hour window, or the 14 day window
// when expanded is set. Entries without a parseable date are kept.
// An error means the document is not a recognizable feed.
func (p *Parser) Parse(text, source string, expanded bool) ([]article.Article, error) {
	f, err := gofeed.NewParser().ParseString(text)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := time.Now
	if p != nil && p.Now != nil {
		now = p.Now
	}
	ref := now()
	window := article.WindowFor(expanded)
	tag := strings.ToUpper(source)

	items := f.Items
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}

	var out []article.Article
	for _, item := range items {
		if item == nil {
			continue
		}
		a, ok := articleFromItem(item, tag)
		if !ok {
			continue
		}
		if !article.WithinWindow(a.PublishedAt, window, ref) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func articleFromItem(item *gofeed.Item, tag string) (article.Article, bool) {
	title := textnorm.Truncate(textnorm.Clean(item.Title), maxTitleLen)
	if utf8.RuneCountInString(title) <= minTitleLen {
		return article.Article{}, false
	}

	a := article.Article{
		Title:       title,
		URL:         itemLink(item),
		Content:     itemContent(item, title),
		Source:      tag,
		PublishedAt: itemPublished(item),
	}
	if !a.Valid() {
		return article.Article{}, false
	}
	return a, true
}

func itemLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	for _, l := range item.Links {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

func itemContent(item *gofeed.Item, title string) string {
	for _, raw := range []string{item.Description, item.Content} {
		if text := textnorm.Clean(raw); text != "" {
			return textnorm.Truncate(text, maxContentLen)
		}
	}
	return title
}

// itemPublished prefers the publication date over the update date, then
// tries to parse the raw strings gofeed could not.
func itemPublished(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}

	raw := []string{item.Published, item.Updated}
	if item.DublinCoreExt != nil {
		raw = append(raw, item.DublinCoreExt.Date...)
	}
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if t, err := dateparse.ParseAny(s); err == nil {
			return &t
		}
	}
	return nil
}
