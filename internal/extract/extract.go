// Package extract isolates the main body text of an article page.
package extract

import (
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/ppiankov/newspan/internal/source"
	"github.com/ppiankov/newspan/internal/textnorm"
)

const (
	// MaxLength bounds extracted text.
	MaxLength = 3000

	minSelectorText = 200
	minSelectorPara = 20
	minFallbackPara = 30
	minValidLength  = 300
	minSentences    = 3
	minSentenceLen  = 10
	maxBadPhrases   = 2
)

// boilerplateParagraph marks paragraphs skipped by the site-wide fallback.
var boilerplateParagraph = []string{
	"cookie",
	"subscribe",
	"newsletter",
	"advertisement",
	"follow us",
	"share this",
	"related articles",
}

// nonArticlePhrases count against a candidate during validation.
var nonArticlePhrases = []string{
	"click here",
	"subscribe now",
	"advertisement",
	"sponsored content",
	"follow us on",
	"share this article",
	"related stories",
	"trending now",
}

// Extractor pulls article text out of HTML using per-source selectors.
type Extractor struct {
	selectors   map[string][]string
	readability bool
	logger      *slog.Logger
}

// New creates an Extractor. selectors maps an uppercase source tag to its
// ordered selector list; sources without an entry use source.GenericSelectors.
// When useReadability is set, pages whose selector and paragraph candidates
// fail validation get one more attempt through go-readability.
func New(selectors map[string][]string, useReadability bool, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[string][]string, len(selectors))
	for k, v := range selectors {
		m[strings.ToUpper(k)] = v
	}
	return &Extractor{selectors: m, readability: useReadability, logger: logger}
}

// Extract returns the cleaned body text of page, or false when nothing
// passing validation could be isolated.
func (e *Extractor) Extract(page, src, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		e.logger.Debug("extract: parse html", "url", pageURL, "err", err)
		return "", false
	}

	candidate := fromSelectors(doc, e.selectorsFor(src))
	if candidate == "" {
		candidate = fromParagraphs(doc)
	}
	if text, ok := finish(candidate); ok {
		return text, true
	}

	if e.readability {
		if text, ok := e.fromReadability(page, pageURL); ok {
			return text, true
		}
	}
	return "", false
}

func (e *Extractor) selectorsFor(src string) []string {
	if sels, ok := e.selectors[strings.ToUpper(src)]; ok && len(sels) > 0 {
		return sels
	}
	return source.GenericSelectors
}

// fromSelectors returns the text of the first selector whose matches add up
// to at least minSelectorText characters.
func fromSelectors(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		var parts []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := textnorm.CollapseSpace(s.Text())
			if utf8.RuneCountInString(text) > minSelectorPara {
				parts = append(parts, text)
			}
		})
		joined := strings.Join(parts, " ")
		if utf8.RuneCountInString(joined) >= minSelectorText {
			return joined
		}
	}
	return ""
}

// fromParagraphs joins every paragraph on the page that is long enough and
// free of boilerplate phrases.
func fromParagraphs(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := textnorm.CollapseSpace(s.Text())
		if utf8.RuneCountInString(text) < minFallbackPara {
			return
		}
		lower := strings.ToLower(text)
		for _, phrase := range boilerplateParagraph {
			if strings.Contains(lower, phrase) {
				return
			}
		}
		parts = append(parts, text)
	})
	return strings.Join(parts, " ")
}

func (e *Extractor) fromReadability(page, pageURL string) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	art, err := readability.FromReader(strings.NewReader(page), u)
	if err != nil {
		e.logger.Debug("extract: readability", "url", pageURL, "err", err)
		return "", false
	}
	return finish(art.TextContent)
}

func finish(candidate string) (string, bool) {
	if candidate == "" {
		return "", false
	}
	cleaned := Clean(candidate)
	if !Validate(cleaned) {
		return "", false
	}
	return textnorm.Truncate(cleaned, MaxLength), true
}
