// Package search reads article candidates from an outlet's own search
// result page.
package search

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/source"
	"github.com/ppiankov/newspan/internal/textnorm"
)

const (
	// MaxResults bounds how many result blocks are read per page.
	MaxResults = 5

	maxTitleLen   = 200
	maxContentLen = 500
	minTitleLen   = 10
)

// Parse returns up to MaxResults articles from the result blocks of page.
// Links are resolved against pageURL and must stay on the outlet's domain.
// Results carry no publication date.
func Parse(page string, src source.Source, pageURL string) []article.Article {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	sel := src.Search.WithDefaults()
	domain := strings.ToLower(sel.Domain)

	var out []article.Article
	doc.Find(sel.Item).EachWithBreak(func(i int, block *goquery.Selection) bool {
		if i >= MaxResults {
			return false
		}
		a, ok := fromBlock(block, sel, base, domain)
		if ok {
			a.Source = src.Tag()
			out = append(out, a)
		}
		return true
	})
	return article.Dedupe(out)
}

func fromBlock(block *goquery.Selection, sel source.Search, base *url.URL, domain string) (article.Article, bool) {
	heading := block.Find(sel.Title).First()
	title := textnorm.Truncate(textnorm.Clean(heading.Text()), maxTitleLen)
	if utf8.RuneCountInString(title) <= minTitleLen {
		return article.Article{}, false
	}

	href, ok := heading.Attr("href")
	if !ok {
		href, ok = heading.Find("a[href]").First().Attr("href")
	}
	if !ok {
		href, ok = block.Find(sel.Link).First().Attr("href")
	}
	if !ok {
		return article.Article{}, false
	}
	link, ok := resolve(base, href, domain)
	if !ok {
		return article.Article{}, false
	}

	content := textnorm.Truncate(textnorm.Clean(block.Find(sel.Summary).First().Text()), maxContentLen)
	if content == "" {
		content = title
	}

	a := article.Article{Title: title, URL: link, Content: content}
	return a, a.Valid()
}

func resolve(base *url.URL, href, domain string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if domain != "" && host != domain && !strings.HasSuffix(host, "."+domain) {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}
