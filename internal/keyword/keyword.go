// Package keyword filters articles by user supplied keyword tokens.
package keyword

import (
	"regexp"
	"strings"

	"github.com/ppiankov/newspan/internal/article"
)

// minTokenLen is the shortest token that counts; shorter ones are dropped.
const minTokenLen = 3

var separatorRe = regexp.MustCompile(`[,\s]+`)

// Tokenize lowercases keywords, splits on commas and whitespace and drops
// tokens shorter than three characters.
func Tokenize(keywords string) []string {
	var tokens []string
	for _, tok := range separatorRe.Split(strings.ToLower(keywords), -1) {
		if len(tok) >= minTokenLen {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Filter keeps the articles whose title or content contains any token.
// Blank keywords return the input unchanged.
func Filter(articles []article.Article, keywords string) []article.Article {
	tokens := Tokenize(keywords)
	if len(tokens) == 0 {
		return articles
	}

	out := make([]article.Article, 0, len(articles))
	for _, a := range articles {
		if len(Matched(a, tokens)) > 0 {
			out = append(out, a)
		}
	}
	return out
}

// Matched returns the tokens found in the article, in token order.
func Matched(a article.Article, tokens []string) []string {
	text := strings.ToLower(a.Title + " " + a.Content)
	var hits []string
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			hits = append(hits, tok)
		}
	}
	return hits
}
