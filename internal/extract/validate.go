package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/newspan/internal/textnorm"
)

var (
	disallowedRe = regexp.MustCompile(`[^\w\s.,!?;:'"()-]`)
	sentenceRe   = regexp.MustCompile(`[.!?]+`)
)

// Clean collapses whitespace and drops characters outside plain prose punctuation.
func Clean(text string) string {
	text = textnorm.CollapseSpace(text)
	text = disallowedRe.ReplaceAllString(text, "")
	return textnorm.CollapseSpace(text)
}

// Validate reports whether text looks like an article body: long enough,
// several real sentences, and at most two boilerplate phrases.
func Validate(text string) bool {
	if utf8.RuneCountInString(text) < minValidLength {
		return false
	}

	sentences := 0
	for _, s := range sentenceRe.Split(text, -1) {
		if len(strings.TrimSpace(s)) > minSentenceLen {
			sentences++
		}
	}
	if sentences < minSentences {
		return false
	}

	lower := strings.ToLower(text)
	bad := 0
	for _, phrase := range nonArticlePhrases {
		if strings.Contains(lower, phrase) {
			bad++
		}
	}
	return bad <= maxBadPhrases
}
