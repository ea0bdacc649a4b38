package summarize

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/textnorm"
)

const (
	fullContentMin    = 500
	minScoredSentence = 15
	minPlainSentence  = 10
	minTitleWord      = 4
	maxKeyPoints      = 4
	minKeyPoints      = 2
	leadSentences     = 3
	plainSentences    = 2
	truncateLen       = 150
	shortSentence     = 50
	longSentence      = 200

	moreDetailsNotice = " Additional details available in full article."
)

// newsSignals are words that tend to mark reported facts.
var newsSignals = []string{
	"said", "announced", "reported", "according to", "officials",
	"government", "president", "minister", "spokesperson", "confirmed",
	"revealed", "stated", "investigation", "policy", "decision",
	"agreement", "deal", "plan", "program",
}

var (
	sentenceRe    = regexp.MustCompile(`[^.!?]+[.!?]*`)
	terminatorsRe = regexp.MustCompile(`[.!?]+`)
)

// HeuristicSummarizer builds extractive summaries without external services.
type HeuristicSummarizer struct{}

// Summarize scores sentences against the title when the article carries
// extracted page text, and otherwise returns the lead sentences.
func (HeuristicSummarizer) Summarize(_ context.Context, a article.Article) string {
	content := strings.TrimSpace(a.Content)
	if content == "" {
		content = strings.TrimSpace(a.Title)
	}
	if a.HasFullContent && utf8.RuneCountInString(content) > fullContentMin {
		return keyPointSummary(a.Title, content)
	}
	return leadSummary(content)
}

type scoredSentence struct {
	text  string
	score int
}

func keyPointSummary(title, content string) string {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return textnorm.Ellipsize(content, truncateLen)
	}

	titleWords := significantWords(title)
	var ranked []scoredSentence
	for _, s := range sentences {
		if score := scoreSentence(s, titleWords); score > 0 {
			ranked = append(ranked, scoredSentence{text: s, score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var points []string
	if len(ranked) < minKeyPoints {
		points = sentences[:min(leadSentences, len(sentences))]
	} else {
		for _, r := range ranked[:min(maxKeyPoints, len(ranked))] {
			points = append(points, r.text)
		}
	}

	summary := strings.Join(points, " ")
	if len(summary)*10 < len(content) {
		summary += moreDetailsNotice
	}
	return summary
}

func leadSummary(content string) string {
	var sentences []string
	for _, s := range terminatorsRe.Split(content, -1) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) > minPlainSentence {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return textnorm.Ellipsize(content, truncateLen)
	}

	summary := strings.Join(sentences[:min(plainSentences, len(sentences))], ". ")
	if len(sentences) > plainSentences {
		summary += "."
	}
	return summary
}

// splitSentences returns trimmed sentences with their terminators, keeping
// only those with more than minScoredSentence characters of text.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(sentenceBody(s)) > minScoredSentence {
			out = append(out, s)
		}
	}
	return out
}

func sentenceBody(s string) string {
	return strings.TrimRight(s, ".!?")
}

func significantWords(title string) []string {
	var words []string
	split := func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' }
	for _, w := range strings.FieldsFunc(strings.ToLower(title), split) {
		if utf8.RuneCountInString(w) >= minTitleWord {
			words = append(words, w)
		}
	}
	return words
}

func scoreSentence(s string, titleWords []string) int {
	lower := strings.ToLower(s)
	score := 0
	for _, w := range titleWords {
		if strings.Contains(lower, w) {
			score += 2
		}
	}
	for _, kw := range newsSignals {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	if strings.IndexFunc(s, unicode.IsDigit) >= 0 {
		score++
	}
	if n := utf8.RuneCountInString(sentenceBody(s)); n < shortSentence || n > longSentence {
		score--
	}
	return score
}
