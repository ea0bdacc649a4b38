// Package textnorm turns feed and HTML fragments into plain text.
package textnorm

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	cdataRe      = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Clean unwraps CDATA sections, strips tags, decodes entities and collapses
// runs of whitespace into single spaces.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = cdataRe.ReplaceAllString(s, "$1")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	// &nbsp; decodes to U+00A0, which \s does not match.
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return CollapseSpace(s)
}

// CollapseSpace replaces every whitespace run with one space and trims the ends.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Ellipsize truncates s to n runes and appends "..." when anything was cut.
func Ellipsize(s string, n int) string {
	t := Truncate(s, n)
	if len(t) < len(s) {
		return t + "..."
	}
	return t
}
