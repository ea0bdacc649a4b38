// Package privacy scrubs article text before it leaves the machine.
package privacy

import (
	"fmt"
	"regexp"
)

const redactedPlaceholder = "[REDACTED]"

// Redactor replaces every match of its patterns with [REDACTED].
// A nil Redactor returns text unchanged.
type Redactor struct {
	patterns []*regexp.Regexp
}

// New compiles patterns into a Redactor. Blank patterns are ignored.
func New(patterns []string) (*Redactor, error) {
	r := &Redactor{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for i, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("redact[%d] %q: %w", i, p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Apply returns text with all matches replaced.
func (r *Redactor) Apply(text string) string {
	if r == nil {
		return text
	}
	for _, re := range r.patterns {
		text = re.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// Len reports how many patterns are active.
func (r *Redactor) Len() int {
	if r == nil {
		return 0
	}
	return len(r.patterns)
}
