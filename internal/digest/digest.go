// Package digest renders summaries for the terminal and for export.
package digest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/newspan/internal/article"
)

// Output formats.
const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatHTML     = "html"
)

// Input is the full input for a formatter.
type Input struct {
	Items         []article.Summary
	DateRange     string // window label the items came from
	Keywords      string
	KeywordSearch bool
	Message       string // shown instead of items when there are none
	GeneratedAt   time.Time
}

// Formatter writes formatted summaries to w.
type Formatter interface {
	Format(w io.Writer, input Input) error
}

// New returns the formatter for format. color only affects terminal output.
func New(format string, color bool) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatTerminal:
		return NewTerminal(color), nil
	case FormatJSON:
		return NewJSON(), nil
	case FormatMarkdown, "md":
		return NewMarkdown(), nil
	case FormatCSV:
		return NewCSV(), nil
	case FormatHTML:
		return NewHTML(), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want terminal, json, markdown, csv or html)", format)
	}
}

// ContentType returns the MIME type for an export format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatMarkdown, "md":
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension for an export format, without the dot.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case FormatMarkdown, "md":
		return "md"
	case FormatJSON, FormatCSV, FormatHTML:
		return strings.ToLower(format)
	default:
		return "txt"
	}
}

func header(input Input) string {
	window := input.DateRange
	if window == "" {
		window = article.LabelDefault
	}
	s := fmt.Sprintf("newspan: %d articles, %s", len(input.Items), window)
	if input.Keywords != "" {
		s += fmt.Sprintf(", keywords %q", input.Keywords)
	}
	return s
}

func itemDate(item article.Summary) string {
	if item.PublishedAt != nil && !item.PublishedAt.IsZero() {
		return item.PublishedAt.UTC().Format("2006-01-02 15:04")
	}
	return item.TimeAgo
}
