package digest

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownFormatter formats summaries as Markdown.
type MarkdownFormatter struct{}

func NewMarkdown() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

func (f *MarkdownFormatter) Format(w io.Writer, input Input) error {
	fmt.Fprintf(w, "# News brief\n\n")
	fmt.Fprintf(w, "%s\n\n", header(input))

	if len(input.Items) == 0 {
		msg := input.Message
		if msg == "" {
			msg = "No articles found."
		}
		fmt.Fprintln(w, msg)
		return nil
	}

	for _, item := range input.Items {
		fmt.Fprintf(w, "## [%s](%s)\n\n", escapeMarkdown(item.Title), item.URL)
		meta := item.Source + " · " + item.TimeAgo
		if item.HasFullContent {
			meta += " · full article"
		}
		fmt.Fprintf(w, "*%s*\n\n", meta)
		if item.Summary != "" {
			fmt.Fprintf(w, "%s\n\n", item.Summary)
		}
	}
	return nil
}

var markdownEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
