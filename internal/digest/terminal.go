package digest

import (
	"fmt"
	"io"
)

// TerminalFormatter formats summaries for terminal output.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

func (f *TerminalFormatter) Format(w io.Writer, input Input) error {
	fmt.Fprintln(w, f.bold(header(input)))
	fmt.Fprintln(w)

	if len(input.Items) == 0 {
		msg := input.Message
		if msg == "" {
			msg = "No articles found."
		}
		fmt.Fprintln(w, f.yellow(msg))
		return nil
	}

	for i, item := range input.Items {
		marker := ""
		if item.HasFullContent {
			marker = " " + f.green("[full]")
		}
		fmt.Fprintf(w, "%s %s%s\n", f.bold(fmt.Sprintf("%2d.", i+1)), f.bold(item.Title), marker)
		fmt.Fprintf(w, "    %s\n", f.dim(item.Source+" · "+item.TimeAgo))
		if item.Summary != "" {
			fmt.Fprintf(w, "    %s\n", item.Summary)
		}
		fmt.Fprintf(w, "    %s\n", f.dim(item.URL))
		fmt.Fprintln(w)
	}
	return nil
}

// ANSI helpers, no-op when color=false.

func (f *TerminalFormatter) bold(s string) string {
	if !f.color {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func (f *TerminalFormatter) green(s string) string {
	if !f.color {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func (f *TerminalFormatter) yellow(s string) string {
	if !f.color {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

func (f *TerminalFormatter) dim(s string) string {
	if !f.color {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}
