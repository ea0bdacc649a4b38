package digest

import (
	"html/template"
	"io"
	"time"
)

var htmlTemplate = template.Must(template.New("brief").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>News brief</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; color: #222; }
article { border-bottom: 1px solid #ddd; padding: 1rem 0; }
.meta { color: #777; font-size: 0.9rem; }
.full { color: #2a7; }
</style>
</head>
<body>
<h1>News brief</h1>
<p class="meta">{{.Header}}{{if .Generated}} · generated {{.Generated}}{{end}}</p>
{{- if .Items}}
{{- range .Items}}
<article>
<h2><a href="{{.URL}}">{{.Title}}</a></h2>
<p class="meta">{{.Source}} · {{.Date}}{{if .HasFullContent}} · <span class="full">full article</span>{{end}}</p>
<p>{{.Summary}}</p>
</article>
{{- end}}
{{- else}}
<p>{{.Message}}</p>
{{- end}}
</body>
</html>
`))

type htmlItem struct {
	Title          string
	URL            string
	Source         string
	Summary        string
	Date           string
	HasFullContent bool
}

type htmlPage struct {
	Header    string
	Generated string
	Message   string
	Items     []htmlItem
}

// HTMLFormatter renders a standalone HTML page.
type HTMLFormatter struct{}

func NewHTML() *HTMLFormatter {
	return &HTMLFormatter{}
}

func (f *HTMLFormatter) Format(w io.Writer, input Input) error {
	page := htmlPage{
		Header:  header(input),
		Message: input.Message,
	}
	if page.Message == "" {
		page.Message = "No articles found."
	}
	if !input.GeneratedAt.IsZero() {
		page.Generated = input.GeneratedAt.UTC().Format(time.RFC1123)
	}
	for _, item := range input.Items {
		page.Items = append(page.Items, htmlItem{
			Title:          item.Title,
			URL:            item.URL,
			Source:         item.Source,
			Summary:        item.Summary,
			Date:           itemDate(item),
			HasFullContent: item.HasFullContent,
		})
	}
	return htmlTemplate.Execute(w, page)
}
