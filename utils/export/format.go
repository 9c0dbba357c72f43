// Package export renders session artifacts for download.
package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/kris-hansen/analyst/utils/session"
)

const (
	noResultsMarkdown = "No analysis results available."
	noResultsHTML     = "<p>No analysis results available.</p>"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// ResultsMarkdown formats analysis results for prompts and downloads
func ResultsMarkdown(results []session.AnalysisResult) string {
	if len(results) == 0 {
		return noResultsMarkdown
	}

	var b strings.Builder
	b.WriteString("## Analysis Results Summary\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "### Task %d: %s\n\n", i+1, r.Task)
		fmt.Fprintf(&b, "**Approach:**\n%s\n\n", r.Approach)
		fmt.Fprintf(&b, "**Code:**\n```python\n%s\n```\n\n", r.Code)
		fmt.Fprintf(&b, "**Results:**\n%s\n\n", r.ResultsText)
		fmt.Fprintf(&b, "**Insights:**\n%s\n\n---\n\n", r.Insights)
	}
	return b.String()
}

// ResultsHTML formats analysis results as an HTML fragment. Text is escaped.
func ResultsHTML(results []session.AnalysisResult) string {
	if len(results) == 0 {
		return noResultsHTML
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "<h3>Task %d: %s</h3>", i+1, html.EscapeString(r.Task))
		fmt.Fprintf(&b, "<p><strong>Approach:</strong> %s</p>", html.EscapeString(r.Approach))
		fmt.Fprintf(&b, "<pre><code>%s</code></pre>", html.EscapeString(r.Code))
		fmt.Fprintf(&b, "<p><strong>Results:</strong> %s</p>", html.EscapeString(r.ResultsText))
		fmt.Fprintf(&b, "<p><strong>Insights:</strong> %s</p>", html.EscapeString(r.Insights))
	}
	return b.String()
}

// MarkdownToHTML converts Markdown to an HTML fragment
func MarkdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// ReportHTML renders the final report as a standalone HTML document
func ReportHTML(title, report string) (string, error) {
	body, err := MarkdownToHTML(report)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}
